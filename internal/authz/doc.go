// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Package authz provides authorization for the admin API using Casbin RBAC.
//
// The embedded model grants actions on objects to roles, with role
// inheritance (admin > operator > viewer). Deployments can replace the model
// and policy with CASBIN_MODEL_PATH and CASBIN_POLICY_PATH.
//
// Objects and actions used by the router:
//
//	job-queue  read   settings, counts, job and worker run listings
//	job-queue  run    manual runner pass
//	job-queue  write  toggle, retry/cancel/delete, enqueue
package authz
