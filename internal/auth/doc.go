// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

/*
Package auth authenticates the two kinds of callers the server accepts.

Cron triggers call POST|GET /jobs/run and are recognized by CronAuthenticator:

  - Authorization: Bearer <CRON_SECRET> identifies the source "cron-secret".
    The comparison is constant time.
  - Otherwise a User-Agent starting with one of CRON_USER_AGENTS
    (default "vercel-cron") identifies the source "cron-user-agent".
  - A bearer token that does not match the secret is rejected even when the
    user agent would match.

Administrators log in with POST /api/v1/auth/login using the configured
ADMIN_USERNAME / ADMIN_PASSWORD and receive an HS256 JWT (JWTManager).
Middleware.Authenticate validates the token from the Authorization header or
the "token" cookie and stores the Claims in the request context.

With AUTH_MODE=none the admin surface is open and every request carries
anonymous admin claims. The cron surface is never open.
*/
package auth
