// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Package testinfra provides test infrastructure shared across packages.
//
// # PostgreSQL Container
//
// Built with the integration tag, PostgresContainer starts a disposable
// PostgreSQL server through testcontainers-go for store tests:
//
//	func TestClaim(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//
//	    store, err := postgres.New(ctx, &config.DatabaseConfig{PostgresURL: pg.DSN})
//	    // ...
//	}
//
// Run with:
//
//	go test -tags=integration ./internal/postgres/...
//
// # Webhook Receiver
//
// MockWebhookServer is an httptest server that records deliveries and can
// script a sequence of response codes, used by the webhook_deliver handler
// tests without any build tag.
package testinfra
