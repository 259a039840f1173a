// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package postgres

import (
	"strings"
	"testing"
)

func TestLoadMigrations(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no embedded migrations")
	}

	for i, m := range migrations {
		if i > 0 && m.Version <= migrations[i-1].Version {
			t.Errorf("migration %d (v%d) out of order", i, m.Version)
		}
		if strings.TrimSpace(m.SQL) == "" {
			t.Errorf("migration v%d is empty", m.Version)
		}
	}

	if migrations[0].Version != 1 || migrations[0].Name != "job_queue" {
		t.Errorf("first migration = v%d %s", migrations[0].Version, migrations[0].Name)
	}
	for _, table := range []string{"jobs", "job_queue_settings", "job_worker_runs"} {
		if !strings.Contains(migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("initial migration does not create %s", table)
		}
	}
}
