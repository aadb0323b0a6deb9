// Package dbtest boots throwaway SQLite databases carrying the same tables the
// Postgres migrations create, so repositories can be exercised without Postgres.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS aid_requests (
  id TEXT PRIMARY KEY,
  description TEXT NOT NULL DEFAULT '',
  language TEXT NOT NULL DEFAULT 'en',
  lat REAL NOT NULL,
  lng REAL NOT NULL,
  needs TEXT,
  beneficiaries TEXT,
  medical TEXT,
  device TEXT,
  messages TEXT,
  repeated_message_count INTEGER NOT NULL DEFAULT 0,
  self_declared_urgency TEXT NOT NULL DEFAULT 'medium',
  priority TEXT NOT NULL DEFAULT 'medium',
  sos_detected INTEGER NOT NULL DEFAULT 0,
  sos_indicators TEXT,
  status TEXT NOT NULL DEFAULT 'new',
  is_duplicate INTEGER NOT NULL DEFAULT 0,
  merged_into TEXT,
  duplicate_score REAL,
  assignment_ids TEXT,
  timeline TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS organizations (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  lat REAL NOT NULL,
  lng REAL NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_verified INTEGER NOT NULL DEFAULT 0,
  active_assignments INTEGER NOT NULL DEFAULT 0,
  max_active_assignments INTEGER NOT NULL DEFAULT 10,
  rating REAL NOT NULL DEFAULT 0,
  average_response_minutes REAL NOT NULL DEFAULT 0,
  is_online INTEGER NOT NULL DEFAULT 0,
  available_24x7 INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS offers (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  category TEXT NOT NULL,
  total_quantity INTEGER NOT NULL,
  available_quantity INTEGER NOT NULL,
  allocated_quantity INTEGER NOT NULL DEFAULT 0,
  lat REAL NOT NULL,
  lng REAL NOT NULL,
  coverage_radius_km REAL NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  valid_until DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (available_quantity >= 0 AND available_quantity <= total_quantity)
);`,
	`CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL,
  offer_id TEXT,
  organization_id TEXT NOT NULL,
  category TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  priority TEXT NOT NULL,
  method TEXT NOT NULL,
  score REAL NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS blocked_routes (
  id TEXT PRIMARY KEY,
  path TEXT NOT NULL,
  severity TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  active_from DATETIME NOT NULL,
  active_until DATETIME,
  created_at DATETIME
);`,
}

// Open returns an isolated in-memory database with the dispatch schema applied.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:dispatch_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// one connection serializes background workers against test reads
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
