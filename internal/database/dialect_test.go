package database

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		databaseType string
		driver       string
		wantErr      bool
	}{
		{databaseType: "sqlite", driver: "sqlite3"},
		{databaseType: "", driver: "sqlite3"},
		{databaseType: "PostgreSQL", driver: "postgres"},
		{databaseType: "mysql", driver: "mysql"},
		{databaseType: "bbolt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.databaseType, func(t *testing.T) {
			dialect, err := DialectFor(tt.databaseType)
			if tt.wantErr {
				if err == nil {
					t.Fatal("DialectFor() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DialectFor() error = %v", err)
			}
			if dialect.DriverName() != tt.driver {
				t.Errorf("DriverName() = %v, want %v", dialect.DriverName(), tt.driver)
			}
			if dialect.MigrationsSubdir() == "" {
				t.Error("MigrationsSubdir() should not be empty")
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	dialect := NewSQLiteDialect()

	dsn := dialect.DSN(DialectConfig{Path: "/data/app.db"})
	if !strings.HasPrefix(dsn, "file:/data/app.db?") || !strings.Contains(dsn, "_txlock=immediate") {
		t.Errorf("DSN() = %v, want immediate transactions", dsn)
	}

	custom := "file:test.db?mode=memory"
	if got := dialect.DSN(DialectConfig{Path: custom}); got != custom {
		t.Errorf("DSN() = %v, want %v", got, custom)
	}
}

func TestLockForUpdate(t *testing.T) {
	if NewSQLiteDialect().LockForUpdate() != "" {
		t.Error("SQLite should rely on immediate transactions")
	}
	if NewPostgresDialect().LockForUpdate() != " FOR UPDATE" {
		t.Error("PostgreSQL should lock rows")
	}
	if NewMySQLDialect().LockForUpdate() != " FOR UPDATE" {
		t.Error("MySQL should lock rows")
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT body FROM documents WHERE collection = ? AND id = ?",
			expected: "SELECT body FROM documents WHERE collection = ? AND id = ?",
		},
		{
			name:     "PostgreSQL placeholders numbered",
			dialect:  NewPostgresDialect(),
			query:    "SELECT body FROM documents WHERE collection = ? AND id = ?",
			expected: "SELECT body FROM documents WHERE collection = $1 AND id = $2",
		},
		{
			name:     "PostgreSQL upsert",
			dialect:  NewPostgresDialect(),
			query:    NewPostgresDialect().UpsertDocument(),
			expected: "INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3) ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = CURRENT_TIMESTAMP",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "DELETE FROM documents WHERE collection = ? AND id = ?",
			expected: "DELETE FROM documents WHERE collection = ? AND id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestInitializeRunsMigrationsOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Initialize(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	var count int
	if err := db.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("migrations = %d, want 1", count)
	}
	db.Close()

	// reopening must not re-run migrations
	db, err = Initialize(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	if err := db.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("migrations after reopen = %d, want 1", count)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db, err := Initialize(filepath.Join(t.TempDir(), "tx.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx := t.Context()
	_ = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, db.Dialect.UpsertDocument(), "babies", "b1", "{}"); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		return errors.New("rollback")
	})

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		t.Fatalf("Failed to count documents: %v", err)
	}
	if count != 0 {
		t.Errorf("documents = %d, want 0 after rollback", count)
	}
}
