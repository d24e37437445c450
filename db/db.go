package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"testing"

	"github.com/filecoin-project/dealbot/db/migrations"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

type Scannable interface {
	Scan(dest ...interface{}) error
}

func SqlDB(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite3", "file:"+dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
}

// Open opens the sqlite database at dbPath and runs any pending migrations
func Open(ctx context.Context, dbPath string) (*sql.DB, error) {
	sqldb, err := SqlDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db at %s: %w", dbPath, err)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("connecting to sqlite db at %s: %w", dbPath, err)
	}

	if err := migrations.Migrate(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("migrating sqlite db at %s: %w", dbPath, err)
	}

	return sqldb, nil
}

// CreateTestTmpDBNoMigrate creates an empty database in the test's temp dir
func CreateTestTmpDBNoMigrate(t *testing.T) *sql.DB {
	sqldb, err := SqlDB(path.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test db: %s", err)
	}
	t.Cleanup(func() {
		_ = sqldb.Close()
	})
	return sqldb
}

// CreateTestTmpDB creates a migrated database in the test's temp dir
func CreateTestTmpDB(t *testing.T) *sql.DB {
	sqldb, err := Open(context.Background(), path.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test db: %s", err)
	}
	t.Cleanup(func() {
		_ = sqldb.Close()
	})
	return sqldb
}
