package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pressly/goose/v3"
)

var log = logging.Logger("migrations")

//go:embed *.sql *.go
var embedded embed.FS

var setupOnce sync.Once
var setupErr error

// goose keeps its base filesystem and dialect in globals
func setup() error {
	setupOnce.Do(func() {
		goose.SetBaseFS(embedded)
		setupErr = goose.SetDialect("sqlite3")
	})
	return setupErr
}

// Migrate applies every pending migration to sqldb
func Migrate(sqldb *sql.DB) error {
	return migrate(sqldb, func() error {
		return goose.Up(sqldb, ".")
	})
}

// MigrateTo applies pending migrations up to and including version
func MigrateTo(sqldb *sql.DB, version int64) error {
	return migrate(sqldb, func() error {
		return goose.UpTo(sqldb, ".", version)
	})
}

// Version returns the version of the last applied migration
func Version(sqldb *sql.DB) (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(sqldb)
}

func migrate(sqldb *sql.DB, up func() error) error {
	from, err := Version(sqldb)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if err := up(); err != nil {
		return err
	}
	to, err := goose.GetDBVersion(sqldb)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if from != to {
		log.Infow("migrated dealbot database", "from", from, "to", to)
	}
	return nil
}
