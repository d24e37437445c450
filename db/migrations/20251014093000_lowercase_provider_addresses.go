package migrations

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upLowercaseProviderAddresses, downLowercaseProviderAddresses)
}

// Provider addresses are hex strings that may have been recorded with mixed
// case checksums. Lookups are case-insensitive, so normalize them.
func upLowercaseProviderAddresses(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT Address FROM Providers")
	if err != nil {
		return err
	}

	var addrs []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			_ = rows.Close()
			return err
		}
		if addr != strings.ToLower(addr) {
			addrs = append(addrs, addr)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, addr := range addrs {
		lower := strings.ToLower(addr)
		// If a lowercase duplicate already exists keep the newer record
		_, err = tx.ExecContext(ctx, "DELETE FROM Providers WHERE Address=? AND UpdatedAt < (SELECT UpdatedAt FROM Providers WHERE Address=?)", lower, addr)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM Providers WHERE Address=? AND EXISTS (SELECT 1 FROM Providers WHERE Address=?)", addr, lower)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE Providers SET Address=? WHERE Address=?", lower, addr)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, "UPDATE Deals SET ProviderAddress=lower(ProviderAddress)")
	return err
}

func downLowercaseProviderAddresses(ctx context.Context, tx *sql.Tx) error {
	// This code is executed when the migration is rolled back.
	return nil
}
