package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/filecoin-project/dealbot/db/fielddef"
	"github.com/filecoin-project/dealbot/storagemarket/types"
)

var providerFields = []string{"Address", "Name", "Description", "ServiceURL", "IsActive", "CreatedAt", "UpdatedAt"}
var providerFieldsStr = strings.Join(providerFields, ", ")

func newProviderDef(p *types.ProviderInfo) map[string]fielddef.FieldDefinition {
	return map[string]fielddef.FieldDefinition{
		"Address":     &fielddef.FieldDef{F: &p.Address},
		"Name":        &fielddef.FieldDef{F: &p.Name},
		"Description": &fielddef.FieldDef{F: &p.Description},
		"ServiceURL":  &fielddef.FieldDef{F: &p.ServiceURL},
		"IsActive":    &fielddef.FieldDef{F: &p.IsActive},
		"CreatedAt":   &fielddef.FieldDef{F: &p.CreatedAt},
		"UpdatedAt":   &fielddef.FieldDef{F: &p.UpdatedAt},
	}
}

type ProvidersDB struct {
	db *sql.DB
}

func NewProvidersDB(db *sql.DB) *ProvidersDB {
	return &ProvidersDB{db: db}
}

// Upsert adds the provider to the directory or updates the existing record.
// Addresses are stored lower case.
func (p *ProvidersDB) Upsert(ctx context.Context, prov *types.ProviderInfo) error {
	now := time.Now()
	prov.Address = strings.ToLower(prov.Address)
	if prov.CreatedAt.IsZero() {
		prov.CreatedAt = now
	}
	prov.UpdatedAt = now

	updateFields := []string{"Name", "Description", "ServiceURL", "IsActive", "UpdatedAt"}
	return upsert(ctx, "Providers", "Address", providerFields, providerFieldsStr, updateFields, newProviderDef(prov), p.db)
}

// ByAddress returns the provider with the given address, or nil if there is
// no such provider
func (p *ProvidersDB) ByAddress(ctx context.Context, address string) (*types.ProviderInfo, error) {
	qry := "SELECT " + providerFieldsStr + " FROM Providers WHERE Address=?"
	row := p.db.QueryRowContext(ctx, qry, strings.ToLower(address))

	var prov types.ProviderInfo
	err := scan(providerFields, newProviderDef(&prov), row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting provider %s: %w", address, err)
	}
	return &prov, nil
}

// SetActive marks the provider as active or inactive
func (p *ProvidersDB) SetActive(ctx context.Context, address string, active bool) error {
	qry := "UPDATE Providers SET IsActive=?, UpdatedAt=? WHERE Address=?"
	res, err := p.db.ExecContext(ctx, qry, active, time.Now(), strings.ToLower(address))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("provider %s: %w", address, ErrNotFound)
	}
	return nil
}

// Count returns the number of active providers
func (p *ProvidersDB) Count(ctx context.Context) (int, error) {
	row := p.db.QueryRowContext(ctx, "SELECT count(*) FROM Providers WHERE IsActive")
	var count int
	err := row.Scan(&count)
	return count, err
}

// List returns the active providers ordered by address
func (p *ProvidersDB) List(ctx context.Context) ([]types.ProviderInfo, error) {
	return p.list(ctx, true)
}

// ListAll returns all providers, including inactive ones
func (p *ProvidersDB) ListAll(ctx context.Context) ([]types.ProviderInfo, error) {
	return p.list(ctx, false)
}

func (p *ProvidersDB) list(ctx context.Context, activeOnly bool) ([]types.ProviderInfo, error) {
	qry := "SELECT " + providerFieldsStr + " FROM Providers"
	if activeOnly {
		qry += " WHERE IsActive"
	}
	qry += " ORDER BY Address"

	rows, err := p.db.QueryContext(ctx, qry)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var provs []types.ProviderInfo
	for rows.Next() {
		var prov types.ProviderInfo
		if err := scan(providerFields, newProviderDef(&prov), rows); err != nil {
			return nil, err
		}
		provs = append(provs, prov)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return provs, nil
}
