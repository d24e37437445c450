package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/filecoin-project/dealbot/db/fielddef"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/google/uuid"
)

// Used for SELECT statements: "ID, CreatedAt, ..."
var dealFields []string
var dealFieldsStr = ""

// Columns written by the deal maker. The verification monitor owns the
// Ipni* columns, so they are excluded from upserts.
var lifecycleFields []string

// Columns written by the verification monitor
var verificationFields []string

func init() {
	var deal types.Deal
	def := newDealAccessor(nil, &deal)
	dealFields = make([]string, 0, len(def.def))
	for k := range def.def {
		dealFields = append(dealFields, k)
	}
	sort.Strings(dealFields)
	dealFieldsStr = strings.Join(dealFields, ", ")

	for _, k := range dealFields {
		switch {
		case k == "ID" || k == "CreatedAt":
		case strings.HasPrefix(k, "Ipni"):
			verificationFields = append(verificationFields, k)
		default:
			lifecycleFields = append(lifecycleFields, k)
		}
	}
}

type dealAccessor struct {
	db   *sql.DB
	deal *types.Deal
	def  map[string]fielddef.FieldDefinition
}

func newDealAccessor(db *sql.DB, deal *types.Deal) *dealAccessor {
	return &dealAccessor{
		db:   db,
		deal: deal,
		def: map[string]fielddef.FieldDefinition{
			"ID":                  &fielddef.FieldDef{F: &deal.ID},
			"CreatedAt":           &fielddef.FieldDef{F: &deal.CreatedAt},
			"UpdatedAt":           &fielddef.FieldDef{F: &deal.UpdatedAt},
			"ProviderAddress":     &fielddef.FieldDef{F: &deal.ProviderAddress},
			"WalletAddress":       &fielddef.FieldDef{F: &deal.WalletAddress},
			"FileName":            &fielddef.FieldDef{F: &deal.FileName},
			"FileSize":            &fielddef.FieldDef{F: &deal.FileSize},
			"Status":              &fielddef.StatusFieldDef{F: &deal.Status},
			"DataSetID":           &fielddef.FieldDef{F: &deal.DataSetID},
			"PieceCID":            &fielddef.CidPtrFieldDef{F: &deal.PieceCID},
			"PieceSize":           &fielddef.FieldDef{F: &deal.PieceSize},
			"PieceID":             &fielddef.FieldDef{F: &deal.PieceID},
			"TransactionHash":     &fielddef.FieldDef{F: &deal.TransactionHash},
			"ServiceTypes":        &fielddef.JSONFieldDef{F: &deal.ServiceTypes},
			"AddonMetadata":       &fielddef.JSONFieldDef{F: &deal.AddonMetadata},
			"UploadStartedAt":     &fielddef.FieldDef{F: &deal.UploadStartedAt},
			"UploadEndedAt":       &fielddef.FieldDef{F: &deal.UploadEndedAt},
			"PieceAddedAt":        &fielddef.FieldDef{F: &deal.PieceAddedAt},
			"DealConfirmedAt":     &fielddef.FieldDef{F: &deal.DealConfirmedAt},
			"IngestLatencyMs":     &fielddef.FieldDef{F: &deal.IngestLatencyMs},
			"IngestThroughputBps": &fielddef.FieldDef{F: &deal.IngestThroughputBps},
			"ChainLatencyMs":      &fielddef.FieldDef{F: &deal.ChainLatencyMs},
			"DealLatencyMs":       &fielddef.FieldDef{F: &deal.DealLatencyMs},
			"ErrorMessage":        &fielddef.FieldDef{F: &deal.ErrorMessage},
			"ErrorCode":           &fielddef.FieldDef{F: &deal.ErrorCode},
			"RetryCount":          &fielddef.FieldDef{F: &deal.RetryCount},

			"IpniStatus":              &fielddef.IpniStatusFieldDef{F: &deal.Ipni.Status},
			"IpniRootCID":             &fielddef.CidPtrFieldDef{F: &deal.Ipni.RootCID},
			"IpniIndexedAt":           &fielddef.FieldDef{F: &deal.Ipni.IndexedAt},
			"IpniAdvertisedAt":        &fielddef.FieldDef{F: &deal.Ipni.AdvertisedAt},
			"IpniRetrievedAt":         &fielddef.FieldDef{F: &deal.Ipni.RetrievedAt},
			"IpniVerifiedAt":          &fielddef.FieldDef{F: &deal.Ipni.VerifiedAt},
			"IpniTimeToIndexMs":       &fielddef.FieldDef{F: &deal.Ipni.TimeToIndexMs},
			"IpniTimeToAdvertiseMs":   &fielddef.FieldDef{F: &deal.Ipni.TimeToAdvertiseMs},
			"IpniTimeToRetrieveMs":    &fielddef.FieldDef{F: &deal.Ipni.TimeToRetrieveMs},
			"IpniTimeToVerifyMs":      &fielddef.FieldDef{F: &deal.Ipni.TimeToVerifyMs},
			"IpniVerifiedCidsCount":   &fielddef.FieldDef{F: &deal.Ipni.VerifiedCidsCount},
			"IpniUnverifiedCidsCount": &fielddef.FieldDef{F: &deal.Ipni.UnverifiedCidsCount},
			"IpniError":               &fielddef.FieldDef{F: &deal.Ipni.Error},
		},
	}
}

func (d *dealAccessor) scan(row Scannable) error {
	return scan(dealFields, d.def, row)
}

func scan(fields []string, def map[string]fielddef.FieldDefinition, row Scannable) error {
	// For each field
	dest := []interface{}{}
	for _, name := range fields {
		// Get a pointer to the field that will receive the scanned value
		fieldDef := def[name]
		dest = append(dest, fieldDef.FieldPtr())
	}

	// Scan the row into each pointer
	err := row.Scan(dest...)
	if err != nil {
		return fmt.Errorf("scanning row: %w", err)
	}

	// For each field
	for name, fieldDef := range def {
		// Unmarshall the scanned value into the struct
		err := fieldDef.Unmarshall()
		if err != nil {
			return fmt.Errorf("unmarshalling db field %s: %s", name, err)
		}
	}
	return nil
}

func marshallFields(fields []string, def map[string]fielddef.FieldDefinition) ([]interface{}, error) {
	values := make([]interface{}, 0, len(fields))
	for _, name := range fields {
		// Marshall the field into a value that can be stored in the database
		v, err := def[name].Marshall()
		if err != nil {
			return nil, fmt.Errorf("marshalling db field %s: %w", name, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func insert(ctx context.Context, table string, fields []string, fieldsStr string, def map[string]fielddef.FieldDefinition, db *sql.DB) error {
	values, err := marshallFields(fields, def)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(fields))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	// Execute the INSERT
	qry := "INSERT INTO " + table + " (" + fieldsStr + ") "
	qry += "VALUES (" + strings.Join(placeholders, ",") + ")"
	_, err = db.ExecContext(ctx, qry, values...)
	return err
}

// upsert inserts the row, or if a row with the same key already exists,
// overwrites the columns in updateFields
func upsert(ctx context.Context, table string, key string, fields []string, fieldsStr string, updateFields []string, def map[string]fielddef.FieldDefinition, db *sql.DB) error {
	values, err := marshallFields(fields, def)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(fields))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	setNames := make([]string, 0, len(updateFields))
	for _, name := range updateFields {
		setNames = append(setNames, name+" = excluded."+name)
	}

	qry := "INSERT INTO " + table + " (" + fieldsStr + ") "
	qry += "VALUES (" + strings.Join(placeholders, ",") + ") "
	qry += "ON CONFLICT(" + key + ") DO UPDATE SET " + strings.Join(setNames, ", ")
	_, err = db.ExecContext(ctx, qry, values...)
	return err
}

func update(ctx context.Context, table string, fields []string, def map[string]fielddef.FieldDefinition, db *sql.DB, id uuid.UUID) error {
	values, err := marshallFields(fields, def)
	if err != nil {
		return err
	}

	setNames := make([]string, 0, len(fields))
	for _, name := range fields {
		setNames = append(setNames, name+" = ?")
	}

	// Execute the UPDATE
	qry := "UPDATE " + table + " "
	qry += "SET " + strings.Join(setNames, ", ") + " "
	qry += "WHERE ID = ?"
	values = append(values, id)

	res, err := db.ExecContext(ctx, qry, values...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("updating %s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

type DealsDB struct {
	db *sql.DB
}

func NewDealsDB(db *sql.DB) *DealsDB {
	return &DealsDB{db: db}
}

func (d *DealsDB) Insert(ctx context.Context, deal *types.Deal) error {
	deal.UpdatedAt = time.Now()
	return insert(ctx, "Deals", dealFields, dealFieldsStr, newDealAccessor(d.db, deal).def, d.db)
}

// Upsert writes the lifecycle columns of the deal, creating the row if it
// doesn't exist yet. Verification columns are only written on insert.
func (d *DealsDB) Upsert(ctx context.Context, deal *types.Deal) error {
	deal.UpdatedAt = time.Now()
	return upsert(ctx, "Deals", "ID", dealFields, dealFieldsStr, lifecycleFields, newDealAccessor(d.db, deal).def, d.db)
}

// UpdateVerification writes the verification columns of the deal with the
// given id
func (d *DealsDB) UpdateVerification(ctx context.Context, id uuid.UUID, v *types.Verification) error {
	deal := &types.Deal{ID: id, Ipni: *v}
	return update(ctx, "Deals", verificationFields, newDealAccessor(d.db, deal).def, d.db, id)
}

func (d *DealsDB) ByID(ctx context.Context, id uuid.UUID) (*types.Deal, error) {
	qry := "SELECT " + dealFieldsStr + " FROM Deals WHERE ID=?"
	row := d.db.QueryRowContext(ctx, qry, id)
	deal, err := d.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deal %s: %w", id, ErrNotFound)
	}
	return deal, err
}

func (d *DealsDB) ByProvider(ctx context.Context, providerAddress string) ([]*types.Deal, error) {
	return d.list(ctx, 0, 0, "ProviderAddress=?", strings.ToLower(providerAddress))
}

func (d *DealsDB) ByStatus(ctx context.Context, status dealstatus.Status) ([]*types.Deal, error) {
	return d.list(ctx, 0, 0, "Status=?", status.String())
}

func (d *DealsDB) List(ctx context.Context, offset int, limit int) ([]*types.Deal, error) {
	return d.list(ctx, offset, limit, "")
}

// Count returns the number of deals, restricted to the given status if it is
// not nil
func (d *DealsDB) Count(ctx context.Context, status *dealstatus.Status) (int, error) {
	qry := "SELECT count(*) FROM Deals"
	var args []interface{}
	if status != nil {
		qry += " WHERE Status = ?"
		args = append(args, status.String())
	}
	row := d.db.QueryRowContext(ctx, qry, args...)

	var count int
	err := row.Scan(&count)
	return count, err
}

func (d *DealsDB) list(ctx context.Context, offset int, limit int, whereClause string, whereArgs ...interface{}) ([]*types.Deal, error) {
	args := whereArgs
	qry := "SELECT " + dealFieldsStr + " FROM Deals"
	if whereClause != "" {
		qry += " WHERE " + whereClause
	}
	qry += " ORDER BY CreatedAt DESC"
	if limit > 0 || offset > 0 {
		// sqlite only accepts OFFSET after LIMIT, and -1 means no limit
		if limit <= 0 {
			limit = -1
		}
		qry += " LIMIT ?"
		args = append(args, limit)

		if offset > 0 {
			qry += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, qry, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	deals := make([]*types.Deal, 0, 16)
	for rows.Next() {
		deal, err := d.scanRow(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return deals, nil
}

func (d *DealsDB) scanRow(row Scannable) (*types.Deal, error) {
	var deal types.Deal
	err := newDealAccessor(d.db, &deal).scan(row)
	if err != nil {
		return nil, err
	}
	return &deal, nil
}
