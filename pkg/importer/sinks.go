package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"flowtrack/internal/models"
	"flowtrack/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreSink writes records through a store.Store
type StoreSink struct {
	Store store.Store
}

func (s StoreSink) Lookup(ctx context.Context, rec Record, key []string) (string, error) {
	existing, _, err := s.Store.ListAssets(ctx, models.AssetFilter{UserEmail: rec.Email, Sort: "id"})
	if err != nil {
		return "", err
	}
	for _, a := range existing {
		if matchesKey(rec, storedRecord(a), key) {
			return strconv.FormatInt(a.ID, 10), nil
		}
	}
	return "", nil
}

func (s StoreSink) Insert(ctx context.Context, rec Record) error {
	a := models.StoredAsset{
		Email:    rec.Email,
		Type:     rec.Type,
		Location: rec.Location,
		Status:   rec.Status,
	}
	if rec.Description != "" {
		d := rec.Description
		a.Description = &d
	}
	if rec.OpenDate != nil {
		a.OpenDate = *rec.OpenDate
	}
	_, err := s.Store.CreateAsset(ctx, a)
	return err
}

func (s StoreSink) Update(ctx context.Context, id string, rec Record) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid asset id %q", id)
	}
	_, err = s.Store.UpdateAsset(ctx, n, models.UpdateAssetRequest{
		Type:        &rec.Type,
		Location:    &rec.Location,
		Status:      &rec.Status,
		Description: &rec.Description,
	})
	return err
}

func storedRecord(a models.StoredAsset) Record {
	r := Record{Email: a.Email, Type: a.Type, Location: a.Location, Status: a.Status}
	if a.Description != nil {
		r.Description = *a.Description
	}
	return r
}

// matchesKey compares two records on the natural key. An empty key never
// matches, so every row is inserted.
func matchesKey(a, b Record, key []string) bool {
	if len(key) == 0 {
		return false
	}
	for _, field := range key {
		if a.Value(field) != b.Value(field) {
			return false
		}
	}
	return true
}

// MatchesKey reports whether rec and a stored board asset agree on key
func MatchesKey(rec Record, a models.Asset, key []string) bool {
	other := Record{
		Email:       a.Email,
		Type:        a.Type,
		Location:    a.Location,
		Status:      a.Status.Remote(),
		Description: a.Description,
	}
	return matchesKey(rec, other, key)
}

// keyColumns maps natural key fields to SQL predicates
var keyColumns = map[string]string{
	"email":       "lower(email) = lower(%s)",
	"type":        "type = %s",
	"location":    "location = %s",
	"status":      "status = %s",
	"description": "COALESCE(description, '') = %s",
}

// txSink writes records inside a single pgx transaction
type txSink struct {
	tx pgx.Tx
}

func (s txSink) Lookup(ctx context.Context, rec Record, key []string) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(key))
	args := make([]any, 0, len(key))
	for i, field := range key {
		clauses = append(clauses, fmt.Sprintf(keyColumns[field], fmt.Sprintf("$%d", i+1)))
		args = append(args, rec.Value(field))
	}
	query := "SELECT id FROM assets WHERE " + strings.Join(clauses, " AND ") + " ORDER BY id LIMIT 1"

	var id int64
	err := s.tx.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// exec runs one statement under a savepoint so a failed row leaves the
// transaction usable for the rows after it
func (s txSink) exec(ctx context.Context, sql string, args ...any) error {
	return pgx.BeginFunc(ctx, s.tx, func(sp pgx.Tx) error {
		_, err := sp.Exec(ctx, sql, args...)
		return err
	})
}

func (s txSink) Insert(ctx context.Context, rec Record) error {
	return s.exec(ctx, `
		INSERT INTO assets (email, type, location, status, description, open_date, close_date)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), COALESCE($6, now()),
		        CASE WHEN $4 = 'Closed' THEN now() END)`,
		rec.Email, rec.Type, rec.Location, rec.Status, rec.Description, rec.OpenDate)
}

func (s txSink) Update(ctx context.Context, id string, rec Record) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid asset id %q", id)
	}
	return s.exec(ctx, `
		UPDATE assets
		SET type = $2, location = $3, status = $4, description = NULLIF($5, ''),
		    close_date = CASE WHEN $4 = 'Closed' THEN COALESCE(close_date, now()) END
		WHERE id = $1`,
		n, rec.Type, rec.Location, rec.Status, rec.Description)
}

// ImportTx imports the workbook in one transaction on pool. A dry run
// performs every write and then rolls back, so constraint failures still
// surface in the summary.
func ImportTx(ctx context.Context, pool *pgxpool.Pool, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return ImportSummary{DryRun: opts.DryRun}, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inner := opts
	inner.DryRun = false
	inner.Workers = 1 // a pgx.Tx is not safe for concurrent use
	summary, err := Import(ctx, r, txSink{tx: tx}, inner)
	summary.DryRun = opts.DryRun
	if err != nil || opts.DryRun {
		return summary, err
	}
	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("failed to commit import: %w", err)
	}
	return summary, nil
}
