// Package importer loads asset rows from .xlsx workbooks. A YAML mapping
// names the columns of each sheet; parsed records go to a Sink that decides
// how they are stored.
package importer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"flowtrack/internal/models"

	"github.com/tealeg/xlsx/v3"
	"golang.org/x/sync/errgroup"
)

const defaultMaxErrors = 50

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	Mapping   *MappingConfig // default DefaultMapping()
	DryRun    bool
	MaxErrors int // default 50
	Workers   int // concurrent sink calls, default 1
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// Record is one parsed asset row in the API vocabulary
type Record struct {
	Email       string
	Type        string
	Location    string
	Status      string
	Description string
	OpenDate    *time.Time
}

// Value returns a key field of the record by name
func (r Record) Value(field string) string {
	switch field {
	case "email":
		return strings.ToLower(r.Email)
	case "type":
		return r.Type
	case "location":
		return r.Location
	case "status":
		return r.Status
	case "description":
		return r.Description
	}
	return ""
}

// Row is a data row read from a sheet. Line is 1-based as shown in Excel.
type Row struct {
	Sheet  string
	Line   int
	Key    []string
	Record Record
	Blank  bool
	Err    error
}

// Sink stores imported records. Lookup returns the id of the stored asset
// matching rec on the key fields, or "" when there is none.
type Sink interface {
	Lookup(ctx context.Context, rec Record, key []string) (string, error)
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, id string, rec Record) error
}

// ReadRows parses every mapped sheet of the workbook. Sheets with no mapping
// are skipped. Row-level problems are reported on the Row, not as an error.
func ReadRows(r io.Reader, mapping *MappingConfig) ([]Row, error) {
	if mapping == nil {
		var err error
		if mapping, err = DefaultMapping(); err != nil {
			return nil, err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel file: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}

	var rows []Row
	for _, sheet := range xlFile.Sheets {
		sc, ok := mapping.sheet(sheet.Name)
		if !ok {
			continue
		}
		sheetRows, err := readSheet(sheet, sc, mapping.Defaults)
		if err != nil {
			rows = append(rows, Row{Sheet: sheet.Name, Line: 1, Err: err})
			continue
		}
		rows = append(rows, sheetRows...)
	}
	return rows, nil
}

func readSheet(sheet *xlsx.Sheet, sc SheetConfig, defaults map[string]string) ([]Row, error) {
	if sheet.MaxRow == 0 {
		return nil, nil
	}

	columns := make(map[int]string, sheet.MaxCol)
	for col := 0; col < sheet.MaxCol; col++ {
		cell, err := sheet.Cell(0, col)
		if err != nil {
			return nil, fmt.Errorf("failed to read header row: %w", err)
		}
		if key, ok := sc.resolveHeader(cell.String()); ok {
			columns[col] = key
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("header row matches no mapped columns")
	}

	rows := make([]Row, 0, sheet.MaxRow-1)
	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		values := make(map[string]string, len(columns))
		for col, key := range columns {
			cell, err := sheet.Cell(rowIdx, col)
			if err != nil {
				continue
			}
			if v := strings.TrimSpace(cell.String()); v != "" {
				values[key] = v
			}
		}

		row := Row{Sheet: sheet.Name, Line: rowIdx + 1, Key: sc.NaturalKey}
		if len(values) == 0 {
			row.Blank = true
		} else {
			row.Record, row.Err = buildRecord(values, sc, defaults)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func buildRecord(values map[string]string, sc SheetConfig, defaults map[string]string) (Record, error) {
	fields := make(map[string]string, len(defaults)+len(values))
	for k, v := range defaults {
		fields[k] = v
	}

	var rec Record
	for header, col := range sc.Columns {
		value, ok := values[header]
		if !ok {
			if !strings.HasSuffix(col.Type, "?") {
				return Record{}, fmt.Errorf("missing required column %s", header)
			}
			continue
		}
		if strings.TrimSuffix(col.Type, "?") == "TIMESTAMP" {
			t, err := parseTimestamp(value)
			if err != nil {
				return Record{}, fmt.Errorf("failed to parse %s: %v", header, err)
			}
			rec.OpenDate = &t
			continue
		}
		fields[col.Field] = value
	}

	rec.Email = strings.TrimSpace(fields["email"])
	if rec.Email == "" {
		return Record{}, fmt.Errorf("email is required")
	}
	rec.Type = models.NormalizeType(fields["type"])
	rec.Location = models.NormalizeLocation(fields["location"])
	rec.Status = models.NormalizeRemoteStatus(fields["status"])
	rec.Description = fields["description"]
	return rec, nil
}

var timestampFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"01/02/2006 15:04:05",
	"1/2/06",
}

// parseTimestamp accepts common text layouts and Excel serial dates
func parseTimestamp(value string) (time.Time, error) {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		return xlsx.TimeFromExcelTime(serial, false), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: %s", value)
}

// Import reads the workbook and stores each record through sink. In dry-run
// mode lookups still run so the summary reports inserts versus updates, but
// nothing is written. With Workers > 1 rows are stored concurrently and the
// sink must be safe for concurrent use.
func Import(ctx context.Context, r io.Reader, sink Sink, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{DryRun: opts.DryRun, Sheets: []SheetSummary{}}
	if opts.MaxErrors == 0 {
		opts.MaxErrors = defaultMaxErrors
	}

	rows, err := ReadRows(r, opts.Mapping)
	if err != nil {
		return summary, err
	}

	index := map[string]int{}
	for _, row := range rows {
		if _, ok := index[row.Sheet]; !ok {
			index[row.Sheet] = len(summary.Sheets)
			summary.Sheets = append(summary.Sheets, SheetSummary{Name: row.Sheet})
		}
	}

	var mu sync.Mutex
	failed := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))

	for _, row := range rows {
		row := row // per-iteration copy (go.mod targets go 1.21)
		sheet := &summary.Sheets[index[row.Sheet]]
		if row.Blank {
			mu.Lock()
			sheet.Skipped++
			mu.Unlock()
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			err := row.Err
			updated := false
			if err == nil {
				updated, err = storeRow(gctx, sink, row, opts.DryRun)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				sheet.Errors++
				sheet.Samples = append(sheet.Samples, RowError{Sheet: row.Sheet, Row: row.Line, Message: err.Error()})
				failed++
				if failed > opts.MaxErrors {
					return fmt.Errorf("too many errors (%d), stopping import", failed)
				}
			case updated:
				sheet.Updated++
			default:
				sheet.Inserted++
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return summary.total(), err
}

// storeRow looks the record up and then updates or inserts it
func storeRow(ctx context.Context, sink Sink, row Row, dryRun bool) (updated bool, err error) {
	id, err := sink.Lookup(ctx, row.Record, row.Key)
	if err != nil {
		return false, err
	}
	if id != "" {
		if !dryRun {
			if err := sink.Update(ctx, id, row.Record); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	if !dryRun {
		if err := sink.Insert(ctx, row.Record); err != nil {
			return false, err
		}
	}
	return false, nil
}

// total recomputes the top-level counters from the per-sheet ones
func (s ImportSummary) total() ImportSummary {
	s.Inserted, s.Updated, s.Skipped, s.Errors = 0, 0, 0, 0
	for _, sh := range s.Sheets {
		s.Inserted += sh.Inserted
		s.Updated += sh.Updated
		s.Skipped += sh.Skipped
		s.Errors += sh.Errors
	}
	return s
}
