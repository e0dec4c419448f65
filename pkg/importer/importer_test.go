package importer

import (
	"bytes"
	"context"
	"testing"

	"flowtrack/internal/models"
	"flowtrack/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

// workbook builds an .xlsx file with one sheet per entry of sheets
func workbook(t *testing.T, sheets map[string][][]string) *bytes.Reader {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sh, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, cells := range rows {
			row := sh.AddRow()
			for _, v := range cells {
				row.AddCell().SetString(v)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

var assetSheet = [][]string{
	{"Email ID", "Asset Type", "Location", "Status", "Desc", "Assigned Date"},
	{"jane@example.com", "laptop", "wfh", "assigned", "ThinkPad", "2025-01-02"},
	{"   ", "  ", "", "", "", ""},
	{"", "charger", "wfo", "open", "spare", ""},
	{"bob@example.com", "Network", "office", "closed", "VPN", ""},
}

func TestParseMapping(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no sheets", "version: 1\n", "no sheets"},
		{"unknown field", "sheets:\n  A:\n    columns:\n      X: {field: serial}\n", "unknown field"},
		{"bad key", "sheets:\n  A:\n    natural_key: [open_date]\n", "not allowed"},
		{"invalid yaml", "sheets: [", "parse mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMapping([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	m, err := DefaultMapping()
	require.NoError(t, err)
	assert.Equal(t, "TEXT?", m.Sheets["*"].Columns["TYPE"].Type)
	assert.Equal(t, "TIMESTAMP?", m.Sheets["*"].Columns["OPEN DATE"].Type)
	sc, ok := m.sheet("anything")
	require.True(t, ok)
	key, ok := sc.resolveHeader("email id")
	assert.True(t, ok)
	assert.Equal(t, "EMAIL", key)
}

func TestLoadMappingDefaultsToBuiltIn(t *testing.T) {
	m, err := LoadMapping("")
	require.NoError(t, err)
	sc, ok := m.sheet("Assets")
	require.True(t, ok)
	assert.Equal(t, []string{"email", "type", "description"}, sc.NaturalKey)
	assert.Equal(t, "Laptop", m.Defaults["type"])

	_, err = LoadMapping("/nonexistent/mapping.yaml")
	assert.ErrorContains(t, err, "read mapping")
}

func TestImportIntoStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	sink := StoreSink{Store: st}

	summary, err := Import(ctx, workbook(t, map[string][][]string{"Assets": assetSheet}), sink, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Errors)
	require.Len(t, summary.Sheets, 1)
	require.Len(t, summary.Sheets[0].Samples, 1)
	assert.Equal(t, 4, summary.Sheets[0].Samples[0].Row)

	rows, total, err := st.ListAssets(ctx, models.AssetFilter{Sort: "email"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	assert.Equal(t, "bob@example.com", rows[0].Email)
	assert.Equal(t, models.TypeNetworkIssue, rows[0].Type)
	assert.Equal(t, models.LocationWFO, rows[0].Location)
	assert.Equal(t, models.RemoteClosed, rows[0].Status)
	assert.Equal(t, models.TypeLaptop, rows[1].Type)
	assert.Equal(t, models.LocationWFH, rows[1].Location)
	assert.Equal(t, models.RemoteAssigned, rows[1].Status)
	assert.Equal(t, 2025, rows[1].OpenDate.Year())

	again, err := Import(ctx, workbook(t, map[string][][]string{"Assets": assetSheet}), sink, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, 2, again.Updated)

	_, total, err = st.ListAssets(ctx, models.AssetFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestImportDryRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	summary, err := Import(ctx, workbook(t, map[string][][]string{"Assets": assetSheet}), StoreSink{Store: st}, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Inserted)

	_, total, err := st.ListAssets(ctx, models.AssetFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestImportStopsAfterMaxErrors(t *testing.T) {
	rows := [][]string{
		{"Email", "Type"},
		{"", "laptop"},
		{"", "charger"},
		{"ok@example.com", "laptop"},
	}
	summary, err := Import(context.Background(), workbook(t, map[string][][]string{"Assets": rows}), StoreSink{Store: store.NewMemoryStore()}, ImportOptions{MaxErrors: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many errors")
	assert.Equal(t, 2, summary.Errors)
	assert.Zero(t, summary.Inserted)
}

func TestImportSkipsUnmappedSheets(t *testing.T) {
	m, err := ParseMapping([]byte(`
sheets:
  Assets:
    columns:
      EMAIL: {field: email, type: TEXT}
`))
	require.NoError(t, err)

	book := workbook(t, map[string][][]string{
		"Assets": {{"Email"}, {"a@example.com"}},
		"Notes":  {{"Email"}, {"b@example.com"}},
	})
	summary, err := Import(context.Background(), book, StoreSink{Store: store.NewMemoryStore()}, ImportOptions{Mapping: m})
	require.NoError(t, err)
	require.Len(t, summary.Sheets, 1)
	assert.Equal(t, "Assets", summary.Sheets[0].Name)
	assert.Equal(t, 1, summary.Inserted)
}

func TestParseTimestamp(t *testing.T) {
	for _, v := range []string{"2025-03-04", "03/04/2025", "2025-03-04 10:00:00", "45720"} {
		ts, err := parseTimestamp(v)
		require.NoError(t, err, v)
		assert.Equal(t, 2025, ts.Year(), v)
	}
	_, err := parseTimestamp("next tuesday")
	assert.Error(t, err)
}

func TestMatchesKey(t *testing.T) {
	rec := Record{Email: "Jane@Example.com", Type: models.TypeLaptop, Status: models.RemoteAssigned}
	a := models.Asset{Email: "jane@example.com", Type: models.TypeLaptop, Status: models.StatusMaintenance}

	assert.True(t, MatchesKey(rec, a, []string{"email", "type", "status"}))
	a.Location = models.LocationWFH
	assert.False(t, MatchesKey(rec, a, []string{"email", "location"}))
	assert.False(t, MatchesKey(rec, a, nil))
}

func TestImportConcurrentWorkers(t *testing.T) {
	rows := [][]string{{"Email", "Type", "Desc"}}
	for i := 0; i < 20; i++ {
		rows = append(rows, []string{"user@example.com", "Laptop", "unit " + string(rune('a'+i))})
	}
	st := store.NewMemoryStore()

	summary, err := Import(context.Background(), workbook(t, map[string][][]string{"Assets": rows}), StoreSink{Store: st}, ImportOptions{Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Inserted)

	_, total, err := st.ListAssets(context.Background(), models.AssetFilter{})
	require.NoError(t, err)
	assert.Equal(t, 20, total)
}
