package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"flowtrack/internal/apiclient"
	"flowtrack/internal/config"
	"flowtrack/pkg/importer"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
)

func main() {
	cfg := config.Load()

	var (
		filePath    = pflag.StringP("file", "f", "", "workbook to import (.xlsx)")
		mappingPath = pflag.String("mapping", cfg.ImportMapping, "YAML column mapping (default built-in)")
		dryRun      = pflag.Bool("dry-run", false, "report what would change without writing")
		maxErrors   = pflag.Int("max-errors", 50, "stop after this many row errors")
		workers     = pflag.Int("workers", 4, "concurrent API requests")
		apiURL      = pflag.String("api", cfg.APIBaseURL, "API base URL")
		token       = pflag.String("token", os.Getenv("FLOWTRACK_TOKEN"), "bearer token for the API")
		dsn         = pflag.String("dsn", "", "write straight to Postgres in one transaction instead of the API")
	)
	pflag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: import_excel --file=path.xlsx [--mapping=...] [--dry-run] [--api=URL | --dsn=DSN]")
		os.Exit(2)
	}

	logger := cfg.NewLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mapping, err := importer.LoadMapping(*mappingPath)
	if err != nil {
		logger.Error("load mapping", "err", err)
		os.Exit(1)
	}

	file, err := os.Open(*filePath)
	if err != nil {
		logger.Error("failed to open Excel file", "err", err)
		os.Exit(1)
	}
	defer file.Close()

	opts := importer.ImportOptions{
		Mapping:   mapping,
		DryRun:    *dryRun,
		MaxErrors: *maxErrors,
		Workers:   *workers,
	}

	var summary importer.ImportSummary
	if *dsn != "" {
		fmt.Printf("Importing %s into Postgres (dry_run=%v)\n", *filePath, *dryRun)
		summary, err = importToDB(ctx, *dsn, file, opts)
	} else {
		fmt.Printf("Importing %s through %s (dry_run=%v)\n", *filePath, *apiURL, *dryRun)
		client := apiclient.New(*apiURL,
			apiclient.WithLogger(logger),
			apiclient.WithToken(func() string { return *token }),
		)
		var sink *apiSink
		sink, err = newAPISink(ctx, client)
		if err == nil {
			summary, err = importer.Import(ctx, file, sink, opts)
		}
	}

	printSummary(os.Stdout, summary)
	if err != nil {
		logger.Error("import failed", "err", err)
		os.Exit(1)
	}
}

func importToDB(ctx context.Context, dsn string, r io.Reader, opts importer.ImportOptions) (importer.ImportSummary, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return importer.ImportSummary{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	return importer.ImportTx(ctx, pool, r, opts)
}

func printSummary(w io.Writer, summary importer.ImportSummary) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "IMPORT SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Total inserted: %d\n", summary.Inserted)
	fmt.Fprintf(w, "Total updated: %d\n", summary.Updated)
	fmt.Fprintf(w, "Total skipped: %d\n", summary.Skipped)
	fmt.Fprintf(w, "Total errors: %d\n", summary.Errors)
	fmt.Fprintf(w, "Dry run: %v\n", summary.DryRun)

	if len(summary.Sheets) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSheet Details:")
	for _, sheet := range summary.Sheets {
		fmt.Fprintf(w, "  %s: inserted=%d, updated=%d, skipped=%d, errors=%d\n",
			sheet.Name, sheet.Inserted, sheet.Updated, sheet.Skipped, sheet.Errors)
		for _, sample := range sheet.Samples {
			fmt.Fprintf(w, "      Row %d: %s\n", sample.Row, sample.Message)
		}
	}
}
