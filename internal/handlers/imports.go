package handlers

import (
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"flowtrack/internal/store"
	"flowtrack/pkg/importer"
)

// ImportsHandler handles Excel import operations
type ImportsHandler struct {
	Store    store.Store
	Pool     *pgxpool.Pool // when set, imports run in one database transaction
	Mapping  *importer.MappingConfig
	MaxBytes int64
	Logger   *slog.Logger
}

// NewImportsHandler creates a new imports handler. A nil mapping selects the
// built-in one when a workbook is read.
func NewImportsHandler(st store.Store, pool *pgxpool.Pool, mapping *importer.MappingConfig, logger *slog.Logger) *ImportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportsHandler{
		Store:    st,
		Pool:     pool,
		Mapping:  mapping,
		MaxBytes: 20 << 20, // 20 MB
		Logger:   logger,
	}
}

// UploadExcel handles Excel file uploads for asset import
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeDetail(w, http.StatusBadRequest, "content-type must be multipart/form-data")
		return
	}

	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := 50
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxErrors = n
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required: "+err.Error())
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		writeDetail(w, http.StatusBadRequest, "only .xlsx files are accepted")
		return
	}

	opts := importer.ImportOptions{
		Mapping:   h.Mapping,
		DryRun:    dryRun,
		MaxErrors: maxErrors,
	}
	var sum importer.ImportSummary
	var impErr error
	if h.Pool != nil {
		sum, impErr = importer.ImportTx(r.Context(), h.Pool, file, opts)
	} else {
		sum, impErr = importer.Import(r.Context(), file, importer.StoreSink{Store: h.Store}, opts)
	}
	if impErr != nil {
		h.Logger.Warn("excel import failed", "file", header.Filename, "err", impErr)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": impErr.Error(),
			"code":   "IMPORT_FAILED",
			"data":   sum,
		})
		return
	}

	h.Logger.Info("excel import finished", "file", header.Filename, "dry_run", dryRun,
		"inserted", sum.Inserted, "updated", sum.Updated, "skipped", sum.Skipped, "errors", sum.Errors)
	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
