package internal

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"flowtrack/internal/models"
)

const maxListLimit = 200

// parseAssetFilter reads status, user_email, q, sort, limit and offset from
// the request. status may repeat or be comma-separated and accepts either
// vocabulary. A missing limit means no limit.
func parseAssetFilter(r *http.Request) models.AssetFilter {
	values := r.URL.Query()

	var statuses []string
	for _, raw := range values["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, models.NormalizeRemoteStatus(s))
			}
		}
	}

	limit := 0
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > maxListLimit {
				v = maxListLimit
			}
			limit = v
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	return models.AssetFilter{
		Statuses:  statuses,
		UserEmail: strings.TrimSpace(values.Get("user_email")),
		Query:     strings.TrimSpace(values.Get("q")),
		Sort:      strings.TrimSpace(values.Get("sort")),
		Limit:     limit,
		Offset:    offset,
	}
}

// sendListResponse writes a bare JSON array, or {value, count} when the
// client asked for an envelope. The total before paging always goes in
// X-Total-Count.
func sendListResponse[T any](w http.ResponseWriter, r *http.Request, items []T, total int) {
	if items == nil {
		items = []T{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	if envelope, _ := strconv.ParseBool(r.URL.Query().Get("envelope")); envelope {
		writeJSON(w, http.StatusOK, map[string]any{"value": items, "count": total})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeDetail writes the API's error shape {"detail": "..."}
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}

// decodeBody decodes the JSON request body into v, answering 400 on failure
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request, param, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(urlParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}
