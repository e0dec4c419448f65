package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flowtrack/internal/board"

	"github.com/go-chi/chi/v5"
)

func TestMetricsEndpoint(t *testing.T) {
	m := New()
	router := chi.NewRouter()
	router.Use(m.Middleware())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Get("/metrics", m.Handler().ServeHTTP)

	testW := httptest.NewRecorder()
	router.ServeHTTP(testW, httptest.NewRequest("GET", "/health", nil))
	if testW.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", testW.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, metric := range []string{"http_requests_total", "http_request_duration_seconds"} {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric '%s' not found in response", metric)
		}
	}
	if !strings.Contains(body, `path="/health"`) {
		t.Error("Expected metrics to contain path label for /health")
	}
}

func TestMetricsWithChiRoutePatterns(t *testing.T) {
	m := New()
	router := chi.NewRouter()
	router.Use(m.Middleware())
	router.Get("/assets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router.Get("/metrics", m.Handler().ServeHTTP)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/assets/123", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body := w.Body.String()

	if !strings.Contains(body, `path="/assets/{id}"`) {
		t.Error("Expected metrics to contain chi route pattern, not actual path")
	}
	if !strings.Contains(body, `status="Not Found"`) {
		t.Error("Expected status label for the 404 response")
	}
}

func TestMutationCounter(t *testing.T) {
	c := NewMutationCounter()
	var _ board.Observer = c

	c.ObserveMutation("move", board.StateCommitted)
	c.ObserveMutation("move", board.StateCommitted)
	c.ObserveMutation("move", board.StateDiverged)

	if got := c.Count("move", board.StateCommitted); got != 2 {
		t.Errorf("committed moves = %v, want 2", got)
	}
	if got := c.Count("move", board.StateDiverged); got != 1 {
		t.Errorf("diverged moves = %v, want 1", got)
	}
	if got := c.Count("delete", board.StateCommitted); got != 0 {
		t.Errorf("deletes = %v, want 0", got)
	}

	path := filepath.Join(t.TempDir(), "board.prom")
	if err := c.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `board_mutations_total{op="move",state="committed"} 2`) {
		t.Errorf("unexpected textfile contents:\n%s", data)
	}
}
