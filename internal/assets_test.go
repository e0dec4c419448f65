package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flowtrack/internal/config"
	"flowtrack/internal/models"
	"flowtrack/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:   "test-secret-key-that-is-long-enough-for-testing",
		JWTIssuer:   "flowtrack-api",
		JWTAudience: "flowtrack-board",
		JWTExpiry:   time.Hour,
	}
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	s, err := NewServer(store.NewMemoryStore(), nil, cfg, nil)
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createAssetVia(t *testing.T, s *Server, body map[string]any) models.StoredAsset {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/assets", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.StoredAsset](t, w)
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Flow Track API is running", decode[map[string]string](t, w)["message"])

	w = doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "healthy", "service": "Flow Track API"}, decode[map[string]string](t, w))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = doJSON(t, s, http.MethodGet, "/health", nil, "X-Request-ID", "abc")
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestCreateAssetNormalizes(t *testing.T) {
	s := newTestServer(t)

	a := createAssetVia(t, s, map[string]any{
		"email":  " jane@example.com ",
		"type":   "network issue",
		"status": "maintenance",
	})
	assert.NotZero(t, a.ID)
	assert.Equal(t, "jane@example.com", a.Email)
	assert.Equal(t, models.TypeNetworkIssue, a.Type)
	assert.Equal(t, models.LocationWFO, a.Location)
	assert.Equal(t, models.RemoteAssigned, a.Status)
	assert.False(t, a.OpenDate.IsZero())

	w := doJSON(t, s, http.MethodPost, "/assets", map[string]any{"type": "Laptop"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email is required", decode[models.ErrorResponse](t, w).Detail)

	req := httptest.NewRequest(http.MethodPost, "/assets", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAssetsFilters(t *testing.T) {
	s := newTestServer(t)
	createAssetVia(t, s, map[string]any{"email": "a@example.com", "type": "Laptop", "status": "Open"})
	createAssetVia(t, s, map[string]any{"email": "b@example.com", "type": "Charger", "status": "inactive"})
	createAssetVia(t, s, map[string]any{"email": "a@example.com", "type": "Charger", "status": "Assigned", "description": "spare"})

	w := doJSON(t, s, http.MethodGet, "/assets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.StoredAsset](t, w), 3)
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))

	w = doJSON(t, s, http.MethodGet, "/assets?status=active,closed", nil)
	got := decode[[]models.StoredAsset](t, w)
	require.Len(t, got, 2)
	for _, a := range got {
		assert.Contains(t, []string{models.RemoteOpen, models.RemoteClosed}, a.Status)
	}

	w = doJSON(t, s, http.MethodGet, "/assets?user_email=A@example.com", nil)
	assert.Len(t, decode[[]models.StoredAsset](t, w), 2)

	w = doJSON(t, s, http.MethodGet, "/assets?q=spare", nil)
	assert.Len(t, decode[[]models.StoredAsset](t, w), 1)

	w = doJSON(t, s, http.MethodGet, "/assets?envelope=true&limit=1", nil)
	env := decode[struct {
		Value []models.StoredAsset `json:"value"`
		Count int                  `json:"count"`
	}](t, w)
	assert.Len(t, env.Value, 1)
	assert.Equal(t, 3, env.Count)
}

func TestListAssetsEmptyIsArray(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/assets", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestAssetUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	a := createAssetVia(t, s, map[string]any{"email": "a@example.com", "type": "Laptop"})
	path := "/assets/" + itoa(a.ID)

	w := doJSON(t, s, http.MethodPut, path, map[string]any{"status": "inactive", "location": "wfh"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.StoredAsset](t, w)
	assert.Equal(t, models.RemoteClosed, updated.Status)
	assert.Equal(t, models.LocationWFH, updated.Location)
	assert.NotNil(t, updated.CloseDate)
	assert.Equal(t, "a@example.com", updated.Email)

	w = doJSON(t, s, http.MethodPut, path, map[string]any{"email": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w = doJSON(t, s, method, path, map[string]any{})
		assert.Equal(t, http.StatusNotFound, w.Code, method)
		assert.Equal(t, "Asset not found", decode[models.ErrorResponse](t, w).Detail)
	}

	w = doJSON(t, s, http.MethodGet, "/assets/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.RequireAuth = true })

	w := doJSON(t, s, http.MethodGet, "/assets", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, s, http.MethodPost, "/auth/register", map[string]any{"email": "jane@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code)
	user := decode[models.AuthUser](t, w)

	w = doJSON(t, s, http.MethodGet, "/assets", nil, "Authorization", "Bearer "+user.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	disabled := newTestServer(t)
	w := doJSON(t, disabled, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	enabled := newTestServer(t, func(c *config.Config) { c.EnableMetrics = true })
	doJSON(t, enabled, http.MethodGet, "/assets", nil)
	w = doJSON(t, enabled, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `path="/assets"`)
}

type failingStore struct {
	*store.MemoryStore
	err error
}

func (f failingStore) ListAssets(context.Context, models.AssetFilter) ([]models.StoredAsset, int, error) {
	return nil, 0, f.err
}

func (f failingStore) DeleteAsset(context.Context, int64) error {
	return f.err
}

func TestStoreFailureHidesCause(t *testing.T) {
	cause := errors.New(`pq: relation "assets" does not exist at 10.0.0.7:5432`)
	s, err := NewServer(failingStore{MemoryStore: store.NewMemoryStore(), err: cause}, nil, testConfig(), nil)
	require.NoError(t, err)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/assets"},
		{http.MethodDelete, "/assets/1"},
	} {
		w := doJSON(t, s, tc.method, tc.path, nil, "X-Request-ID", "req-500")
		require.Equal(t, http.StatusInternalServerError, w.Code, tc.path)
		body := decode[map[string]string](t, w)
		assert.Equal(t, "Internal server error", body["detail"])
		assert.NotContains(t, w.Body.String(), "pq:")
		assert.NotContains(t, w.Body.String(), "10.0.0.7")
		assert.Equal(t, "req-500", w.Header().Get("X-Request-ID"))
	}
}

func TestNewServerLoadsBuiltInMapping(t *testing.T) {
	s, err := NewServer(store.NewMemoryStore(), nil, testConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, s.Router)

	cfg := testConfig()
	cfg.ImportMapping = "/nonexistent/mapping.yaml"
	_, err = NewServer(store.NewMemoryStore(), nil, cfg, nil)
	assert.Error(t, err)
}

func TestNewServerRejectsWeakSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "short"
	_, err := NewServer(store.NewMemoryStore(), nil, cfg, nil)
	assert.Error(t, err)
}
