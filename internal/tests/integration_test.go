//go:build integration

package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flowtrack/internal"
	"flowtrack/internal/config"
	"flowtrack/internal/models"
	"flowtrack/internal/store"
	"flowtrack/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:   "supersecretkeyforintegrationtestingonly",
		JWTIssuer:   "flowtrack-api",
		JWTAudience: "flowtrack-board",
		JWTExpiry:   24 * time.Hour,
		RequireAuth: true,
	}
}

// newServer returns a server over a freshly migrated database
func newServer(t *testing.T) (*internal.Server, *store.PostgresStore) {
	t.Helper()
	pg := testutil.NewTestStore(t)
	srv, err := internal.NewServer(pg, pg.Pool, testConfig(), nil)
	require.NoError(t, err)
	return srv, pg
}

func do(t *testing.T, srv *internal.Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, srv *internal.Server, email string) models.AuthUser {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/auth/register", "", map[string]any{"email": email, "password": "s3cret", "full_name": "Test User"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user models.AuthUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	return user
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newServer(t)

	w := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"Flow Track API"}`, w.Body.String())
}

func TestAuthFlow(t *testing.T) {
	srv, _ := newServer(t)

	w := do(t, srv, http.MethodGet, "/assets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, srv, http.MethodGet, "/assets", "invalid-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	user := register(t, srv, "jane@example.com")
	assert.NotZero(t, user.ID)

	w = do(t, srv, http.MethodPost, "/auth/register", "", map[string]any{"email": "jane@example.com", "password": "other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/auth/login", "", map[string]any{"email": "jane@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	var login models.AuthUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, user.ID, login.ID)

	w = do(t, srv, http.MethodPost, "/auth/login", "", map[string]any{"email": "jane@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, srv, http.MethodGet, "/assets", login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestMigrateIsIdempotent(t *testing.T) {
	_, pg := newServer(t)

	applied, err := store.Migrate(context.Background(), pg.DB, nil)
	require.NoError(t, err)
	assert.Zero(t, applied)
}
