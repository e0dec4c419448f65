package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"flowtrack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		var req models.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jane@example.com", req.Email)
		assert.Equal(t, "hunter22", req.Password)
		respond(w, http.StatusOK, `{"id":5,"email":"jane@example.com","full_name":"Jane Doe","token":"jwt"}`)
	})

	user, err := c.Login(context.Background(), "jane@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, int64(5), user.ID)
	assert.Equal(t, "Jane Doe", user.FullName)
	assert.Equal(t, "jwt", user.Token)
}

func TestAuthErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		login   bool
		message string
	}{
		{name: "login detail", status: http.StatusUnauthorized, body: `{"detail":"Invalid email or password"}`, login: true, message: "Invalid email or password"},
		{name: "login no detail", status: http.StatusInternalServerError, body: `oops`, login: true, message: "Login failed"},
		{name: "register detail", status: http.StatusBadRequest, body: `{"detail":"Email already registered"}`, message: "Email already registered"},
		{name: "register validation list", status: http.StatusUnprocessableEntity, body: `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`, message: "value is not a valid email address"},
		{name: "register no detail", status: http.StatusBadGateway, body: `{}`, message: "Registration failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				respond(w, tt.status, tt.body)
			})

			var err error
			if tt.login {
				_, err = c.Login(context.Background(), "a@b.com", "pw")
			} else {
				_, err = c.Register(context.Background(), "a@b.com", "pw", "A")
			}
			require.Error(t, err)

			var ae *AuthError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.message, ae.Error())
			assert.Equal(t, tt.status, ae.StatusCode)
		})
	}
}

func TestGetProfileNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users-management/email/ghost@example.com", r.URL.Path)
		respond(w, http.StatusNotFound, `{"detail":"User not found"}`)
	})

	p, err := c.GetProfile(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSaveProfileUpdatesExisting(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			respond(w, http.StatusOK, `{"id":12,"email":"jane@example.com","full_name":"Jane"}`)
		case http.MethodPut:
			var p models.Profile
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			p.ID = 12
			out, _ := json.Marshal(p)
			respond(w, http.StatusOK, string(out))
		default:
			t.Errorf("unexpected %s", r.Method)
		}
	})

	saved, err := c.SaveProfile(context.Background(), models.Profile{Email: "jane@example.com", Department: "IT"})
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /users-management/email/jane@example.com", "PUT /users-management/12"}, calls)
	assert.Equal(t, int64(12), saved.ID)
	assert.Equal(t, "IT", saved.Department)
}

func TestSaveProfileCreatesMissing(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			respond(w, http.StatusNotFound, `{"detail":"User not found"}`)
		case http.MethodPost:
			respond(w, http.StatusCreated, `{"id":3,"email":"new@example.com"}`)
		}
	})

	saved, err := c.SaveProfile(context.Background(), models.Profile{Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /users-management/email/new@example.com", "POST /users-management"}, calls)
	assert.Equal(t, int64(3), saved.ID)
}

func TestSaveProfileLookupFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusInternalServerError, `{}`)
	})

	_, err := c.SaveProfile(context.Background(), models.Profile{Email: "x@example.com"})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
}

func TestUpsertProfileSingleRequest(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users-management/email/jane@example.com", r.URL.Path)
		respond(w, http.StatusOK, `{"id":4,"email":"jane@example.com"}`)
	})

	saved, err := c.UpsertProfile(context.Background(), models.Profile{Email: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(4), saved.ID)
}

func TestListAndDeleteProfiles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			respond(w, http.StatusOK, `[{"id":1,"email":"a@b.com"},{"id":2,"email":"c@d.com"}]`)
		case http.MethodDelete:
			assert.Equal(t, "/users-management/2", r.URL.Path)
			respond(w, http.StatusOK, `{"ok":true}`)
		}
	})

	profiles, err := c.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	require.NoError(t, c.DeleteProfile(context.Background(), 2))
}
