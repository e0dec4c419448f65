package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"flowtrack/internal/models"
)

// AuthError is a rejected login or registration. Message is the server's
// detail when it sent one, else a generic message fit for display.
type AuthError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, email, password string) (models.AuthUser, error) {
	body := models.LoginRequest{Email: email, Password: password}
	return c.authenticate(ctx, "login", "/auth/login", body, "Login failed")
}

// Register creates an account and returns it as if logged in
func (c *Client) Register(ctx context.Context, email, password, fullName string) (models.AuthUser, error) {
	body := models.RegisterRequest{Email: email, Password: password, FullName: fullName}
	return c.authenticate(ctx, "register", "/auth/register", body, "Registration failed")
}

func (c *Client) authenticate(ctx context.Context, op, path string, body any, fallback string) (models.AuthUser, error) {
	data, err := c.do(ctx, op, http.MethodPost, path, body)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			msg := fe.Detail
			if msg == "" {
				msg = fallback
			}
			return models.AuthUser{}, &AuthError{Op: op, StatusCode: fe.StatusCode, Message: msg}
		}
		return models.AuthUser{}, err
	}

	var user models.AuthUser
	if err := json.Unmarshal(data, &user); err != nil {
		return models.AuthUser{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return user, nil
}
