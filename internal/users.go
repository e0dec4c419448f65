package internal

import (
	"errors"
	"net/http"
	"strings"

	"flowtrack/internal/models"
	"flowtrack/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only looks at the first 72 bytes of a password
const bcryptMaxBytes = 72

const invalidCredentials = "Invalid email or password"

func passwordBytes(pw string) []byte {
	b := []byte(pw)
	if len(b) > bcryptMaxBytes {
		b = b[:bcryptMaxBytes]
	}
	return b
}

// registerUser creates an account and returns it with a session token
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	if _, err := s.Store.UserByEmail(r.Context(), req.Email); err == nil {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.serverError(w, r, "register", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword(passwordBytes(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.serverError(w, r, "hash password", err)
		return
	}

	user, err := s.Store.CreateUser(r.Context(), models.User{
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
	})
	if errors.Is(err, store.ErrDuplicate) {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		s.serverError(w, r, "register", err)
		return
	}

	s.Logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	s.sendAuthUser(w, r, http.StatusCreated, user)
}

// loginUser handles user authentication
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.Store.UserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusUnauthorized, invalidCredentials)
		return
	}
	if err != nil {
		s.serverError(w, r, "login", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), passwordBytes(req.Password)); err != nil {
		s.Logger.Info("login rejected", "email", user.Email)
		writeDetail(w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	s.sendAuthUser(w, r, http.StatusOK, user)
}

func (s *Server) sendAuthUser(w http.ResponseWriter, r *http.Request, status int, user models.User) {
	token, err := s.JWTManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		s.serverError(w, r, "generate token", err)
		return
	}
	writeJSON(w, status, models.AuthUser{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Token:    token,
	})
}
