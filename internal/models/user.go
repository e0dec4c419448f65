package models

import (
	"strings"
	"time"
)

// User represents a registered account in the backend
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	CreatedAt    time.Time `json:"created_at"`
}

// AuthUser is the body returned by /auth/login and /auth/register
type AuthUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Token    string `json:"token,omitempty"`
}

// DisplayName returns the full name, else the local part of the email, else "User"
func (u AuthUser) DisplayName(fallbackEmail string) string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	email := u.Email
	if email == "" {
		email = fallbackEmail
	}
	if local, _, _ := strings.Cut(email, "@"); local != "" {
		return local
	}
	return "User"
}

// LoginRequest represents the request body for user login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the request body for user registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Profile is a user-management record keyed by email
type Profile struct {
	ID         int64      `json:"id,omitempty"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name,omitempty"`
	Department string     `json:"department,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Location   string     `json:"location,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// ProfileUpdate represents the request body for updating a profile
type ProfileUpdate struct {
	Email      *string `json:"email,omitempty"`
	FullName   *string `json:"full_name,omitempty"`
	Department *string `json:"department,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Location   *string `json:"location,omitempty"`
}

// Apply copies the set fields onto p
func (u ProfileUpdate) Apply(p *Profile) {
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Department != nil {
		p.Department = *u.Department
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Location != nil {
		p.Location = *u.Location
	}
}

// ErrorResponse is the JSON error body used by the API
type ErrorResponse struct {
	Detail string `json:"detail"`
}
