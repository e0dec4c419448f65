// Package account signs users in and out and keeps the session store in
// step with the outcome.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"flowtrack/internal/models"
	"flowtrack/internal/session"
)

// Authenticator is the part of the API client used for sign-in
type Authenticator interface {
	Login(ctx context.Context, email, password string) (models.AuthUser, error)
	Register(ctx context.Context, email, password, fullName string) (models.AuthUser, error)
}

type Service struct {
	auth     Authenticator
	sessions *session.Manager
	logger   *slog.Logger
}

func New(auth Authenticator, sessions *session.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{auth: auth, sessions: sessions, logger: logger}
}

// Init restores the stored session, if any. A malformed entry is discarded
// and reported as signed out.
func (s *Service) Init() (*session.Session, error) {
	sess, err := s.sessions.Load()
	if errors.Is(err, session.ErrMalformedSession) {
		return nil, nil
	}
	return sess, err
}

// Login authenticates and stores the session. Any failure leaves the user
// signed out; the returned error carries the message to show.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, error) {
	email = strings.TrimSpace(email)
	user, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.signOut("login")
		return session.Session{}, err
	}
	return s.store(user, email)
}

// Register creates the account and signs it in
func (s *Service) Register(ctx context.Context, email, password, fullName string) (session.Session, error) {
	email = strings.TrimSpace(email)
	user, err := s.auth.Register(ctx, email, password, strings.TrimSpace(fullName))
	if err != nil {
		s.signOut("register")
		return session.Session{}, err
	}
	return s.store(user, email)
}

func (s *Service) Logout() error {
	return s.sessions.Clear()
}

func (s *Service) Current() (session.Session, bool) {
	return s.sessions.Current()
}

func (s *Service) store(user models.AuthUser, email string) (session.Session, error) {
	sess := session.Session{
		ID:    user.ID,
		Name:  user.DisplayName(email),
		Email: user.Email,
		Token: user.Token,
	}
	if sess.Email == "" {
		sess.Email = email
	}
	if err := s.sessions.Save(sess); err != nil {
		return session.Session{}, err
	}
	s.logger.Info("signed in", "email", sess.Email)
	return sess, nil
}

func (s *Service) signOut(op string) {
	if err := s.sessions.Clear(); err != nil {
		s.logger.Warn("clearing session failed", "op", op, "error", err)
	}
}
