package internal

import (
	"errors"
	"net/http"
	"strings"

	"flowtrack/internal/models"
	"flowtrack/internal/store"
)

const userNotFound = "User not found"

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.Store.ListProfiles(r.Context())
	if err != nil {
		s.serverError(w, r, "list profiles", err)
		return
	}
	sendListResponse(w, r, profiles, len(profiles))
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", userNotFound)
	if !ok {
		return
	}
	p, err := s.Store.GetProfile(r.Context(), id)
	s.sendProfile(w, r, http.StatusOK, p, err)
}

func (s *Server) getProfileByEmail(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.ProfileByEmail(r.Context(), urlParam(r, "email"))
	s.sendProfile(w, r, http.StatusOK, p, err)
}

func (s *Server) createProfile(w http.ResponseWriter, r *http.Request) {
	var p models.Profile
	if !decodeBody(w, r, &p) {
		return
	}
	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" {
		writeDetail(w, http.StatusBadRequest, "email is required")
		return
	}
	created, err := s.Store.CreateProfile(r.Context(), p)
	s.sendProfile(w, r, http.StatusCreated, created, err)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", userNotFound)
	if !ok {
		return
	}
	var u models.ProfileUpdate
	if !decodeBody(w, r, &u) {
		return
	}
	if u.Email != nil && strings.TrimSpace(*u.Email) == "" {
		writeDetail(w, http.StatusBadRequest, "email cannot be empty")
		return
	}
	updated, err := s.Store.UpdateProfile(r.Context(), id, u)
	s.sendProfile(w, r, http.StatusOK, updated, err)
}

// upsertProfile creates or replaces the profile stored under the path email
func (s *Server) upsertProfile(w http.ResponseWriter, r *http.Request) {
	var p models.Profile
	if !decodeBody(w, r, &p) {
		return
	}
	p.Email = strings.TrimSpace(urlParam(r, "email"))
	saved, err := s.Store.UpsertProfile(r.Context(), p)
	s.sendProfile(w, r, http.StatusOK, saved, err)
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", userNotFound)
	if !ok {
		return
	}
	err := s.Store.DeleteProfile(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, userNotFound)
		return
	}
	if err != nil {
		s.serverError(w, r, "delete profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

func (s *Server) sendProfile(w http.ResponseWriter, r *http.Request, status int, p models.Profile, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeDetail(w, http.StatusNotFound, userNotFound)
	case errors.Is(err, store.ErrDuplicate):
		writeDetail(w, http.StatusBadRequest, "Email already registered")
	case err != nil:
		s.serverError(w, r, "profile", err)
	default:
		writeJSON(w, status, p)
	}
}
