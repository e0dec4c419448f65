package internal

import (
	"errors"
	"net/http"
	"strings"

	"flowtrack/internal/models"
	"flowtrack/internal/store"
)

const (
	assetNotFound = "Asset not found"
	internalError = "Internal server error"
)

// listAssets handles asset listing with filters and pagination
func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	f := parseAssetFilter(r)
	assets, total, err := s.Store.ListAssets(r.Context(), f)
	if err != nil {
		s.serverError(w, r, "list assets", err)
		return
	}
	s.Logger.Debug("listed assets", "statuses", f.Statuses, "user_email", f.UserEmail, "count", len(assets), "total", total)
	sendListResponse(w, r, assets, total)
}

// getAsset handles getting a single asset by ID
func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", assetNotFound)
	if !ok {
		return
	}
	a, err := s.Store.GetAsset(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, assetNotFound)
		return
	}
	if err != nil {
		s.serverError(w, r, "get asset", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// createAsset handles creating a new asset. Type, location and status are
// normalized; location and status default to WFO and Open.
func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeDetail(w, http.StatusBadRequest, "email is required")
		return
	}
	assetType := models.NormalizeType(req.Type)
	if assetType == "" {
		assetType = models.TypeLaptop
	}

	a := models.StoredAsset{
		Email:    email,
		Type:     assetType,
		Location: models.NormalizeLocation(deref(req.Location)),
		Status:   models.NormalizeRemoteStatus(deref(req.Status)),
	}
	if req.Description != nil {
		d := *req.Description
		a.Description = &d
	}

	created, err := s.Store.CreateAsset(r.Context(), a)
	if err != nil {
		s.serverError(w, r, "create asset", err)
		return
	}
	s.Logger.Info("asset created", "id", created.ID, "email", created.Email, "status", created.Status)
	writeJSON(w, http.StatusCreated, created)
}

// updateAsset applies the fields present in the body
func (s *Server) updateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", assetNotFound)
	if !ok {
		return
	}
	var req models.UpdateAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Email != nil {
		e := strings.TrimSpace(*req.Email)
		if e == "" {
			writeDetail(w, http.StatusBadRequest, "email cannot be empty")
			return
		}
		req.Email = &e
	}
	if req.Type != nil {
		t := models.NormalizeType(*req.Type)
		req.Type = &t
	}
	if req.Location != nil {
		l := models.NormalizeLocation(*req.Location)
		req.Location = &l
	}
	if req.Status != nil {
		st := models.NormalizeRemoteStatus(*req.Status)
		req.Status = &st
	}

	updated, err := s.Store.UpdateAsset(r.Context(), id, req)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, assetNotFound)
		return
	}
	if err != nil {
		s.serverError(w, r, "update asset", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// deleteAsset handles asset deletion
func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", assetNotFound)
	if !ok {
		return
	}
	err := s.Store.DeleteAsset(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, assetNotFound)
		return
	}
	if err != nil {
		s.serverError(w, r, "delete asset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serverError logs err under the request id; the client only sees a generic
// detail
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.Logger.Error(op+" failed", "err", err, "request_id", requestID(r.Context()))
	writeDetail(w, http.StatusInternalServerError, internalError)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
