package main

import (
	"context"
	"sync"

	"flowtrack/internal/apiclient"
	"flowtrack/internal/models"
	"flowtrack/pkg/importer"
)

// apiSink imports through the REST API. The asset list is fetched once and
// kept current as rows are written, so repeated rows in one workbook update
// the record the earlier row created. Concurrent workers may still both
// insert identical rows.
type apiSink struct {
	client *apiclient.Client

	mu       sync.RWMutex
	existing []models.Asset
}

func newAPISink(ctx context.Context, client *apiclient.Client) (*apiSink, error) {
	existing, err := client.List(ctx)
	if err != nil {
		return nil, err
	}
	return &apiSink{client: client, existing: existing}, nil
}

func (s *apiSink) Lookup(_ context.Context, rec importer.Record, key []string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.existing {
		if importer.MatchesKey(rec, a, key) {
			return a.ID, nil
		}
	}
	return "", nil
}

func (s *apiSink) Insert(ctx context.Context, rec importer.Record) error {
	status, _ := models.StatusFromRemote(rec.Status)
	created, err := s.client.Create(ctx, models.Asset{
		Email:       rec.Email,
		Type:        rec.Type,
		Location:    rec.Location,
		Status:      status,
		Description: rec.Description,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.existing = append(s.existing, created)
	s.mu.Unlock()
	return nil
}

func (s *apiSink) Update(ctx context.Context, id string, rec importer.Record) error {
	status, _ := models.StatusFromRemote(rec.Status)
	updated, err := s.client.Update(ctx, id, models.AssetPatch{
		Type:        &rec.Type,
		Location:    &rec.Location,
		Status:      &status,
		Description: &rec.Description,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.existing {
		if s.existing[i].ID == id {
			s.existing[i] = updated
		}
	}
	s.mu.Unlock()
	return nil
}
