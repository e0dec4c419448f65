// Package store persists assets, accounts and user profiles for the API
// server. MemoryStore serves development and tests; PostgresStore is used
// when a database DSN is configured.
package store

import (
	"context"
	"errors"
	"strings"

	"flowtrack/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Store interface {
	// ListAssets returns the page selected by f and the total number of
	// matches before paging
	ListAssets(ctx context.Context, f models.AssetFilter) ([]models.StoredAsset, int, error)
	GetAsset(ctx context.Context, id int64) (models.StoredAsset, error)
	CreateAsset(ctx context.Context, a models.StoredAsset) (models.StoredAsset, error)
	UpdateAsset(ctx context.Context, id int64, u models.UpdateAssetRequest) (models.StoredAsset, error)
	DeleteAsset(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, u models.User) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)

	ListProfiles(ctx context.Context) ([]models.Profile, error)
	GetProfile(ctx context.Context, id int64) (models.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (models.Profile, error)
	CreateProfile(ctx context.Context, p models.Profile) (models.Profile, error)
	UpdateProfile(ctx context.Context, id int64, u models.ProfileUpdate) (models.Profile, error)
	UpsertProfile(ctx context.Context, p models.Profile) (models.Profile, error)
	DeleteProfile(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close() error
}

type sortKey struct {
	field string
	desc  bool
}

var sortableAssetFields = map[string]bool{
	"id":        true,
	"email":     true,
	"type":      true,
	"location":  true,
	"status":    true,
	"open_date": true,
}

// parseSort reads a comma-separated sort parameter; a leading '-' sorts
// descending. Unknown fields are ignored. The default is newest first.
func parseSort(param string) []sortKey {
	var keys []sortKey
	for _, raw := range strings.Split(param, ",") {
		s := strings.TrimSpace(raw)
		desc := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		if !sortableAssetFields[s] {
			continue
		}
		keys = append(keys, sortKey{field: s, desc: desc})
	}
	if len(keys) == 0 {
		keys = []sortKey{{field: "open_date", desc: true}}
	}
	return append(keys, sortKey{field: "id"})
}

// closesAsset reports whether a status change should stamp close_date
func closesAsset(status string) bool {
	return status == models.RemoteClosed
}
