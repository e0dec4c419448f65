package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"flowtrack/internal/models"
)

type MemoryStore struct {
	mu       sync.Mutex
	assets   map[int64]models.StoredAsset
	users    map[int64]models.User
	profiles map[int64]models.Profile
	nextID   int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets:   make(map[int64]models.StoredAsset),
		users:    make(map[int64]models.User),
		profiles: make(map[int64]models.Profile),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *MemoryStore) ListAssets(_ context.Context, f models.AssetFilter) ([]models.StoredAsset, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := strings.ToLower(f.Query)
	out := make([]models.StoredAsset, 0, len(m.assets))
	for _, a := range m.assets {
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
			continue
		}
		if f.UserEmail != "" && !strings.EqualFold(a.Email, f.UserEmail) {
			continue
		}
		if query != "" && !matchesQuery(a, query) {
			continue
		}
		out = append(out, a)
	}

	keys := parseSort(f.Sort)
	slices.SortFunc(out, func(a, b models.StoredAsset) int {
		for _, k := range keys {
			c := compareAssets(a, b, k.field)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	total := len(out)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			out = out[:0]
		} else {
			out = out[f.Offset:]
		}
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func matchesQuery(a models.StoredAsset, query string) bool {
	if strings.Contains(strings.ToLower(a.Email), query) {
		return true
	}
	return a.Description != nil && strings.Contains(strings.ToLower(*a.Description), query)
}

func compareAssets(a, b models.StoredAsset, field string) int {
	switch field {
	case "email":
		return cmp.Compare(a.Email, b.Email)
	case "type":
		return cmp.Compare(a.Type, b.Type)
	case "location":
		return cmp.Compare(a.Location, b.Location)
	case "status":
		return cmp.Compare(a.Status, b.Status)
	case "open_date":
		return a.OpenDate.Compare(b.OpenDate)
	}
	return cmp.Compare(a.ID, b.ID)
}

func (m *MemoryStore) GetAsset(_ context.Context, id int64) (models.StoredAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return models.StoredAsset{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) CreateAsset(_ context.Context, a models.StoredAsset) (models.StoredAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	if a.OpenDate.IsZero() {
		a.OpenDate = m.now()
	}
	if a.CloseDate == nil && closesAsset(a.Status) {
		t := m.now()
		a.CloseDate = &t
	}
	m.assets[a.ID] = a
	return a, nil
}

func (m *MemoryStore) UpdateAsset(_ context.Context, id int64, u models.UpdateAssetRequest) (models.StoredAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return models.StoredAsset{}, ErrNotFound
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.Type != nil {
		a.Type = *u.Type
	}
	if u.Location != nil {
		a.Location = *u.Location
	}
	if u.Description != nil {
		d := *u.Description
		a.Description = &d
	}
	if u.Status != nil {
		a.Status = *u.Status
		switch {
		case !closesAsset(a.Status):
			a.CloseDate = nil
		case a.CloseDate == nil:
			t := m.now()
			a.CloseDate = &t
		}
	}
	m.assets[id] = a
	return a, nil
}

func (m *MemoryStore) DeleteAsset(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return ErrNotFound
	}
	delete(m.assets, id)
	return nil
}

func (m *MemoryStore) CreateUser(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return models.User{}, ErrDuplicate
		}
	}
	u.ID = m.id()
	u.CreatedAt = m.now()
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MemoryStore) ListProfiles(_ context.Context) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Profile) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) GetProfile(_ context.Context, id int64) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return models.Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) ProfileByEmail(_ context.Context, email string) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profileByEmail(email); ok {
		return p, nil
	}
	return models.Profile{}, ErrNotFound
}

func (m *MemoryStore) profileByEmail(email string) (models.Profile, bool) {
	for _, p := range m.profiles {
		if p.Email == email {
			return p, true
		}
	}
	return models.Profile{}, false
}

func (m *MemoryStore) CreateProfile(_ context.Context, p models.Profile) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profileByEmail(p.Email); exists {
		return models.Profile{}, ErrDuplicate
	}
	return m.insertProfile(p), nil
}

func (m *MemoryStore) insertProfile(p models.Profile) models.Profile {
	now := m.now()
	p.ID = m.id()
	p.CreatedAt = &now
	p.UpdatedAt = &now
	m.profiles[p.ID] = p
	return p
}

func (m *MemoryStore) UpdateProfile(_ context.Context, id int64, u models.ProfileUpdate) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return models.Profile{}, ErrNotFound
	}
	if u.Email != nil && *u.Email != p.Email {
		if _, taken := m.profileByEmail(*u.Email); taken {
			return models.Profile{}, ErrDuplicate
		}
	}
	u.Apply(&p)
	now := m.now()
	p.UpdatedAt = &now
	m.profiles[id] = p
	return p, nil
}

func (m *MemoryStore) UpsertProfile(_ context.Context, p models.Profile) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.profileByEmail(p.Email)
	if !ok {
		return m.insertProfile(p), nil
	}
	now := m.now()
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = &now
	m.profiles[p.ID] = p
	return p, nil
}

func (m *MemoryStore) DeleteProfile(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
