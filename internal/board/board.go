// Package board keeps a local copy of the asset list and applies user
// mutations optimistically: the cache changes first, the API call follows,
// and failures are compensated according to the configured rollback policy.
package board

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"flowtrack/internal/models"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound      = errors.New("asset not found")
	ErrEmailRequired = errors.New("email is required")
	ErrClosed        = errors.New("board closed")
)

// Remote is the subset of the API client the board drives
type Remote interface {
	List(ctx context.Context) ([]models.Asset, error)
	Create(ctx context.Context, a models.Asset) (models.Asset, error)
	Update(ctx context.Context, id string, p models.AssetPatch) (models.Asset, error)
	Delete(ctx context.Context, id string) error
}

// Notifier receives the outcome message of every mutation
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Observer is told how each mutation settled
type Observer interface {
	ObserveMutation(op string, state State)
}

// State is the lifecycle of the latest mutation on a record
type State string

const (
	StateIdle      State = "idle"
	StateApplying  State = "applying"
	StateCommitted State = "committed"
	StateReverted  State = "reverted"
	StateDiverged  State = "diverged"
)

// Policy selects how failed mutations are compensated
type Policy string

const (
	// PolicyDiverge keeps failed moves and edits in the cache and marks the
	// record Diverged until the next refresh. Failed creates and deletes
	// resynchronize from the API.
	PolicyDiverge Policy = "diverge"
	// PolicyRevert restores the pre-mutation value for every failure.
	PolicyRevert Policy = "revert"
)

// Draft is the user input for a new asset. Empty fields take defaults.
type Draft struct {
	Email       string
	Type        string
	Location    string
	Status      models.Status
	Description string
}

// Column is one status lane of the board
type Column struct {
	Status models.Status
	Assets []models.Asset
}

type record struct {
	gen   uint64
	state State
}

type Board struct {
	remote   Remote
	cache    *Cache
	logger   *slog.Logger
	notifier Notifier
	observer Observer
	policy   Policy
	now      func() time.Time
	newID    func(time.Time) string

	mu       sync.Mutex
	closed   bool
	degraded bool
	records  map[string]*record
}

type Option func(*Board)

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) { b.logger = l }
}

func WithNotifier(n Notifier) Option {
	return func(b *Board) { b.notifier = n }
}

func WithObserver(o Observer) Option {
	return func(b *Board) { b.observer = o }
}

func WithPolicy(p Policy) Option {
	return func(b *Board) { b.policy = p }
}

// WithClock sets the time source used for open dates and generated ids
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// WithIDGenerator overrides the ULID generator for locally created records
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(b *Board) { b.newID = gen }
}

func New(remote Remote, opts ...Option) *Board {
	b := &Board{
		remote:   remote,
		cache:    NewCache(),
		logger:   slog.Default(),
		notifier: nopNotifier{},
		policy:   PolicyDiverge,
		now:      time.Now,
		newID:    newULID,
		records:  make(map[string]*record),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func newULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// Load fills the cache from the API. When the API is unreachable the seed
// dataset is shown instead and Degraded reports true.
func (b *Board) Load(ctx context.Context) error {
	assets, err := b.remote.List(ctx)
	if b.isClosed() {
		return ErrClosed
	}
	if err != nil {
		b.logger.Warn("initial load failed, showing seed data", "error", err)
		b.useSeed()
		return nil
	}
	b.replace(assets)
	return nil
}

// Refresh reloads the cache from the API. Records left Diverged by earlier
// failures return to Committed and settled records for ids the API no longer
// lists are dropped. On failure the cache is left untouched.
func (b *Board) Refresh(ctx context.Context) error {
	assets, err := b.remote.List(ctx)
	if b.isClosed() {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	b.replace(assets)
	return nil
}

// Create adds a new asset. On success the cache is replaced with the API's
// list so server-assigned ids win over the local one.
func (b *Board) Create(ctx context.Context, d Draft) (models.Asset, error) {
	email := strings.TrimSpace(d.Email)
	if email == "" {
		return models.Asset{}, ErrEmailRequired
	}
	now := b.now()
	a := models.Asset{
		ID:          b.newID(now),
		Email:       email,
		Type:        orDefault(d.Type, models.TypeLaptop),
		Location:    orDefault(d.Location, models.LocationWFO),
		Status:      d.Status,
		Description: d.Description,
		OpenDate:    &now,
	}
	if a.Status == "" {
		a.Status = models.StatusActive
	}
	if !a.Status.Known() {
		return models.Asset{}, fmt.Errorf("%w: %q", models.ErrUnknownStatus, a.Status)
	}

	var created models.Asset
	err := b.mutate(ctx, mutation{
		op:   "create",
		id:   a.ID,
		ok:   "Asset added",
		fail: "Failed to add asset",
		apply: func() error {
			b.cache.Append(a)
			return nil
		},
		remote: func(ctx context.Context) error {
			var err error
			created, err = b.remote.Create(ctx, a)
			return err
		},
		commit: func(ctx context.Context) {
			fresh, err := b.remote.List(ctx)
			if err != nil {
				b.logger.Warn("reload after create failed, keeping created record", "id", created.ID, "error", err)
				if _, i, ok := b.cache.Remove(a.ID); ok && created.ID != "" {
					b.cache.Insert(i, created)
				}
				return
			}
			b.replace(fresh)
		},
		rollback: func(ctx context.Context, _ uint64) State {
			if b.policy == PolicyRevert {
				b.cache.Remove(a.ID)
				return StateReverted
			}
			b.resync(ctx)
			return StateReverted
		},
	})
	b.prune(a.ID)
	if err != nil {
		return models.Asset{}, err
	}
	return created, nil
}

// Move changes an asset's status. Moving to the current status does nothing.
func (b *Board) Move(ctx context.Context, id string, status models.Status) error {
	if !status.Known() {
		return fmt.Errorf("%w: %q", models.ErrUnknownStatus, status)
	}
	cur, ok := b.cache.Get(id)
	if !ok {
		return ErrNotFound
	}
	if cur.Status == status {
		return nil
	}
	return b.edit(ctx, "move", id, models.AssetPatch{Status: &status}, "Asset updated", "Failed to update asset")
}

// Edit applies a sparse field update
func (b *Board) Edit(ctx context.Context, id string, p models.AssetPatch) error {
	if p.Status != nil && !p.Status.Known() {
		return fmt.Errorf("%w: %q", models.ErrUnknownStatus, *p.Status)
	}
	if p.Email != nil && strings.TrimSpace(*p.Email) == "" {
		return ErrEmailRequired
	}
	if _, ok := b.cache.Get(id); !ok {
		return ErrNotFound
	}
	if p.Empty() {
		return nil
	}
	return b.edit(ctx, "edit", id, p, "Changes saved", "Failed to save changes")
}

func (b *Board) edit(ctx context.Context, op, id string, p models.AssetPatch, ok, fail string) error {
	var prev models.Asset
	return b.mutate(ctx, mutation{
		op:   op,
		id:   id,
		ok:   ok,
		fail: fail,
		apply: func() error {
			var found bool
			if prev, found = b.cache.Update(id, p.Apply); !found {
				return ErrNotFound
			}
			return nil
		},
		remote: func(ctx context.Context) error {
			_, err := b.remote.Update(ctx, id, p)
			return err
		},
		rollback: func(_ context.Context, gen uint64) State {
			if b.policy != PolicyRevert {
				return StateDiverged
			}
			if !b.latest(id, gen) {
				// a newer mutation owns the record now
				return StateReverted
			}
			b.cache.Put(prev)
			return StateReverted
		},
	})
}

// Delete removes an asset. A failed delete brings the record back.
func (b *Board) Delete(ctx context.Context, id string) error {
	var (
		removed models.Asset
		index   int
	)
	err := b.mutate(ctx, mutation{
		op:   "delete",
		id:   id,
		ok:   "Asset deleted",
		fail: "Failed to delete asset",
		apply: func() error {
			var found bool
			if removed, index, found = b.cache.Remove(id); !found {
				return ErrNotFound
			}
			return nil
		},
		remote: func(ctx context.Context) error {
			return b.remote.Delete(ctx, id)
		},
		rollback: func(ctx context.Context, _ uint64) State {
			if b.policy == PolicyRevert {
				b.cache.Insert(index, removed)
				return StateReverted
			}
			b.resync(ctx)
			return StateReverted
		},
	})
	if err == nil {
		b.forget(id)
	}
	return err
}

// Assets returns the cached list in order
func (b *Board) Assets() []models.Asset {
	return b.cache.Snapshot()
}

// Get returns one cached asset
func (b *Board) Get(id string) (models.Asset, bool) {
	return b.cache.Get(id)
}

// Columns groups the cache by status in board order. Records whose status is
// outside the known set get trailing columns in order of first appearance.
func (b *Board) Columns() []Column {
	cols := make([]Column, 0, len(models.Statuses))
	pos := make(map[models.Status]int, len(models.Statuses))
	for _, s := range models.Statuses {
		pos[s] = len(cols)
		cols = append(cols, Column{Status: s})
	}
	for _, a := range b.cache.Snapshot() {
		i, ok := pos[a.Status]
		if !ok {
			i = len(cols)
			pos[a.Status] = i
			cols = append(cols, Column{Status: a.Status})
		}
		cols[i].Assets = append(cols[i].Assets, a)
	}
	return cols
}

// State reports where the latest mutation on id stands
func (b *Board) State(id string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.records[id]; ok {
		return r.state
	}
	return StateIdle
}

// Degraded reports whether the cache holds the seed dataset
func (b *Board) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded
}

// Close stops the board from acting on results that resolve afterwards.
// In-flight requests are not aborted.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

type mutation struct {
	op       string
	id       string
	ok, fail string
	apply    func() error
	remote   func(ctx context.Context) error
	commit   func(ctx context.Context)
	rollback func(ctx context.Context, gen uint64) State
}

// mutate is the single path every user mutation takes: apply locally, call
// the API, then commit or compensate and notify
func (b *Board) mutate(ctx context.Context, m mutation) error {
	gen, err := b.begin(m)
	if err != nil {
		return err
	}

	err = m.remote(ctx)
	if b.isClosed() {
		return ErrClosed
	}
	if err != nil {
		b.logger.Error("mutation failed", "op", m.op, "id", m.id, "error", err)
		state := m.rollback(ctx, gen)
		b.finish(m, gen, state)
		b.notifier.Error(m.fail)
		return fmt.Errorf("%s %s: %w", m.op, m.id, err)
	}

	if m.commit != nil {
		m.commit(ctx)
	}
	b.finish(m, gen, StateCommitted)
	b.notifier.Success(m.ok)
	return nil
}

// begin applies the optimistic change and opens a new generation for the
// record under one lock, so generations follow apply order
func (b *Board) begin(m mutation) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	if err := m.apply(); err != nil {
		return 0, err
	}
	r, ok := b.records[m.id]
	if !ok {
		r = &record{}
		b.records[m.id] = r
	}
	r.gen++
	r.state = StateApplying
	return r.gen, nil
}

// finish records the outcome. Results from a superseded generation leave the
// state alone.
func (b *Board) finish(m mutation, gen uint64, state State) {
	b.mu.Lock()
	if r, ok := b.records[m.id]; ok && r.gen == gen {
		r.state = state
	} else {
		b.logger.Debug("stale mutation result ignored", "op", m.op, "id", m.id, "state", state)
	}
	b.mu.Unlock()

	if b.observer != nil {
		b.observer.ObserveMutation(m.op, state)
	}
}

func (b *Board) latest(id string, gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.records[id]
	return ok && r.gen == gen
}

func (b *Board) forget(id string) {
	b.mu.Lock()
	delete(b.records, id)
	b.mu.Unlock()
}

func (b *Board) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// resync reloads the list after a failed mutation, falling back to the seed
// dataset when the API is unreachable
func (b *Board) resync(ctx context.Context) {
	assets, err := b.remote.List(ctx)
	if err != nil {
		b.logger.Warn("resync failed, showing seed data", "error", err)
		b.useSeed()
		return
	}
	b.replace(assets)
}

func (b *Board) replace(assets []models.Asset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.cache.Replace(assets)
	b.degraded = false
	for id, r := range b.records {
		if r.state == StateApplying {
			continue
		}
		if _, ok := b.cache.Get(id); !ok {
			delete(b.records, id)
			continue
		}
		if r.state == StateDiverged {
			r.state = StateCommitted
		}
	}
}

// prune drops the record for id once it has settled and the id is no longer
// cached
func (b *Board) prune(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.records[id]; ok && r.state != StateApplying {
		if _, cached := b.cache.Get(id); !cached {
			delete(b.records, id)
		}
	}
}

func (b *Board) useSeed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.cache.Replace(Seed(b.now()))
	b.degraded = true
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
