package board

import (
	"sync"

	"flowtrack/internal/models"
)

// Cache is the board's ordered, in-memory copy of the asset list. Ids are
// unique within the cache.
type Cache struct {
	mu    sync.RWMutex
	items []models.Asset
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the whole contents. Duplicate ids keep their first
// occurrence.
func (c *Cache) Replace(items []models.Asset) {
	seen := make(map[string]struct{}, len(items))
	next := make([]models.Asset, 0, len(items))
	for _, a := range items {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		next = append(next, a.Clone())
	}

	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
}

// Snapshot returns a copy of the contents in order
func (c *Cache) Snapshot() []models.Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Asset, len(c.items))
	for i, a := range c.items {
		out[i] = a.Clone()
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) Get(id string) (models.Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.index(id); i >= 0 {
		return c.items[i].Clone(), true
	}
	return models.Asset{}, false
}

// Update applies fn to the record with id in place and returns the value it
// held before
func (c *Cache) Update(id string, fn func(a *models.Asset)) (models.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return models.Asset{}, false
	}
	prev := c.items[i].Clone()
	fn(&c.items[i])
	return prev, true
}

// Put overwrites the record with the same id, reporting whether it was present
func (c *Cache) Put(a models.Asset) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(a.ID)
	if i < 0 {
		return false
	}
	c.items[i] = a.Clone()
	return true
}

// Remove deletes the record with id and returns it with its former position
func (c *Cache) Remove(id string) (models.Asset, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return models.Asset{}, -1, false
	}
	removed := c.items[i]
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	return removed, i, true
}

// Insert places a at index, clamped to the current bounds. It reports false
// and changes nothing when the id is already present.
func (c *Cache) Insert(index int, a models.Asset) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index(a.ID) >= 0 {
		return false
	}
	if index < 0 {
		index = 0
	}
	if index > len(c.items) {
		index = len(c.items)
	}
	c.items = append(c.items, models.Asset{})
	copy(c.items[index+1:], c.items[index:])
	c.items[index] = a.Clone()
	return true
}

// Append adds a at the end
func (c *Cache) Append(a models.Asset) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index(a.ID) >= 0 {
		return false
	}
	c.items = append(c.items, a.Clone())
	return true
}

func (c *Cache) index(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
