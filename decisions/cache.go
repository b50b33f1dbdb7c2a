// Package decisions keeps the per-device set of incidents the user chose to stop seeing
// in their Verify Queue.
package decisions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/databases"
	"github.com/linesmerrill/lcm-policing/models"
)

// Store is the durable string store the cache persists its lists to
type Store interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
}

// DeviceStore scopes a DeviceStorageDatabase to a single device
type DeviceStore struct {
	DB       databases.DeviceStorageDatabase
	DeviceID string
}

// GetItem reads key for the device.
func (d DeviceStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	return d.DB.GetItem(ctx, d.DeviceID, key)
}

// SetItem writes key for the device.
func (d DeviceStore) SetItem(ctx context.Context, key, value string) error {
	return d.DB.SetItem(ctx, d.DeviceID, key, value)
}

type list struct {
	ids []models.ID
	set map[string]struct{}
}

func (l *list) has(id models.ID) bool {
	_, ok := l.set[id.String()]
	return ok
}

// Cache is the in-memory view of a device's local decisions. Entries are never removed:
// once an incident is suppressed it stays hidden on this device even if the backend
// later changes its status.
type Cache struct {
	mu    sync.Mutex
	store Store
	lists map[models.DecisionKind]*list
}

var kinds = []models.DecisionKind{models.DecisionIgnored, models.DecisionFalse}

// Load reads both decision lists from store. A list that is missing or unreadable
// starts empty; only a failing store is an error.
func Load(ctx context.Context, store Store) (*Cache, error) {
	c := &Cache{store: store, lists: make(map[models.DecisionKind]*list, len(kinds))}
	for _, kind := range kinds {
		raw, found, err := store.GetItem(ctx, kind.StorageKey())
		if err != nil {
			return nil, fmt.Errorf("failed to load %s decisions: %w", kind, err)
		}
		l := &list{set: map[string]struct{}{}}
		if found && raw != "" {
			var ids []models.ID
			if err := json.Unmarshal([]byte(raw), &ids); err != nil {
				zap.S().Warnw("discarding unreadable decision list", "key", kind.StorageKey(), "error", err)
				ids = nil
			}
			for _, id := range ids {
				if id.IsZero() || l.has(id) {
					continue
				}
				l.ids = append(l.ids, id)
				l.set[id.String()] = struct{}{}
			}
		}
		c.lists[kind] = l
	}
	return c, nil
}

// IsSuppressed reports whether id was ignored or marked false on this device.
func (c *Cache) IsSuppressed(id models.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lists {
		if l.has(id) {
			return true
		}
	}
	return false
}

// Suppress records the decision and writes the affected list before returning. If the
// write fails the in-memory list is left as it was.
func (c *Cache) Suppress(ctx context.Context, id models.ID, kind models.DecisionKind) error {
	if id.IsZero() {
		return models.NewValidationError("incident id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.lists[kind]
	if !ok {
		return fmt.Errorf("unknown decision kind %q", kind)
	}
	if l.has(id) {
		return nil
	}

	next := append(append([]models.ID(nil), l.ids...), id)
	b, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := c.store.SetItem(ctx, kind.StorageKey(), string(b)); err != nil {
		return fmt.Errorf("failed to persist %s decision: %w", kind, err)
	}
	l.ids = next
	l.set[id.String()] = struct{}{}
	return nil
}

// Snapshot returns every recorded decision, ignored ones first.
func (c *Cache) Snapshot() []models.LocalDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.LocalDecision
	for _, kind := range kinds {
		for _, id := range c.lists[kind].ids {
			out = append(out, models.LocalDecision{IncidentID: id, Kind: kind})
		}
	}
	return out
}
