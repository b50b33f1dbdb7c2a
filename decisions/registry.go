package decisions

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/linesmerrill/lcm-policing/databases"
)

// Registry hands out one Cache per device, loading it from storage on first use.
type Registry struct {
	DB databases.DeviceStorageDatabase

	mu      sync.Mutex
	caches  map[string]*Cache
	loading singleflight.Group
}

// NewRegistry creates a registry over db
func NewRegistry(db databases.DeviceStorageDatabase) *Registry {
	return &Registry{DB: db, caches: map[string]*Cache{}}
}

func (r *Registry) cached(deviceID string) (*Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[deviceID]
	return c, ok
}

// ForDevice returns the device's cache. Concurrent first requests of one device share a
// single load, and other devices are not held up by it. A failed load is not
// remembered, so the next request tries again.
func (r *Registry) ForDevice(ctx context.Context, deviceID string) (*Cache, error) {
	if c, ok := r.cached(deviceID); ok {
		return c, nil
	}
	v, err, _ := r.loading.Do(deviceID, func() (interface{}, error) {
		if c, ok := r.cached(deviceID); ok {
			return c, nil
		}
		c, err := Load(ctx, DeviceStore{DB: r.DB, DeviceID: deviceID})
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.caches[deviceID] = c
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cache), nil
}
