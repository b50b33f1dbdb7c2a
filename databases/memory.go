package databases

import (
	"context"
	"sync"
)

type memoryDeviceStorage struct {
	mu    sync.Mutex
	items map[string]map[string]string
}

// NewMemoryDeviceStorage returns device storage that lives only as long as the process.
func NewMemoryDeviceStorage() DeviceStorageDatabase {
	return &memoryDeviceStorage{items: map[string]map[string]string{}}
}

func (m *memoryDeviceStorage) GetItem(_ context.Context, deviceID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[deviceID][key]
	return v, ok, nil
}

func (m *memoryDeviceStorage) SetItem(_ context.Context, deviceID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[deviceID] == nil {
		m.items[deviceID] = map[string]string{}
	}
	m.items[deviceID][key] = value
	return nil
}
