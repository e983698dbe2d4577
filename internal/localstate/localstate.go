// Package localstate holds per-device key/value state: the things a browser
// would keep in local storage, such as the pending scan mirror and the
// current session token.
package localstate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Store is one device's key/value state.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Devices hands out the Store for a device ID.
type Devices interface {
	Device(id string) Store
}

// DefaultDevice is used when a client does not identify its device.
const DefaultDevice = "default"

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DeviceID returns id if it is a usable device identifier, DefaultDevice otherwise.
func DeviceID(id string) string {
	if deviceIDPattern.MatchString(id) {
		return id
	}
	return DefaultDevice
}

// ClearExcept deletes every key in s that does not start with keepPrefix and
// returns how many keys were removed.
func ClearExcept(ctx context.Context, s Store, keepPrefix string) (int, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing local state: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if strings.HasPrefix(key, keepPrefix) {
			continue
		}
		if err := s.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("deleting %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// MemoryDevices keeps one Memory store per device.
type MemoryDevices struct {
	mu      sync.Mutex
	devices map[string]*Memory
}

// NewMemoryDevices returns an empty set of in-memory device stores.
func NewMemoryDevices() *MemoryDevices {
	return &MemoryDevices{devices: make(map[string]*Memory)}
}

func (d *MemoryDevices) Device(id string) Store {
	id = DeviceID(id)
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.devices[id]
	if !ok {
		m = NewMemory()
		d.devices[id] = m
	}
	return m
}
