package config

import (
	"context"
	"maps"
	"sync"
)

// Source is a key-value view of persisted settings.
//
// Get returns nil, nil when key was never configured.
type Source interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Reader loads settings from a Source.
type Reader struct {
	source Source
	key    string
}

// NewReader creates a Reader for key. An empty key means DefaultKey.
func NewReader(source Source, key string) *Reader {
	if key == "" {
		key = DefaultKey
	}

	return &Reader{source: source, key: key}
}

// Key returns the configuration key read by r.
func (r *Reader) Key() string {
	return r.key
}

// Load reads and decodes the settings.
//
// Returns:
//   - *Settings: The decoded settings
//   - error: types.ErrConfigurationMissing when nothing is stored,
//     types.ErrConfigurationMalformed when the value cannot be decoded,
//     or the source's own error
func (r *Reader) Load(ctx context.Context) (*Settings, error) {
	if r == nil || r.source == nil {
		return Parse(nil)
	}

	data, err := r.source.Get(ctx, r.key)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Memory is an in-memory Source for tests and embedded use.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// Compile-time assertion that Memory implements Source.
var _ Source = (*Memory)(nil)

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}

	return append([]byte(nil), v...), nil
}

// Set stores value under key.
func (m *Memory) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
}

// Delete removes key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// Snapshot returns a copy of the stored keys and values.
func (m *Memory) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.values)
}
