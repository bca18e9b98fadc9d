// Package memory provides an in-memory EnvelopeStore for tests.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/merklekit/merkle-engine-go/pkg/persistence"
)

// MemoryStore is an in-memory implementation of persistence.EnvelopeStore.
// Intended for TESTING ONLY: all data is lost when the process exits.
// Thread-safe; stored payloads are deep-copied both ways so callers cannot
// mutate the store's state from outside.
type MemoryStore struct {
	mu        sync.RWMutex
	envelopes map[string][]byte
	closed    bool
}

var _ persistence.EnvelopeStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory envelope store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		envelopes: make(map[string][]byte),
	}
}

// SaveEnvelope stores a copy of data under name.
func (m *MemoryStore) SaveEnvelope(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("envelope name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("envelope store is closed")
	}

	m.envelopes[name] = append([]byte(nil), data...)
	return nil
}

// LoadEnvelope returns a copy of the envelope stored under name, or nil if
// the name is unknown.
func (m *MemoryStore) LoadEnvelope(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("envelope store is closed")
	}

	data, exists := m.envelopes[name]
	if !exists {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// ListEnvelopes returns all stored names sorted ascending.
func (m *MemoryStore) ListEnvelopes() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("envelope store is closed")
	}

	names := make([]string, 0, len(m.envelopes))
	for name := range m.envelopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteEnvelope removes the envelope stored under name. Idempotent.
func (m *MemoryStore) DeleteEnvelope(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("envelope store is closed")
	}

	delete(m.envelopes, name)
	return nil
}

// Close marks the store closed. Idempotent.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck reports whether the store is usable.
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("envelope store is closed")
	}
	return nil
}
