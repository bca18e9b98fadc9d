// Package persistence defines durable storage for merkle tree envelopes.
//
// Only the canonical envelope (leaves, root, arity) is ever stored: interior
// levels are re-derived and re-verified on load through the envelope's
// self-check, so a corrupted store cannot smuggle in bad interior state.
package persistence

// EnvelopeStore persists serialized tree envelopes under caller-chosen
// names. All implementations must be safe for concurrent use.
type EnvelopeStore interface {
	// SaveEnvelope stores the serialized envelope under name, overwriting
	// any previous value.
	SaveEnvelope(name string, data []byte) error

	// LoadEnvelope retrieves the envelope stored under name.
	// Returns nil data and no error if the name is unknown.
	LoadEnvelope(name string) ([]byte, error)

	// ListEnvelopes returns all stored names sorted ascending.
	ListEnvelopes() ([]string, error)

	// DeleteEnvelope removes the envelope stored under name.
	// Idempotent: deleting an unknown name is not an error.
	DeleteEnvelope(name string) error

	// Close cleanly shuts the store down. Idempotent; all other operations
	// fail after Close.
	Close() error

	// HealthCheck verifies the store is operational. Returns nil if
	// healthy. Call it during startup to fail fast.
	HealthCheck() error
}
