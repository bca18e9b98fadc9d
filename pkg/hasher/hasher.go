// Package hasher defines the hash capability bundle consumed by the merkle
// tree engine: an arity hasher that folds a fixed-size group of child hashes
// into one parent hash, an optional data hasher that produces leaf hashes
// from raw input, and an optional clone capability used when trees are split.
package hasher

// ArityHasher absorbs exactly Arity() child hashes per group and emits the
// group hash. Implementations are stateful absorbers and must be reusable
// across groups: FinishArity resets the internal state.
type ArityHasher[H any] interface {
	// HashArityOne feeds one child hash into the current group.
	HashArityOne(h H)

	// FinishArity finalizes the current group, returns its hash and resets
	// the absorber. Calling it after fewer than Arity() absorbs is a
	// programming error; the tree never does so.
	FinishArity() H

	// Arity returns the fan-out K of the hasher. Must be >= 2 and constant
	// for the lifetime of the instance.
	Arity() int

	// IsTheSame reports whether the other hasher would produce identical
	// results for every input. Relevant for hashers carrying domain
	// separators; stateless hashers compare by type and arity.
	IsTheSame(other ArityHasher[H]) bool
}

// DataHasher additionally maps arbitrary input data to a leaf hash.
type DataHasher[H, D any] interface {
	ArityHasher[H]

	// HashData produces the leaf hash of data. Single-shot: it must leave
	// the group absorber in its reset state.
	HashData(data D) H
}

// CloneableHasher can produce an independent copy of itself. Required by
// tree splitting, where every sub-tree owns its own hasher.
type CloneableHasher[H any] interface {
	ArityHasher[H]

	// CloneHasher returns a fresh hasher equivalent to this one
	// (IsTheSame on the pair reports true).
	CloneHasher() ArityHasher[H]
}
