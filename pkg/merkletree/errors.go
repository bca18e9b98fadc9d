package merkletree

import "github.com/pkg/errors"

// Sentinel error kinds of the engine. Callers match them with errors.Is;
// concrete failures wrap them with context (expected/got values, offending
// indices).
var (
	// ErrInvalidArgument marks violated preconditions: an out-of-range leaf
	// or node id, a batch start past the end of the leaf level, an arity
	// below 2 at construction or a split level at or above the tree height.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIncompatibleHasher marks a scratch or merged-in hasher that is not
	// equivalent to the receiver's (see hasher.ArityHasher.IsTheSame).
	ErrIncompatibleHasher = errors.New("incompatible hasher")

	// ErrArityMismatch marks an envelope whose arity disagrees with the
	// hasher it is rebuilt with.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrRootMismatch marks an envelope whose claimed root disagrees with
	// the root re-derived from its leaves.
	ErrRootMismatch = errors.New("root mismatch")

	// ErrExpectedEmpty marks an envelope whose root presence disagrees with
	// its leaf count: a root without leaves or leaves without a root.
	ErrExpectedEmpty = errors.New("expected empty tree")
)
