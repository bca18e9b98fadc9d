package merkletree

import (
	"github.com/pkg/errors"

	"github.com/merklekit/merkle-engine-go/pkg/hasher"
)

// Serde is the canonical serialization envelope of a tree: the leaf hashes,
// the arity, and the root iff the tree is non-empty. Interior levels are
// never serialized; ToTree re-derives them and fails when the rebuilt root
// disagrees with the claimed one, so corrupted or adversarial interior
// state cannot be smuggled through the envelope.
type Serde[H comparable] struct {
	Leaves []H `json:"leaves"`
	Root   *H  `json:"root"`
	Arity  int `json:"arity"`
}

// Serializable returns the envelope of the tree. The leaf slice is copied;
// the envelope stays valid after further tree mutation.
func (t *Tree[H]) Serializable() *Serde[H] {
	env := &Serde[H]{
		Leaves: append([]H(nil), t.lvls[0]...),
		Arity:  t.arity,
	}
	if !t.IsEmpty() {
		root := t.Root()
		env.Root = &root
	}
	return env
}

// ToTree rebuilds the full tree from the envelope using the given hasher.
//
// Fails with ErrArityMismatch when the envelope's arity disagrees with the
// hasher's, ErrExpectedEmpty when root presence disagrees with the leaf
// count, and ErrRootMismatch when the re-derived root differs from the
// claimed one.
func (s *Serde[H]) ToTree(h hasher.ArityHasher[H]) (*Tree[H], error) {
	if s.Arity != h.Arity() {
		return nil, errors.Wrapf(ErrArityMismatch, "expected arity %d, envelope has %d", h.Arity(), s.Arity)
	}

	tree, err := NewFromLeaves(h, s.Leaves)
	if err != nil {
		return nil, err
	}

	if s.Root == nil {
		if !tree.IsEmpty() {
			return nil, errors.Wrap(ErrExpectedEmpty, "envelope carries leaves but no root")
		}
		return tree, nil
	}
	if tree.IsEmpty() {
		return nil, errors.Wrap(ErrExpectedEmpty, "envelope carries a root but no leaves")
	}
	if tree.Root() != *s.Root {
		return nil, errors.Wrapf(ErrRootMismatch, "expected root %v, rebuilt %v", *s.Root, tree.Root())
	}
	return tree, nil
}
