package bitcoin

import (
	"crypto/sha256"
	"hash"

	"github.com/merklekit/merkle-engine-go/pkg/hasher"
	"github.com/merklekit/merkle-engine-go/pkg/merkletree"
)

// Hasher is the Bitcoin merkle node hasher: a binary (arity 2) hasher where
// the parent of two children is SHA256(SHA256(left || right)) over their
// big-endian bytes. It is stateless across groups, so any two instances are
// equivalent.
type Hasher struct {
	inner hash.Hash
}

var _ hasher.DataHasher[Hash, []byte] = (*Hasher)(nil)
var _ hasher.CloneableHasher[Hash] = (*Hasher)(nil)

// NewHasher creates a Bitcoin double-SHA256 hasher.
func NewHasher() *Hasher {
	return &Hasher{inner: sha256.New()}
}

func (h *Hasher) HashArityOne(x Hash) {
	_, _ = h.inner.Write(x[:])
}

func (h *Hasher) FinishArity() Hash {
	first := h.inner.Sum(nil)
	h.inner.Reset()
	return Hash(sha256.Sum256(first))
}

func (h *Hasher) Arity() int { return 2 }

func (h *Hasher) IsTheSame(other hasher.ArityHasher[Hash]) bool {
	_, ok := other.(*Hasher)
	return ok
}

// HashData hashes raw bytes (e.g. a serialized transaction) into a leaf:
// SHA256(SHA256(data)).
func (h *Hasher) HashData(data []byte) Hash {
	_, _ = h.inner.Write(data)
	return h.FinishArity()
}

func (h *Hasher) CloneHasher() hasher.ArityHasher[Hash] {
	return NewHasher()
}

// Tree is a binary merkle tree over Bitcoin hashes.
type Tree = merkletree.Tree[Hash]

// NewTree creates an empty Bitcoin merkle tree.
func NewTree() *Tree {
	tree, err := merkletree.NewMinimal[Hash](NewHasher())
	if err != nil {
		// The hasher's arity is the constant 2; this cannot fail.
		panic(err)
	}
	return tree
}

// NewTreeFromLeaves creates a Bitcoin merkle tree over the given leaf
// hashes (transaction ids in block order).
func NewTreeFromLeaves(leaves []Hash) *Tree {
	tree := NewTree()
	tree.PushBatched(leaves)
	return tree
}
