// Package keccak provides a Solidity-compatible merkle node hasher: the
// parent of a group is keccak256 over the concatenated child hashes, the
// same construction Solidity contracts verify with
// keccak256(abi.encodePacked(...)).
package keccak

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/merklekit/merkle-engine-go/pkg/hasher"
	"github.com/merklekit/merkle-engine-go/pkg/merkletree"
)

// Hasher hashes groups of common.Hash nodes with keccak256 over their
// concatenation. Stateless across groups; two instances are equivalent iff
// their arities match.
type Hasher struct {
	arity int
	buf   []byte
}

var _ hasher.DataHasher[common.Hash, []byte] = (*Hasher)(nil)
var _ hasher.CloneableHasher[common.Hash] = (*Hasher)(nil)

// NewHasher creates a keccak hasher with the given fan-out.
// Fails with merkletree.ErrInvalidArgument for an arity below 2.
func NewHasher(arity int) (*Hasher, error) {
	if arity < 2 {
		return nil, errors.Wrapf(merkletree.ErrInvalidArgument, "keccak hasher arity must be at least 2, got %d", arity)
	}
	return &Hasher{
		arity: arity,
		buf:   make([]byte, 0, arity*common.HashLength),
	}, nil
}

// NewPairHasher creates the binary hasher matching keccak256(left || right).
func NewPairHasher() *Hasher {
	h, _ := NewHasher(2)
	return h
}

func (h *Hasher) HashArityOne(x common.Hash) {
	h.buf = append(h.buf, x.Bytes()...)
}

func (h *Hasher) FinishArity() common.Hash {
	out := crypto.Keccak256Hash(h.buf)
	h.buf = h.buf[:0]
	return out
}

func (h *Hasher) Arity() int { return h.arity }

func (h *Hasher) IsTheSame(other hasher.ArityHasher[common.Hash]) bool {
	o, ok := other.(*Hasher)
	return ok && o.arity == h.arity
}

// HashData hashes raw bytes into a leaf with a single keccak256 pass.
func (h *Hasher) HashData(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

func (h *Hasher) CloneHasher() hasher.ArityHasher[common.Hash] {
	clone, _ := NewHasher(h.arity)
	return clone
}

// Tree is a merkle tree over keccak256 nodes.
type Tree = merkletree.Tree[common.Hash]

// NewTree creates an empty keccak tree with the given fan-out.
func NewTree(arity int) (*Tree, error) {
	h, err := NewHasher(arity)
	if err != nil {
		return nil, err
	}
	return merkletree.NewMinimal[common.Hash](h)
}
