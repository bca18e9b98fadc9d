package keccak

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/merklekit/merkle-engine-go/pkg/merkletree"
)

func TestPairHashMatchesSolidityPacking(t *testing.T) {
	left := crypto.Keccak256Hash([]byte("left"))
	right := crypto.Keccak256Hash([]byte("right"))

	h := NewPairHasher()
	h.HashArityOne(left)
	h.HashArityOne(right)
	got := h.FinishArity()

	// keccak256(abi.encodePacked(left, right))
	packed := make([]byte, 0, 64)
	packed = append(packed, left.Bytes()...)
	packed = append(packed, right.Bytes()...)
	require.Equal(t, crypto.Keccak256Hash(packed), got)

	// State resets between groups.
	h.HashArityOne(left)
	h.HashArityOne(right)
	require.Equal(t, got, h.FinishArity())
}

func TestHasherArity(t *testing.T) {
	_, err := NewHasher(1)
	require.ErrorIs(t, err, merkletree.ErrInvalidArgument)

	h3, err := NewHasher(3)
	require.NoError(t, err)
	require.Equal(t, 3, h3.Arity())

	require.True(t, h3.IsTheSame(h3.CloneHasher()))
	require.False(t, h3.IsTheSame(NewPairHasher()))
}

func TestTreeRootMatchesManualLadder(t *testing.T) {
	leaves := make([]common.Hash, 4)
	for i := range leaves {
		leaves[i] = crypto.Keccak256Hash([]byte{byte(i)})
	}

	tree, err := NewTree(2)
	require.NoError(t, err)
	tree.PushBatched(leaves)

	pair := func(l, r common.Hash) common.Hash {
		return crypto.Keccak256Hash(append(l.Bytes(), r.Bytes()...))
	}
	wantRoot := pair(pair(leaves[0], leaves[1]), pair(leaves[2], leaves[3]))
	require.Equal(t, wantRoot, tree.Root())

	// Odd count duplicates the trailing leaf.
	tree5, err := NewTree(2)
	require.NoError(t, err)
	tree5.PushBatched(leaves[:3])
	want5 := pair(pair(leaves[0], leaves[1]), pair(leaves[2], leaves[2]))
	require.Equal(t, want5, tree5.Root())
}

func TestProofAgainstContract(t *testing.T) {
	// The proof a Solidity verifier would walk: each level hashes the
	// packed group and the final hash equals the on-chain root.
	h, err := NewHasher(3)
	require.NoError(t, err)

	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	tree, err := merkletree.NewFromData[common.Hash](h, data)
	require.NoError(t, err)

	for i, d := range data {
		proof, err := tree.ProofOwned(merkletree.LeafID(i))
		require.NoError(t, err)

		scratch, err := NewHasher(3)
		require.NoError(t, err)
		require.True(t, merkletree.VerifyData(proof, d, scratch))
		require.False(t, merkletree.VerifyData(proof, []byte("x"), scratch))
	}
}
