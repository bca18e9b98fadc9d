package merkletree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merklekit/merkle-engine-go/pkg/hasher"
)

// newUnsecureTree creates an empty uint64 tree with the FNV test hasher.
func newUnsecureTree(t *testing.T, arity int) *Tree[uint64] {
	t.Helper()
	tree, err := NewMinimal[uint64](hasher.NewUnsecureHasher(arity))
	require.NoError(t, err)
	return tree
}

// hashRange maps [from, to) through the data hasher, producing leaf hashes.
func hashRange(arity int, from, to uint64) []uint64 {
	h := hasher.NewUnsecureHasher(arity)
	hashes := make([]uint64, 0, to-from)
	for x := from; x < to; x++ {
		hashes = append(hashes, h.HashData(x))
	}
	return hashes
}

// nextLvlHashes is the naive reference for one hashing ladder step: chunk
// the level into arity-sized groups, pad the last group by repeating its
// trailing element, hash every group with a fresh hasher.
func nextLvlHashes(prev []uint64, arity int) []uint64 {
	h := hasher.NewUnsecureHasher(arity)
	var next []uint64
	for lo := 0; lo < len(prev); lo += arity {
		for i := 0; i < arity; i++ {
			if lo+i < len(prev) {
				h.HashArityOne(prev[lo+i])
			} else {
				h.HashArityOne(prev[len(prev)-1])
			}
		}
		next = append(next, h.FinishArity())
	}
	return next
}

// levelsExpected is the documented height formula.
func levelsExpected(n, arity int) int {
	if n == 0 {
		return 0
	}
	return LengthInBase(n-1, arity) + 1
}

func TestNewMinimalRejectsBadArity(t *testing.T) {
	_, err := NewMinimal[uint64](hasher.NewUnsecureHasher(1))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewMinimal[uint64](hasher.NewUnsecureHasher(0))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTreeShape(t *testing.T) {
	for _, arity := range []int{2, 3, 5} {
		for n := 0; n <= 40; n++ {
			tree, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), hashRange(arity, 0, uint64(n)))
			require.NoError(t, err)

			require.Equal(t, n == 0, tree.IsEmpty())
			require.Equal(t, n, tree.LeafCount())
			require.Equal(t, levelsExpected(n, arity), tree.Height(), "arity %d, n %d", arity, n)

			if n == 0 {
				continue
			}

			// Level lengths follow the ceil-division chain and the top
			// level holds exactly the root.
			for lvl := 1; lvl < tree.Height(); lvl++ {
				below := tree.LvlLen(lvl - 1)
				require.Equal(t, (below+arity-1)/arity, tree.LvlLen(lvl), "arity %d, n %d, lvl %d", arity, n, lvl)
			}
			require.Equal(t, 1, tree.LvlLen(tree.Height()-1))

			// Every level equals the naive ladder step of the one below.
			prev := tree.GetLvl(0).ToSlice()
			for lvl := 1; lvl < tree.Height(); lvl++ {
				prev = nextLvlHashes(prev, arity)
				require.Equal(t, prev, tree.GetLvl(lvl).ToSlice(), "arity %d, n %d, lvl %d", arity, n, lvl)
			}
		}
	}
}

// TestAdditiveHasherLadder pins the tree contents with the additive hasher:
// nine leaves 1..9 at arity 3 give level 1 [6 15 24] and root 45, no matter
// which construction path was used.
func TestAdditiveHasherLadder(t *testing.T) {
	leaves := []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}

	build := map[string]func(t *testing.T) *Tree[uint64]{
		"Nine pushes": func(t *testing.T) *Tree[uint64] {
			tree, err := NewMinimal[uint64](hasher.NewSumHasher(3))
			require.NoError(t, err)
			for _, leaf := range leaves {
				tree.Push(leaf)
			}
			return tree
		},
		"One batched push": func(t *testing.T) *Tree[uint64] {
			tree, err := NewMinimal[uint64](hasher.NewSumHasher(3))
			require.NoError(t, err)
			tree.PushBatched(leaves)
			return tree
		},
		"NewFromLeaves": func(t *testing.T) *Tree[uint64] {
			tree, err := NewFromLeaves(hasher.NewSumHasher(3), leaves)
			require.NoError(t, err)
			return tree
		},
		"NewFromData": func(t *testing.T) *Tree[uint64] {
			// The additive hasher's HashData is the identity.
			tree, err := NewFromData(hasher.NewSumHasher(3), leaves)
			require.NoError(t, err)
			return tree
		},
	}

	for name, buildTree := range build {
		t.Run(name, func(t *testing.T) {
			tree := buildTree(t)
			require.Equal(t, 3, tree.Height())
			require.Equal(t, leaves, tree.GetLvl(0).ToSlice())
			require.Equal(t, []uint64{6, 15, 24}, tree.GetLvl(1).ToSlice())
			require.Equal(t, []uint64{45}, tree.GetLvl(2).ToSlice())
			require.Equal(t, uint64(45), tree.Root())
		})
	}
}

// TestPathInvariance grows trees element-wise and batch-wise in lockstep
// and requires full equality after every step.
func TestPathInvariance(t *testing.T) {
	for _, arity := range []int{2, 3, 5} {
		single := newUnsecureTree(t, arity)

		var leaves []uint64
		for x := uint64(0); x < 37; x++ {
			leaves = append(leaves, hasher.NewUnsecureHasher(arity).HashData(x))

			single.Push(leaves[len(leaves)-1])

			batched := newUnsecureTree(t, arity)
			batched.PushBatched(append([]uint64(nil), leaves...))

			constructed, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), leaves)
			require.NoError(t, err)

			require.True(t, single.EqFull(batched), "arity %d, n %d", arity, len(leaves))
			require.True(t, batched.EqFull(single), "arity %d, n %d", arity, len(leaves))
			require.True(t, single.EqFull(constructed), "arity %d, n %d", arity, len(leaves))
		}
	}
}

// TestPushBatchedChunks pushes the same leaf stream in uneven chunks and
// element-wise; the results must agree after every chunk.
func TestPushBatchedChunks(t *testing.T) {
	chunkings := [][][2]uint64{
		{{1, 9}, {9, 26}, {26, 35}},
		{{1, 7}, {9, 26}, {26, 35}},
		{{1, 17}, {17, 37}, {37, 59}},
		{{1, 16}, {16, 38}, {38, 60}},
		{{1, 17}, {100, 134}, {200, 229}},
		{{1, 15}, {25, 34}, {72, 76}, {2, 3}, {205, 235}},
	}

	for _, arity := range []int{2, 3, 5} {
		for _, chunks := range chunkings {
			single := newUnsecureTree(t, arity)
			batched := newUnsecureTree(t, arity)

			for _, chunk := range chunks {
				hashes := hashRange(arity, chunk[0], chunk[1])
				for _, h := range hashes {
					single.Push(h)
				}
				r := batched.PushBatched(hashes)
				require.Equal(t, len(hashes), r.Len())

				require.True(t, single.EqFull(batched), "arity %d, chunks %v", arity, chunks)
			}
		}
	}
}

func TestReplace(t *testing.T) {
	rng := rand.New(rand.NewSource(0x5eed))

	lengths := []int{1, 9, 24, 25, 27, 39}
	for _, arity := range []int{2, 3, 5} {
		for _, n := range lengths {
			leaves := make([]uint64, n)
			for i := range leaves {
				leaves[i] = rng.Uint64()
			}

			tree, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), leaves)
			require.NoError(t, err)

			for repeat := 0; repeat < 13; repeat++ {
				index := rng.Intn(n)
				leaves[index] = rng.Uint64()
				require.NoError(t, tree.Replace(leaves[index], LeafID(index)))

				rebuilt, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), leaves)
				require.NoError(t, err)
				require.True(t, tree.EqFull(rebuilt), "arity %d, n %d, replaced %d", arity, n, index)
			}
		}
	}
}

func TestReplaceIdempotent(t *testing.T) {
	tree, err := NewFromLeaves(hasher.NewUnsecureHasher(3), hashRange(3, 0, 14))
	require.NoError(t, err)

	want, err := tree.Clone()
	require.NoError(t, err)

	for i := 0; i < tree.LeafCount(); i++ {
		require.NoError(t, tree.Replace(tree.GetLvl(0).ToSlice()[i], LeafID(i)))
	}
	require.True(t, tree.EqFull(want))
}

func TestReplaceOutOfBounds(t *testing.T) {
	tree := newUnsecureTree(t, 3)
	require.ErrorIs(t, tree.Replace(7, LeafID(0)), ErrInvalidArgument)

	tree.PushBatched(hashRange(3, 0, 5))
	require.ErrorIs(t, tree.Replace(7, LeafID(5)), ErrInvalidArgument)
	require.ErrorIs(t, tree.Replace(7, LeafID(-1)), ErrInvalidArgument)
	require.NoError(t, tree.Replace(7, LeafID(4)))
}

func TestReplaceBatched(t *testing.T) {
	testCases := []struct {
		name  string
		arity int
		n     int
		start int
		batch int
	}{
		{"Overwrite middle", 3, 27, 4, 9},
		{"Overwrite and extend", 3, 10, 7, 12},
		{"Pure append via last id", 3, 9, 9, 5},
		{"Single element", 2, 16, 3, 1},
		{"Cross level growth", 5, 24, 20, 30},
		{"Whole tree", 2, 8, 0, 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := hashRange(tc.arity, 0, uint64(tc.n))
			tree, err := NewFromLeaves(hasher.NewUnsecureHasher(tc.arity), leaves)
			require.NoError(t, err)

			batch := hashRange(tc.arity, 1000, uint64(1000+tc.batch))
			r, err := tree.ReplaceBatched(batch, LeafID(tc.start))
			require.NoError(t, err)
			require.Equal(t, LeafID(tc.start), r.From)
			require.Equal(t, LeafID(tc.start+tc.batch), r.To)

			// Splice the batch into the reference leaf sequence.
			want := append([]uint64(nil), leaves[:tc.start]...)
			want = append(want, batch...)
			if tc.start+tc.batch < len(leaves) {
				want = append(want, leaves[tc.start+tc.batch:]...)
			}

			rebuilt, err := NewFromLeaves(hasher.NewUnsecureHasher(tc.arity), want)
			require.NoError(t, err)
			require.True(t, tree.EqFull(rebuilt))
		})
	}
}

func TestReplaceBatchedStartPastEnd(t *testing.T) {
	tree := newUnsecureTree(t, 3)
	tree.PushBatched(hashRange(3, 0, 5))

	_, err := tree.ReplaceBatched(hashRange(3, 9, 12), LeafID(6))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMergeConcatenatesLeaves(t *testing.T) {
	for _, arity := range []int{2, 3, 5} {
		splits := [][2]int{{0, 0}, {1, 4}, {9, 9}, {5, 17}, {27, 3}, {8, 8}}
		for _, split := range splits {
			a := hashRange(arity, 0, uint64(split[0]))
			b := hashRange(arity, 100, uint64(100+split[1]))

			ta, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), a)
			require.NoError(t, err)
			tb, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), b)
			require.NoError(t, err)

			require.NoError(t, ta.Merge(tb))

			want, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), append(append([]uint64(nil), a...), b...))
			require.NoError(t, err)
			require.True(t, ta.EqFull(want), "arity %d, lens %v", arity, split)

			// The merged-in tree is left intact.
			rebuilt, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), b)
			require.NoError(t, err)
			require.True(t, tb.EqFull(rebuilt))
		}
	}
}

func TestMergeAssociative(t *testing.T) {
	arity := 3
	a := hashRange(arity, 0, 7)
	b := hashRange(arity, 50, 61)
	c := hashRange(arity, 200, 204)

	mk := func(leaves []uint64) *Tree[uint64] {
		tree, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), leaves)
		require.NoError(t, err)
		return tree
	}

	// (A + B) + C
	left := mk(a)
	require.NoError(t, left.Merge(mk(b)))
	require.NoError(t, left.Merge(mk(c)))

	// A + (B + C)
	bc := mk(b)
	require.NoError(t, bc.Merge(mk(c)))
	right := mk(a)
	require.NoError(t, right.Merge(bc))

	require.True(t, left.EqFull(right))

	// And one shot.
	oneShot, err := NewMerged(mk(a), mk(b), mk(c))
	require.NoError(t, err)
	require.True(t, left.EqFull(oneShot))
}

func TestMergeIncompatibleHasher(t *testing.T) {
	a, err := NewFromLeaves(hasher.NewUnsecureHasher(3), hashRange(3, 0, 5))
	require.NoError(t, err)
	b, err := NewFromLeaves[uint64](hasher.NewSumHasher(3), []uint64{1, 2, 3})
	require.NoError(t, err)

	beforeRoot := a.Root()
	require.ErrorIs(t, a.Merge(b), ErrIncompatibleHasher)
	require.Equal(t, beforeRoot, a.Root())
	require.Equal(t, 5, a.LeafCount())
}

func TestNewMergedEmptyInput(t *testing.T) {
	merged, err := NewMerged[uint64]()
	require.NoError(t, err)
	require.Nil(t, merged)
}

func TestSplitSizes(t *testing.T) {
	// Arity 3 over leaves 0..11, split at level 1: four sub-trees of three
	// leaves each.
	tree, err := NewFromLeaves(hasher.NewUnsecureHasher(3), hashRange(3, 0, 12))
	require.NoError(t, err)

	parts, err := tree.Split(1)
	require.NoError(t, err)
	require.Len(t, parts, 4)
	for _, part := range parts {
		require.Equal(t, 3, part.LeafCount())
		require.Equal(t, 2, part.Height())
	}

	merged, err := NewMerged(parts...)
	require.NoError(t, err)
	require.True(t, merged.EqFull(tree))
}

func TestSplitMergeInverse(t *testing.T) {
	for _, arity := range []int{2, 3, 5} {
		for _, n := range []int{1, 2, 7, 12, 25, 31} {
			tree, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), hashRange(arity, 0, uint64(n)))
			require.NoError(t, err)

			for lvl := 0; lvl < tree.Height(); lvl++ {
				parts, err := tree.Split(lvl)
				require.NoError(t, err)

				total := 0
				for _, part := range parts {
					total += part.LeafCount()
				}
				require.Equal(t, n, total)

				merged, err := NewMerged(parts...)
				require.NoError(t, err)
				require.True(t, merged.EqFull(tree), "arity %d, n %d, lvl %d", arity, n, lvl)

				// Pushing into a part leaves the source and merged trees
				// untouched: the parts are independent trees.
				parts[0].Push(12345)
				require.True(t, tree.EqFull(merged), "arity %d, n %d, lvl %d", arity, n, lvl)
			}
		}
	}
}

func TestSplitArguments(t *testing.T) {
	empty := newUnsecureTree(t, 3)
	parts, err := empty.Split(0)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.True(t, parts[0].IsEmpty())

	tree, err := NewFromLeaves(hasher.NewUnsecureHasher(3), hashRange(3, 0, 5))
	require.NoError(t, err)
	_, err = tree.Split(tree.Height())
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = tree.Split(-1)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNodeAccess(t *testing.T) {
	arity := 3
	tree, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), hashRange(arity, 0, 14))
	require.NoError(t, err)

	require.True(t, tree.IsValidLeafID(LeafID(0)))
	require.True(t, tree.IsValidLeafID(LeafID(13)))
	require.False(t, tree.IsValidLeafID(LeafID(14)))
	require.False(t, tree.IsValidLeafID(LeafID(-1)))

	require.True(t, tree.IsValidNodeID(NodeID{Lvl: 0, Index: 13}))
	require.True(t, tree.IsValidNodeID(NodeID{Lvl: tree.Height() - 1, Index: 0}))
	require.False(t, tree.IsValidNodeID(NodeID{Lvl: tree.Height(), Index: 0}))
	require.False(t, tree.IsValidNodeID(NodeID{Lvl: 1, Index: tree.LvlLen(1)}))
	require.False(t, tree.IsValidNodeID(NodeID{Lvl: -1, Index: 0}))

	// Parent addressing: leaf 13 sits under node 13/3 at level 1, 13/9 at
	// level 2.
	require.Equal(t, NodeID{Lvl: 0, Index: 13}, tree.NodeIDByParentOfLeaf(LeafID(13), 0))
	require.Equal(t, NodeID{Lvl: 1, Index: 4}, tree.NodeIDByParentOfLeaf(LeafID(13), 1))
	require.Equal(t, NodeID{Lvl: 2, Index: 1}, tree.NodeIDByParentOfLeaf(LeafID(13), 2))

	rootID := NodeID{Lvl: tree.Height() - 1, Index: 0}
	require.Equal(t, tree.Root(), tree.GetNode(rootID))
	require.Equal(t, tree.Root(), *tree.RootRef())

	require.Panics(t, func() {
		tree.GetNode(NodeID{Lvl: tree.Height(), Index: 0})
	})
}

func TestRecalcAndVerifyNode(t *testing.T) {
	for _, arity := range []int{2, 3, 5} {
		tree, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), hashRange(arity, 0, 23))
		require.NoError(t, err)

		scratch := hasher.NewUnsecureHasher(arity)
		for lvl := 0; lvl < tree.Height(); lvl++ {
			for index := 0; index < tree.LvlLen(lvl); index++ {
				id := NodeID{Lvl: lvl, Index: index}

				recalced, err := tree.RecalcNode(id, scratch)
				require.NoError(t, err)
				require.Equal(t, tree.GetNode(id), recalced)

				ok, err := tree.VerifyNode(id, scratch)
				require.NoError(t, err)
				require.True(t, ok)
			}
		}

		// A corrupted interior node fails verification but leaves
		// RecalcNode pointing at the correct value.
		id := NodeID{Lvl: 1, Index: 0}
		correct := tree.GetNode(id)
		tree.lvls[1][0] = correct + 1
		ok, err := tree.VerifyNode(id, scratch)
		require.NoError(t, err)
		require.False(t, ok)
		recalced, err := tree.RecalcNode(id, scratch)
		require.NoError(t, err)
		require.Equal(t, correct, recalced)
	}
}

func TestRecalcNodeArguments(t *testing.T) {
	tree, err := NewFromLeaves(hasher.NewUnsecureHasher(3), hashRange(3, 0, 9))
	require.NoError(t, err)

	_, err = tree.RecalcNode(NodeID{Lvl: 0, Index: 0}, hasher.NewSumHasher(3))
	require.ErrorIs(t, err, ErrIncompatibleHasher)

	_, err = tree.RecalcNode(NodeID{Lvl: 9, Index: 0}, hasher.NewUnsecureHasher(3))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEqWeak(t *testing.T) {
	a, err := NewFromLeaves(hasher.NewUnsecureHasher(3), hashRange(3, 0, 9))
	require.NoError(t, err)
	b, err := NewFromLeaves(hasher.NewUnsecureHasher(3), hashRange(3, 0, 9))
	require.NoError(t, err)
	require.True(t, a.EqWeak(b))

	empty1 := newUnsecureTree(t, 3)
	empty2 := newUnsecureTree(t, 3)
	require.True(t, empty1.EqWeak(empty2))
	require.False(t, a.EqWeak(empty1))
	require.False(t, empty1.EqWeak(a))

	// Same leaves, different hasher semantics.
	c, err := NewFromLeaves[uint64](hasher.NewSumHasher(3), hashRange(3, 0, 9))
	require.NoError(t, err)
	require.False(t, a.EqWeak(c))

	require.NoError(t, b.Replace(12345, LeafID(0)))
	require.False(t, a.EqWeak(b))
	require.False(t, a.EqFull(b))
}

func TestPushDataIncompatible(t *testing.T) {
	tree := newUnsecureTree(t, 3)

	// The unsecure hasher hashes uint64 data, not strings.
	_, err := PushData(tree, "nope")
	require.ErrorIs(t, err, ErrIncompatibleHasher)

	id, err := PushData(tree, uint64(7))
	require.NoError(t, err)
	require.Equal(t, LeafID(0), id)
}

// TestMixedPushPaths crosses power-of-arity boundaries with single pushes
// on trees that were grown batch-wise first; the height must keep tracking
// the leaf count.
func TestMixedPushPaths(t *testing.T) {
	for _, arity := range []int{2, 3, 5} {
		for _, batchLen := range []int{1, 4, 8, 9, 26, 27} {
			tree := newUnsecureTree(t, arity)
			leaves := hashRange(arity, 0, uint64(batchLen))
			tree.PushBatched(leaves)

			for x := uint64(700); x < 730; x++ {
				h := hasher.NewUnsecureHasher(arity).HashData(x)
				tree.Push(h)
				leaves = append(leaves, h)

				require.Equal(t, levelsExpected(len(leaves), arity), tree.Height(), "arity %d, n %d", arity, len(leaves))

				rebuilt, err := NewFromLeaves(hasher.NewUnsecureHasher(arity), leaves)
				require.NoError(t, err)
				require.True(t, tree.EqFull(rebuilt), "arity %d, n %d", arity, len(leaves))
			}
		}
	}
}

func TestGrowthMatchesExpectedHeightAfterSplit(t *testing.T) {
	// Pushing into a split part must keep growing it correctly.
	tree, err := NewFromLeaves(hasher.NewUnsecureHasher(3), hashRange(3, 0, 12))
	require.NoError(t, err)

	parts, err := tree.Split(1)
	require.NoError(t, err)

	part := parts[0]
	leaves := append([]uint64(nil), part.GetLvl(0).ToSlice()...)
	for x := uint64(500); x < 520; x++ {
		h := hasher.NewUnsecureHasher(3).HashData(x)
		part.Push(h)
		leaves = append(leaves, h)

		rebuilt, err := NewFromLeaves(hasher.NewUnsecureHasher(3), leaves)
		require.NoError(t, err)
		require.True(t, part.EqFull(rebuilt), "with %d leaves", len(leaves))
	}
}
