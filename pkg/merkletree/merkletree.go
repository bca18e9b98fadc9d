// Package merkletree implements a generic merkle tree engine over an
// arbitrary comparable hash type and a fan-out K >= 2. Missing children of
// the last group on a level are synthesized by repeating the last present
// sibling (Bitcoin-style duplication generalized to arbitrary K).
//
// The tree keeps every level in level-major storage: level 0 holds the leaf
// hashes in insertion order, level L holds ceil(len(level L-1) / K) derived
// hashes, and the top level of a non-empty tree holds exactly the root.
// Point updates re-hash one group per level; batched updates re-hash only
// the touched group range per level.
package merkletree

import (
	"github.com/pkg/errors"

	"github.com/merklekit/merkle-engine-go/pkg/hasher"
)

// Tree is a merkle tree over hash type H. The zero value is not usable;
// construct with NewMinimal, NewFromLeaves or NewFromData.
//
// A tree is exclusively owned by one writer. Concurrent readers of a tree
// that is not being mutated are safe: all accessors are pure reads.
type Tree[H comparable] struct {
	// lvls[0] is the leaf level and is always present, possibly empty.
	lvls   [][]H
	hasher hasher.ArityHasher[H]
	arity  int

	// Growth hints, no semantic effect.
	addLvlSz  int
	newLvlCap int
}

// NewMinimal creates an empty tree owning the given hasher.
// Fails with ErrInvalidArgument if the hasher's arity is below 2.
func NewMinimal[H comparable](h hasher.ArityHasher[H]) (*Tree[H], error) {
	arity := h.Arity()
	if arity < 2 {
		return nil, errors.Wrapf(ErrInvalidArgument, "merkle tree arity must be at least 2, got %d", arity)
	}
	return &Tree[H]{
		lvls:      [][]H{nil},
		hasher:    h,
		arity:     arity,
		addLvlSz:  1,
		newLvlCap: 1,
	}, nil
}

// NewFromLeaves creates a tree from a sequence of precomputed leaf hashes.
func NewFromLeaves[H comparable](h hasher.ArityHasher[H], leaves []H) (*Tree[H], error) {
	tree, err := NewMinimal(h)
	if err != nil {
		return nil, err
	}
	tree.PushBatched(leaves)
	return tree, nil
}

// NewFromData creates a tree by hashing each datum into a leaf. The hasher
// must implement hasher.DataHasher for D.
func NewFromData[H comparable, D any](h hasher.ArityHasher[H], data []D) (*Tree[H], error) {
	tree, err := NewMinimal(h)
	if err != nil {
		return nil, err
	}
	if _, err := PushBatchedData(tree, data); err != nil {
		return nil, err
	}
	return tree, nil
}

// Arity returns the fan-out K of the tree.
func (t *Tree[H]) Arity() int { return t.arity }

// Hasher returns the tree's owned hasher. Mutating it invalidates the tree.
func (t *Tree[H]) Hasher() hasher.ArityHasher[H] { return t.hasher }

// IsEmpty reports whether the tree holds no leaves.
func (t *Tree[H]) IsEmpty() bool { return len(t.lvls[0]) == 0 }

// Height returns the number of levels: 0 for an empty tree, 1 for a single
// leaf, and floor(log_K(n-1))+2 for n >= 2 leaves.
func (t *Tree[H]) Height() int {
	if t.IsEmpty() {
		return 0
	}
	return len(t.lvls)
}

// LeafCount returns the number of leaves.
func (t *Tree[H]) LeafCount() int { return len(t.lvls[0]) }

// NextLeafID returns the id the next pushed leaf will get.
func (t *Tree[H]) NextLeafID() LeafID { return LeafID(len(t.lvls[0])) }

// LvlLen returns the length of level lvl. Panics if lvl is out of range; for
// an empty tree (height 0) level 0 still exists and has length 0.
func (t *Tree[H]) LvlLen(lvl int) int { return len(t.lvls[lvl]) }

// GetLvl returns the canonical view of level lvl. Levels at or above the
// height are the empty view.
func (t *Tree[H]) GetLvl(lvl int) Lvl[H] {
	if lvl < t.Height() {
		return NewLvl(t.lvls[lvl], t.arity)
	}
	return NewEmptyLvl[H](t.arity)
}

// Root returns the root hash. Panics if the tree is empty.
func (t *Tree[H]) Root() H { return t.lvls[t.Height()-1][0] }

// RootRef returns a pointer to the stored root hash. Panics if the tree is
// empty. The pointee must not be mutated.
func (t *Tree[H]) RootRef() *H { return &t.lvls[t.Height()-1][0] }

// IsValidLeafID reports whether id addresses a stored leaf.
func (t *Tree[H]) IsValidLeafID(id LeafID) bool {
	return id.Index() >= 0 && id.Index() < t.LeafCount()
}

// IsValidNodeID reports whether id addresses a stored node.
func (t *Tree[H]) IsValidNodeID(id NodeID) bool {
	return id.Lvl >= 0 && id.Lvl < t.Height() &&
		id.Index >= 0 && id.Index < t.LvlLen(id.Lvl)
}

// NodeIDByParentOfLeaf returns the id of the ancestor of leaf at level lvl:
// (lvl, leaf / K**lvl).
func (t *Tree[H]) NodeIDByParentOfLeaf(leaf LeafID, lvl int) NodeID {
	return NodeID{Lvl: lvl, Index: leaf.Index() / intPow(t.arity, lvl)}
}

// GetNodeRef returns a pointer to the stored hash of node id. Panics if the
// id is invalid. The pointee must not be mutated.
func (t *Tree[H]) GetNodeRef(id NodeID) *H {
	if !t.IsValidNodeID(id) {
		panic(errors.Wrapf(ErrInvalidArgument, "node id (lvl %d, index %d) out of bounds", id.Lvl, id.Index))
	}
	return &t.lvls[id.Lvl][id.Index]
}

// GetNode returns the stored hash of node id. Panics if the id is invalid.
func (t *Tree[H]) GetNode(id NodeID) H { return *t.GetNodeRef(id) }

// lvlMust returns the expected number of levels for the current leaf count.
// Only meaningful on a non-empty tree.
func (t *Tree[H]) lvlMust() int {
	return LengthInBase(len(t.lvls[0])-1, t.arity) + 1
}

// makeLvlValid ensures level lvl exists, allocating with the growth hints.
func (t *Tree[H]) makeLvlValid(lvl, expectedLen int) {
	if len(t.lvls) <= lvl {
		capacity := t.newLvlCap
		if expectedLen > capacity {
			capacity = expectedLen
		}
		t.lvls = append(t.lvls, make([]H, 0, capacity))
	}
}

// syncAddLvlSz resyncs the level-growth watermark with the actual height so
// Push keeps adding levels at the right leaf counts after bulk growth.
func (t *Tree[H]) syncAddLvlSz() {
	if t.IsEmpty() {
		t.addLvlSz = 1
		return
	}
	t.addLvlSz = intPow(t.arity, t.Height()-1)
}

// setOrPush writes the hash at (lvl, index), appending when index is the
// first position past the end.
func (t *Tree[H]) setOrPush(index, lvl int, newHash H) {
	if index < len(t.lvls[lvl]) {
		t.lvls[lvl][index] = newHash
	} else {
		t.lvls[lvl] = append(t.lvls[lvl], newHash)
	}
}

// groupHash computes the hash of the group on level lvl-1 containing
// element elemN, repeating the last present sibling up to the arity when
// the group is short.
func (t *Tree[H]) groupHash(elemN, lvl int) H {
	below := t.lvls[lvl-1]
	groupFrom := elemN - elemN%t.arity

	for i := 0; i < t.arity; i++ {
		if groupFrom+i < len(below) {
			t.hasher.HashArityOne(below[groupFrom+i])
			continue
		}
		last := below[groupFrom+i-1]
		for ; i < t.arity; i++ {
			t.hasher.HashArityOne(last)
		}
		break
	}
	return t.hasher.FinishArity()
}

// calcLvlHashes recomputes level lvl for the groups fed by elements
// [from, to) of level lvl-1. Returns whether the last group was complete.
func (t *Tree[H]) calcLvlHashes(from, to, lvl int) (lastIsEven bool) {
	arity := t.arity
	lastIsEven = to%arity == 0

	// Groups wholly inside [0, to) are complete.
	for elemIndex := from / arity; elemIndex < to/arity; elemIndex++ {
		for winIndex := 0; winIndex < arity; winIndex++ {
			t.hasher.HashArityOne(t.lvls[lvl-1][elemIndex*arity+winIndex])
		}
		t.setOrPush(elemIndex, lvl, t.hasher.FinishArity())
	}

	if !lastIsEven {
		t.setOrPush(to/arity, lvl, t.groupHash(to-1, lvl))
	}
	return lastIsEven
}

// recalcElemHashes rehashes the spine above leaf element elemN, one group
// per level.
func (t *Tree[H]) recalcElemHashes(elemN int) {
	for lvl := 1; lvl < t.Height(); lvl++ {
		newHash := t.groupHash(elemN, lvl)
		elemN /= t.arity
		t.setOrPush(elemN, lvl, newHash)
	}
}

// Push appends a single leaf hash and rehashes its spine.
// For many leaves PushBatched is faster.
func (t *Tree[H]) Push(h H) LeafID {
	if t.LeafCount() == t.addLvlSz {
		t.addLvlSz *= t.arity
		t.lvls = append(t.lvls, make([]H, 0, t.newLvlCap))
	}

	elemN := t.LeafCount()
	t.lvls[0] = append(t.lvls[0], h)
	t.recalcElemHashes(elemN)

	return LeafID(t.LeafCount() - 1)
}

// PushData hashes a datum into a leaf and pushes it. The tree's hasher must
// implement hasher.DataHasher for D.
func PushData[H comparable, D any](t *Tree[H], data D) (LeafID, error) {
	dh, ok := t.hasher.(hasher.DataHasher[H, D])
	if !ok {
		return 0, errors.Wrap(ErrIncompatibleHasher, "tree hasher cannot hash data of this type")
	}
	return t.Push(dh.HashData(data)), nil
}

// Replace overwrites the leaf at id and rehashes its spine.
// Fails with ErrInvalidArgument if the id is out of range.
func (t *Tree[H]) Replace(h H, id LeafID) error {
	if !t.IsValidLeafID(id) {
		return errors.Wrapf(ErrInvalidArgument, "leaf id %d out of bounds (tree has %d leaves)", id.Index(), t.LeafCount())
	}
	t.lvls[0][id.Index()] = h
	t.recalcElemHashes(id.Index())
	return nil
}

// ReplaceData hashes a datum and replaces the leaf at id with it.
func ReplaceData[H comparable, D any](t *Tree[H], data D, id LeafID) error {
	dh, ok := t.hasher.(hasher.DataHasher[H, D])
	if !ok {
		return errors.Wrap(ErrIncompatibleHasher, "tree hasher cannot hash data of this type")
	}
	return t.Replace(dh.HashData(data), id)
}

// PushBatched appends a batch of leaf hashes, rebuilding each interior level
// once over the touched range. Faster than repeated Push.
func (t *Tree[H]) PushBatched(batch []H) LeafRange {
	// Appending at the end can never hit the start-id precondition.
	r, _ := t.ReplaceBatched(batch, t.NextLeafID())
	return r
}

// PushBatchedData hashes a batch of data into leaves and appends them.
func PushBatchedData[H comparable, D any](t *Tree[H], batch []D) (LeafRange, error) {
	return ReplaceBatchedData(t, batch, t.NextLeafID())
}

// ReplaceBatched overwrites leaves starting at startID with the batch;
// batch elements past the current leaf count are appended. startID equal to
// the leaf count means pure append; a larger startID fails with
// ErrInvalidArgument.
//
// Interior levels are recomputed over the touched group range only, walking
// the ladder once: level by level the range shrinks by a factor of the
// arity, with the last possibly short group rehashed via sibling repetition.
func (t *Tree[H]) ReplaceBatched(batch []H, startID LeafID) (LeafRange, error) {
	if startID > t.NextLeafID() || startID < 0 {
		return LeafRange{}, errors.Wrapf(ErrInvalidArgument, "batch start id %d past the end of the leaf level (%d leaves)", startID.Index(), t.LeafCount())
	}

	start := startID.Index()
	overwrite := t.LeafCount() - start
	if overwrite > len(batch) {
		overwrite = len(batch)
	}
	copy(t.lvls[0][start:], batch[:overwrite])
	t.lvls[0] = append(t.lvls[0], batch[overwrite:]...)

	from := start
	to := start + len(batch)

	if from != to {
		f, tt := from, to
		lvlMust := t.lvlMust()
		for lvl := 1; lvl != lvlMust; lvl++ {
			t.makeLvlValid(lvl, tt/t.arity-f/t.arity+1)
			lastIsEven := t.calcLvlHashes(f, tt, lvl)

			f /= t.arity
			tt /= t.arity
			if !lastIsEven {
				tt++
			}
		}
		t.syncAddLvlSz()
	}

	return LeafRange{From: LeafID(from), To: LeafID(to)}, nil
}

// ReplaceBatchedData hashes a batch of data and replaces leaves starting at
// startID.
func ReplaceBatchedData[H comparable, D any](t *Tree[H], batch []D, startID LeafID) (LeafRange, error) {
	dh, ok := t.hasher.(hasher.DataHasher[H, D])
	if !ok {
		return LeafRange{}, errors.Wrap(ErrIncompatibleHasher, "tree hasher cannot hash data of this type")
	}
	hashes := make([]H, len(batch))
	for i, data := range batch {
		hashes[i] = dh.HashData(data)
	}
	return t.ReplaceBatched(hashes, startID)
}

// Merge appends the leaves of the given trees, in order, to the receiver.
//
// Each level of a merged tree is reused as-is; only the seam needs
// rehashing. The first level whose pre-existing length is not a multiple of
// the arity marks the recalc frontier, and from there upward hashes are
// recomputed along the seam. The merged-in trees are left unchanged.
//
// Merge is maximally efficient when the receiver and every merged tree hold
// K**e leaves for the same e: no seam recomputation happens at all.
//
// Fails with ErrIncompatibleHasher if some tree's hasher is not equivalent
// to the receiver's; the receiver is unchanged in that case.
func (t *Tree[H]) Merge(others ...*Tree[H]) error {
	for _, other := range others {
		if !t.hasher.IsTheSame(other.hasher) {
			return errors.Wrap(ErrIncompatibleHasher, "cannot merge trees built by non-equivalent hashers")
		}
	}

	for _, other := range others {
		if other.LeafCount() == 0 {
			continue
		}
		otherHeight := other.Height()

		recalcIndex := -1
		for lvl, otherLvl := range other.lvls {
			t.makeLvlValid(lvl, len(otherLvl))

			if recalcIndex >= 0 {
				fromIndex := recalcIndex
				t.calcLvlHashes(fromIndex, t.LvlLen(lvl-1), lvl)
				recalcIndex = fromIndex / t.arity
			} else {
				leftLen := t.LvlLen(lvl)
				t.lvls[lvl] = append(t.lvls[lvl], otherLvl...)
				if leftLen%t.arity != 0 {
					recalcIndex = leftLen
				}
			}
		}

		// Extend upward to the new expected height.
		if recalcIndex < 0 {
			recalcIndex = 0
		}
		lvlMust := t.lvlMust()
		for lvl := otherHeight; lvl < lvlMust; lvl++ {
			preLvlLen := t.LvlLen(lvl - 1)
			t.makeLvlValid(lvl, preLvlLen/t.arity)

			t.calcLvlHashes(recalcIndex, preLvlLen, lvl)
			recalcIndex /= t.arity
		}
		t.syncAddLvlSz()
	}
	return nil
}

// NewMerged builds one tree holding the concatenated leaves of the given
// trees. The inputs are left unchanged; the first tree's hasher is cloned
// for the result and must implement hasher.CloneableHasher.
//
// Returns nil (and no error) for an empty input.
func NewMerged[H comparable](trees ...*Tree[H]) (*Tree[H], error) {
	if len(trees) == 0 {
		return nil, nil
	}
	merged, err := trees[0].Clone()
	if err != nil {
		return nil, err
	}
	if err := merged.Merge(trees[1:]...); err != nil {
		return nil, err
	}
	return merged, nil
}

// Clone returns a deep copy of the tree. The hasher must implement
// hasher.CloneableHasher; a tree with a non-cloneable hasher fails with
// ErrInvalidArgument.
func (t *Tree[H]) Clone() (*Tree[H], error) {
	ch, ok := t.hasher.(hasher.CloneableHasher[H])
	if !ok {
		return nil, errors.Wrap(ErrInvalidArgument, "tree hasher is not cloneable")
	}

	lvls := make([][]H, len(t.lvls))
	for i, lvl := range t.lvls {
		lvls[i] = append([]H(nil), lvl...)
	}
	return &Tree[H]{
		lvls:      lvls,
		hasher:    ch.CloneHasher(),
		arity:     t.arity,
		addLvlSz:  t.addLvlSz,
		newLvlCap: t.newLvlCap,
	}, nil
}

// Split slices the tree at level lvl into ceil(leafCount / K**lvl)
// sub-trees whose leaf levels concatenate back to the original leaf level.
// The last sub-tree may be shorter and is truncated to its own expected
// height. The hasher is cloned per sub-tree and must implement
// hasher.CloneableHasher.
//
// An empty tree splits at level 0 into a single empty clone. A level at or
// above the height fails with ErrInvalidArgument.
func (t *Tree[H]) Split(lvl int) ([]*Tree[H], error) {
	ch, ok := t.hasher.(hasher.CloneableHasher[H])
	if !ok {
		return nil, errors.Wrap(ErrInvalidArgument, "tree hasher is not cloneable")
	}

	if lvl == 0 && t.IsEmpty() {
		clone, err := t.Clone()
		if err != nil {
			return nil, err
		}
		return []*Tree[H]{clone}, nil
	}
	if lvl < 0 || lvl >= t.Height() {
		return nil, errors.Wrapf(ErrInvalidArgument, "split level %d out of bounds (tree height %d)", lvl, t.Height())
	}

	trees := make([]*Tree[H], t.LvlLen(lvl))
	for i := range trees {
		trees[i] = &Tree[H]{
			lvls:      make([][]H, 0, lvl+1),
			hasher:    ch.CloneHasher(),
			arity:     t.arity,
			addLvlSz:  1,
			newLvlCap: t.newLvlCap,
		}
	}

	for curLvl := 0; curLvl <= lvl; curLvl++ {
		chunkSize := intPow(t.arity, lvl-curLvl)
		level := t.lvls[curLvl]
		for treeIndex := 0; treeIndex*chunkSize < len(level); treeIndex++ {
			hi := (treeIndex + 1) * chunkSize
			if hi > len(level) {
				hi = len(level)
			}
			chunk := append([]H(nil), level[treeIndex*chunkSize:hi]...)
			trees[treeIndex].lvls = append(trees[treeIndex].lvls, chunk)
		}
	}

	// Only the last sub-tree can be short; cut it down to its own height.
	last := trees[len(trees)-1]
	last.lvls = last.lvls[:last.lvlMust()]

	for _, tree := range trees {
		tree.syncAddLvlSz()
	}

	return trees, nil
}

// RecalcNode re-derives the hash of node id from its children on the level
// below, using the caller's scratch hasher, without writing it back. For a
// leaf node the stored leaf is returned unchanged.
//
// Fails with ErrIncompatibleHasher if the scratch hasher is not equivalent
// to the tree's, and ErrInvalidArgument for an invalid id.
func (t *Tree[H]) RecalcNode(id NodeID, scratch hasher.ArityHasher[H]) (H, error) {
	var zero H
	if !t.hasher.IsTheSame(scratch) {
		return zero, errors.Wrap(ErrIncompatibleHasher, "scratch hasher is not equivalent to the tree's")
	}
	if !t.IsValidNodeID(id) {
		return zero, errors.Wrapf(ErrInvalidArgument, "node id (lvl %d, index %d) out of bounds", id.Lvl, id.Index)
	}

	if id.Lvl == 0 {
		return t.lvls[0][id.Index], nil
	}

	below := t.lvls[id.Lvl-1]
	indexStart := id.Index * t.arity
	indexEnd := indexStart + t.arity
	if indexEnd > len(below) {
		indexEnd = len(below)
	}

	for index := indexStart; index < indexEnd; index++ {
		scratch.HashArityOne(below[index])
	}
	for repeat := indexStart + t.arity - indexEnd; repeat > 0; repeat-- {
		scratch.HashArityOne(below[indexEnd-1])
	}
	return scratch.FinishArity(), nil
}

// VerifyNode reports whether the stored hash of node id equals its
// re-derivation from the level below.
func (t *Tree[H]) VerifyNode(id NodeID, scratch hasher.ArityHasher[H]) (bool, error) {
	recalced, err := t.RecalcNode(id, scratch)
	if err != nil {
		return false, err
	}
	return recalced == t.lvls[id.Lvl][id.Index], nil
}

// EqWeak compares two trees by height and root only. Two empty trees are
// equal; trees built by non-equivalent hashers are unequal. In most cases
// this is enough; EqFull compares every level.
func (t *Tree[H]) EqWeak(other *Tree[H]) bool {
	if t.IsEmpty() {
		return other.IsEmpty()
	}
	if other.IsEmpty() || !t.hasher.IsTheSame(other.hasher) {
		return false
	}
	return t.Height() == other.Height() && t.Root() == other.Root()
}

// EqFull compares two trees level by level under canonical level equality.
func (t *Tree[H]) EqFull(other *Tree[H]) bool {
	if t.Height() != other.Height() {
		return false
	}
	if !t.hasher.IsTheSame(other.hasher) {
		return false
	}

	for lvl := t.Height() - 1; lvl >= 0; lvl-- {
		if !t.GetLvl(lvl).Eq(other.GetLvl(lvl)) {
			return false
		}
	}
	return true
}
