package merkletree

import (
	"github.com/pkg/errors"

	"github.com/merklekit/merkle-engine-go/pkg/hasher"
)

// ProofRef is a merkle inclusion proof borrowing its sibling groups from
// the tree it was generated from. It stores, per interior level from the
// leaves upward (root excluded), the group of siblings as found in the tree
// (possibly shorter than the arity for the last group) together with the
// proven node's position inside the group, plus the root.
//
// A ProofRef is only valid while the source tree is alive and unmutated.
// Use ToOwned to detach it.
type ProofRef[H comparable] struct {
	lvlNodes [][]H
	lvlPath  []int
	root     *H
	arity    int
}

// Proof is the owned, wire-friendly form of a proof. Every level stores
// exactly arity siblings, the last present sibling duplicated when the
// stored group was short, flattened level-major into TreeLvlNodes.
type Proof[H comparable] struct {
	TreeLvlNodes []H   `json:"tree_lvl_nodes"`
	TreeLvlPath  []int `json:"tree_lvl_path"`
	Root         H     `json:"root"`
}

// ProofRef generates a borrowing inclusion proof for the leaf at id.
// Fails with ErrInvalidArgument if the id is out of range.
func (t *Tree[H]) ProofRef(id LeafID) (*ProofRef[H], error) {
	if !t.IsValidLeafID(id) {
		return nil, errors.Wrapf(ErrInvalidArgument, "leaf id %d out of bounds (tree has %d leaves)", id.Index(), t.LeafCount())
	}

	index := id.Index()
	lvlNodes := make([][]H, 0, t.Height()-1)
	lvlPath := make([]int, 0, t.Height()-1)

	for lvl := 0; lvl+1 < t.Height(); lvl++ {
		treeLvl := t.lvls[lvl]

		nextIndex := index / t.arity
		indexStart := nextIndex * t.arity
		indexEnd := indexStart + t.arity
		if indexEnd > len(treeLvl) {
			indexEnd = len(treeLvl)
		}

		lvlNodes = append(lvlNodes, treeLvl[indexStart:indexEnd])
		lvlPath = append(lvlPath, index%t.arity)
		index = nextIndex
	}

	return &ProofRef[H]{
		lvlNodes: lvlNodes,
		lvlPath:  lvlPath,
		root:     t.RootRef(),
		arity:    t.arity,
	}, nil
}

// ProofOwned generates an owned inclusion proof for the leaf at id. Prefer
// ProofRef locally; the owned form is for sending the proof somewhere.
func (t *Tree[H]) ProofOwned(id LeafID) (*Proof[H], error) {
	ref, err := t.ProofRef(id)
	if err != nil {
		return nil, err
	}
	return ref.ToOwned(), nil
}

// Verify replays the hashing ladder starting from the claimed leaf hash h.
// At each level the claimed hash must sit at the recorded position of its
// group; the group is absorbed with the last stored sibling repeated up to
// the arity, producing the claim for the next level. The final claim must
// equal the root.
func (p *ProofRef[H]) Verify(h H, hr hasher.ArityHasher[H]) bool {
	arity := p.arity
	for curLvl, pathIndex := range p.lvlPath {
		nodes := p.lvlNodes[curLvl]
		if pathIndex >= len(nodes) || nodes[pathIndex] != h {
			return false
		}

		for _, node := range nodes {
			hr.HashArityOne(node)
		}
		// A short last group repeats its trailing sibling.
		for repeat := arity - len(nodes); repeat > 0; repeat-- {
			hr.HashArityOne(nodes[len(nodes)-1])
		}
		h = hr.FinishArity()
	}
	return h == *p.root
}

// VerifyRefData verifies the borrowing proof against the leaf hash of the
// original datum.
func VerifyRefData[H comparable, D any](p *ProofRef[H], data D, hr hasher.DataHasher[H, D]) bool {
	return p.Verify(hr.HashData(data), hr)
}

// ToOwned materializes the proof, duplicating the last sibling of short
// groups so every level occupies exactly arity slots.
func (p *ProofRef[H]) ToOwned() *Proof[H] {
	nodes := make([]H, 0, len(p.lvlNodes)*p.arity)
	for _, lvlNodes := range p.lvlNodes {
		nodes = append(nodes, lvlNodes...)
		for repeat := p.arity - len(lvlNodes); repeat > 0; repeat-- {
			nodes = append(nodes, lvlNodes[len(lvlNodes)-1])
		}
	}

	return &Proof[H]{
		TreeLvlNodes: nodes,
		TreeLvlPath:  append([]int(nil), p.lvlPath...),
		Root:         *p.root,
	}
}

// Verify replays the hashing ladder as ProofRef.Verify does. The owned form
// stores aligned groups, so the hasher's arity dictates the group stride.
func (p *Proof[H]) Verify(h H, hr hasher.ArityHasher[H]) bool {
	arity := hr.Arity()
	if len(p.TreeLvlNodes) != len(p.TreeLvlPath)*arity {
		return false
	}

	for curLvl, pathIndex := range p.TreeLvlPath {
		if pathIndex < 0 || pathIndex >= arity {
			return false
		}
		if p.TreeLvlNodes[curLvl*arity+pathIndex] != h {
			return false
		}

		for index := 0; index < arity; index++ {
			hr.HashArityOne(p.TreeLvlNodes[curLvl*arity+index])
		}
		h = hr.FinishArity()
	}
	return h == p.Root
}

// VerifyData verifies the owned proof against the leaf hash of the original
// datum.
func VerifyData[H comparable, D any](p *Proof[H], data D, hr hasher.DataHasher[H, D]) bool {
	return p.Verify(hr.HashData(data), hr)
}
