package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/merklekit/merkle-engine-go/pkg/hasher"
	"github.com/merklekit/merkle-engine-go/pkg/merkletree"
)

// MarshalTree serializes a tree's canonical envelope to JSON bytes.
func MarshalTree[H comparable](tree *merkletree.Tree[H]) ([]byte, error) {
	if tree == nil {
		return nil, fmt.Errorf("cannot marshal nil tree")
	}

	data, err := json.Marshal(tree.Serializable())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tree envelope to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalTree rebuilds a tree from JSON envelope bytes using the given
// hasher. The envelope's self-check applies: an arity or root disagreement
// surfaces as the corresponding merkletree error kind.
func UnmarshalTree[H comparable](data []byte, h hasher.ArityHasher[H]) (*merkletree.Tree[H], error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var env merkletree.Serde[H]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON envelope: %w", err)
	}
	return env.ToTree(h)
}
