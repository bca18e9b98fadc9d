package badger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merklekit/merkle-engine-go/pkg/hasher"
	"github.com/merklekit/merkle-engine-go/pkg/merkletree"
	"github.com/merklekit/merkle-engine-go/pkg/persistence"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStoreCRUD(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.HealthCheck())

	data, err := store.LoadEnvelope("missing")
	require.NoError(t, err)
	require.Nil(t, data)

	require.NoError(t, store.SaveEnvelope("block-1", []byte("one")))
	require.NoError(t, store.SaveEnvelope("block-2", []byte("two")))
	require.NoError(t, store.SaveEnvelope("block-1", []byte("one-v2")))

	data, err = store.LoadEnvelope("block-1")
	require.NoError(t, err)
	require.Equal(t, []byte("one-v2"), data)

	names, err := store.ListEnvelopes()
	require.NoError(t, err)
	require.Equal(t, []string{"block-1", "block-2"}, names)

	require.NoError(t, store.DeleteEnvelope("block-1"))
	require.NoError(t, store.DeleteEnvelope("block-1"))

	names, err = store.ListEnvelopes()
	require.NoError(t, err)
	require.Equal(t, []string{"block-2"}, names)
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(dir, zap.NewNop())
	require.NoError(t, err)

	tree, err := merkletree.NewFromLeaves(hasher.NewUnsecureHasher(3), []uint64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	payload, err := persistence.MarshalTree(tree)
	require.NoError(t, err)

	require.NoError(t, store.SaveEnvelope("tree", payload))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(dir, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.LoadEnvelope("tree")
	require.NoError(t, err)

	rebuilt, err := persistence.UnmarshalTree(loaded, hasher.NewUnsecureHasher(3))
	require.NoError(t, err)
	require.True(t, tree.EqFull(rebuilt))
}

func TestBadgerStoreClosed(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close()) // idempotent

	require.Error(t, store.SaveEnvelope("a", []byte("x")))
	_, err = store.LoadEnvelope("a")
	require.Error(t, err)
	require.Error(t, store.HealthCheck())
}
