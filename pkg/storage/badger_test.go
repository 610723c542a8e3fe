package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoshard/chronoshard/pkg/prop"
)

func TestBadgerSnapshotRoundTrip(t *testing.T) {
	m := NewMem(3, false)
	a, err := m.AddVertex(StrID("alice"), 1, 0, map[string]prop.Prop{"role": prop.Str("wizard")})
	require.NoError(t, err)
	b, err := m.AddVertex(StrID("bob"), 1, 0, nil)
	require.NoError(t, err)
	_, err = m.AddEdge(a, b, 5, 0, LayerDefault, map[string]prop.Prop{"weight": prop.I64(9)})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "snapshot")
	snap, err := OpenBadgerSnapshot(dir)
	require.NoError(t, err)
	require.NoError(t, snap.SnapshotShard(3, m))

	loaded, ok := snap.VIDForInShard(3, StrID("alice"))
	require.True(t, ok)
	assert.Equal(t, a, loaded)

	ns, err := snap.LoadNode(3, a)
	require.NoError(t, err)
	assert.Equal(t, StrID("alice"), ns.External)

	require.NoError(t, snap.Close())

	reopened, err := OpenBadgerSnapshot(dir)
	require.NoError(t, err)
	defer reopened.Close()

	rehydrated, err := RehydrateMem(reopened, 3, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), rehydrated.ShardID)

	deg, err := rehydrated.Degree(a, DirOut, AllLayers(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, deg)
}

func TestBadgerSnapshotLoadNodeUnknown(t *testing.T) {
	dir := t.TempDir()
	snap, err := OpenBadgerSnapshot(dir)
	require.NoError(t, err)
	defer snap.Close()

	_, err = snap.LoadNode(0, VID(42))
	assert.Error(t, err)
}
