package shard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

func newRunningShard(t *testing.T, id ID) *Shard {
	t.Helper()
	s := New(id, storage.NewMem(uint32(id), false), 4)
	go s.Run()
	t.Cleanup(func() { _ = s.SendDone() })
	return s
}

func TestSendAddVertexReturnsVID(t *testing.T) {
	s := newRunningShard(t, 0)

	vid1, err := s.SendAddVertex(storage.StrID("a"), 1, 0, nil)
	require.NoError(t, err)
	vid2, err := s.SendAddVertex(storage.StrID("a"), 2, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, vid1, vid2)

	n, err := s.SendLen()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSendAfterDoneReturnsShardDown(t *testing.T) {
	s := New(ID(0), storage.NewMem(0, false), 4)
	go s.Run()
	require.NoError(t, s.SendDone())

	// Give the actor goroutine a chance to observe Done and mark stopped.
	deadline := time.Now().Add(time.Second)
	for !s.stopped.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, err := s.SendAddVertex(storage.StrID("late"), 0, 0, nil)
	assert.ErrorIs(t, err, chronoerr.ErrShardDown)
}

func TestRouterSameShardEdge(t *testing.T) {
	s0 := newRunningShard(t, 0)
	router := NewRouter([]*Shard{s0})

	a, err := s0.SendAddVertex(storage.StrID("a"), 0, 0, nil)
	require.NoError(t, err)
	b, err := s0.SendAddVertex(storage.StrID("b"), 0, 0, nil)
	require.NoError(t, err)

	err = router.RouteEdge(0, 0, a, b, 1, 0, storage.LayerDefault, nil)
	require.NoError(t, err)

	neigh, err := s0.Store.Neighbours(a, storage.DirOut, storage.AllLayers(), nil)
	require.NoError(t, err)
	assert.Equal(t, []storage.VID{b}, neigh)
}

func TestRouterCrossShardEdge(t *testing.T) {
	s0 := newRunningShard(t, 0)
	s1 := newRunningShard(t, 1)
	router := NewRouter([]*Shard{s0, s1})

	a, err := s0.SendAddVertex(storage.StrID("a"), 0, 0, nil)
	require.NoError(t, err)
	b, err := s1.SendAddVertex(storage.StrID("b"), 0, 0, nil)
	require.NoError(t, err)

	err = router.RouteEdge(0, 1, a, b, 5, 0, storage.LayerDefault, nil)
	require.NoError(t, err)

	// The remote-out half on s0 and remote-in half on s1 must agree.
	outEdge, ok := s0.Store.FindEdge(a, b, storage.LayerDefault)
	require.True(t, ok)
	inEdge, ok := s1.Store.FindEdge(a, b, storage.LayerDefault)
	require.True(t, ok)
	assert.Equal(t, outEdge.Additions, inEdge.Additions)

	neigh, err := s1.Store.Neighbours(b, storage.DirIn, storage.AllLayers(), nil)
	require.NoError(t, err)
	assert.Equal(t, []storage.VID{a}, neigh)
}

func TestOwnerOfDeterministic(t *testing.T) {
	ext := storage.StrID("stable-id")
	first := OwnerOf(ext, 8)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, OwnerOf(ext, 8))
	}
}
