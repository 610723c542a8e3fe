package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/storage"
	"github.com/chronoshard/chronoshard/pkg/view"
)

type singleShardBackend struct {
	store *storage.Mem
}

func (b singleShardBackend) ShardCount() int                    { return 1 }
func (b singleShardBackend) Shard(i int) storage.NodeStorageOps { return b.store }

// eventView builds a view over one node per timestamp in 1..6,
// the event layout of the rolling/expanding reference scenario.
func eventView(t *testing.T) view.View {
	t.Helper()
	m := storage.NewMem(0, false)
	for i := int64(1); i <= 6; i++ {
		_, err := m.AddVertex(storage.StrID(string(rune('a'+i-1))), prop.Timestamp(i), 0, nil)
		require.NoError(t, err)
	}
	return view.New(singleShardBackend{store: m})
}

func TestRollingOverYieldsWindowedSubViews(t *testing.T) {
	v := eventView(t)

	views, err := RollingOver(v, prop.Millis(2), prop.Millis(2))
	require.NoError(t, err)
	require.Len(t, views, 3)

	// Sub-view node counts follow the [1,3) [3,5) [5,7) bounds.
	for i, want := range []int{2, 2, 2} {
		assert.Len(t, views[i].Nodes(), want, "window %d", i)
	}
}

func TestExpandingOverAccumulates(t *testing.T) {
	v := eventView(t)

	views, err := ExpandingOver(v, prop.Millis(2))
	require.NoError(t, err)
	require.Len(t, views, 3)

	for i, want := range []int{2, 4, 6} {
		assert.Len(t, views[i].Nodes(), want, "window %d", i)
	}
}

func TestRollingOverEmptyViewYieldsNothing(t *testing.T) {
	v := view.New(singleShardBackend{store: storage.NewMem(0, false)})
	views, err := RollingOver(v, prop.Millis(2), prop.Millis(2))
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRollingOverInvalidIntervalSurfaces(t *testing.T) {
	v := eventView(t)
	_, err := RollingOver(v, prop.Millis(0), prop.Millis(2))
	assert.Error(t, err)
}
