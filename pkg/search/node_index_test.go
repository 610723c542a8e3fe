package search

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

func TestSearchNodesExactFieldMatch(t *testing.T) {
	m := storage.NewMem(0, false)
	gandalf, err := m.AddVertex(storage.StrID("Gandalf"), 0, 0, map[string]prop.Prop{"kind": prop.Str("wizard")})
	require.NoError(t, err)
	_, err = m.AddVertex(storage.StrID("Frodo"), 0, 0, map[string]prop.Prop{"kind": prop.Str("Hobbit")})
	require.NoError(t, err)

	v := view.New(singleShardBackend{store: m})
	idx, err := BuildNodeIndex(v, []string{"kind"})
	require.NoError(t, err)

	results := idx.Search("kind:wizard", 10, 0)
	assert.Equal(t, []string{"Gandalf"}, results, "exactly [Gandalf]")
	_ = gandalf
}

func TestSearchNodesFreeTextRanking(t *testing.T) {
	m := storage.NewMem(0, false)
	_, err := m.AddVertex(storage.StrID("n1"), 0, 0, map[string]prop.Prop{"bio": prop.Str("a grey wizard of the order")})
	require.NoError(t, err)
	_, err = m.AddVertex(storage.StrID("n2"), 0, 0, map[string]prop.Prop{"bio": prop.Str("a hobbit of the shire")})
	require.NoError(t, err)

	v := view.New(singleShardBackend{store: m})
	idx, err := BuildNodeIndex(v, []string{"bio"})
	require.NoError(t, err)

	results := idx.Search("wizard", 10, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "n1", results[0])
}

func TestSearchNodesPagination(t *testing.T) {
	m := storage.NewMem(0, false)
	for _, name := range []string{"a", "b", "c"} {
		_, err := m.AddVertex(storage.StrID(name), 0, 0, map[string]prop.Prop{"kind": prop.Str("thing")})
		require.NoError(t, err)
	}
	v := view.New(singleShardBackend{store: m})
	idx, err := BuildNodeIndex(v, []string{"kind"})
	require.NoError(t, err)

	all := idx.Search("kind:thing", 10, 0)
	require.Len(t, all, 3)

	page1 := idx.Search("kind:thing", 2, 0)
	page2 := idx.Search("kind:thing", 2, 2)
	assert.Equal(t, all[:2], page1)
	assert.Equal(t, all[2:], page2)
}

func TestSearchNodesNoMatchReturnsEmpty(t *testing.T) {
	m := storage.NewMem(0, false)
	_, err := m.AddVertex(storage.StrID("n1"), 0, 0, map[string]prop.Prop{"kind": prop.Str("wizard")})
	require.NoError(t, err)
	v := view.New(singleShardBackend{store: m})
	idx, err := BuildNodeIndex(v, []string{"kind"})
	require.NoError(t, err)

	assert.Empty(t, idx.Search("kind:dragon", 10, 0))
	assert.Empty(t, idx.Search("nonexistentterm", 10, 0))
}

func TestParseFieldQuery(t *testing.T) {
	field, value, ok := parseFieldQuery("kind:wizard")
	require.True(t, ok)
	assert.Equal(t, "kind", field)
	assert.Equal(t, "wizard", value)

	_, _, ok = parseFieldQuery("just a phrase")
	assert.False(t, ok)

	_, _, ok = parseFieldQuery("no-colon-here")
	assert.False(t, ok)
}
