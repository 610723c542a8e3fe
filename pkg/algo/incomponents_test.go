package algo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoshard/chronoshard/pkg/storage"
	"github.com/chronoshard/chronoshard/pkg/view"
)

type singleShardBackend struct {
	store *storage.Mem
}

func (b singleShardBackend) ShardCount() int                    { return 1 }
func (b singleShardBackend) Shard(i int) storage.NodeStorageOps { return b.store }

// buildReferenceGraph constructs the edge set
// (1,2) (1,3) (2,4) (2,5) (5,4) (4,6) (4,7) (5,8).
func buildReferenceGraph(t *testing.T) view.View {
	t.Helper()
	m := storage.NewMem(0, false)
	vids := map[string]storage.VID{}
	for i := 1; i <= 8; i++ {
		name := string(rune('0' + i))
		vid, err := m.AddVertex(storage.StrID(name), 0, 0, nil)
		require.NoError(t, err)
		vids[name] = vid
	}
	edges := [][2]string{
		{"1", "2"}, {"1", "3"}, {"2", "4"}, {"2", "5"},
		{"5", "4"}, {"4", "6"}, {"4", "7"}, {"5", "8"},
	}
	for _, e := range edges {
		_, err := m.AddEdge(vids[e[0]], vids[e[1]], 1, 0, storage.LayerDefault, nil)
		require.NoError(t, err)
	}
	return view.New(singleShardBackend{store: m})
}

func TestInComponentsMatchesReferenceGraph(t *testing.T) {
	v := buildReferenceGraph(t)
	result, err := InComponents(context.Background(), v, 0)
	require.NoError(t, err)

	assert.Empty(t, result["1"], "in(1) has no ancestors")
	assert.ElementsMatch(t, []string{"1", "2", "5"}, result["4"], "in(4)")
	assert.ElementsMatch(t, []string{"1", "2", "4", "5"}, result["6"], "in(6)")
	assert.ElementsMatch(t, []string{"1", "2", "5"}, result["8"], "in(8)")
}

func TestInComponentSingleNodeMatchesFullResult(t *testing.T) {
	v := buildReferenceGraph(t)
	full, err := InComponents(context.Background(), v, 2)
	require.NoError(t, err)

	single, err := InComponent(context.Background(), v, 0, storage.StrID("6"))
	require.NoError(t, err)
	assert.ElementsMatch(t, full["6"], single)
}

func TestInComponentUnknownNodeReturnsNil(t *testing.T) {
	v := buildReferenceGraph(t)
	result, err := InComponent(context.Background(), v, 0, storage.StrID("nonexistent"))
	require.NoError(t, err)
	assert.Nil(t, result)
}

// TestInComponentsAgreesWithBruteForceReverseBFS checks the parallel
// result against a simple sequential reverse-BFS oracle on a small DAG.
func TestInComponentsAgreesWithBruteForceReverseBFS(t *testing.T) {
	m := storage.NewMem(0, false)
	vids := map[string]storage.VID{}
	names := []string{"a", "b", "c", "d", "e", "f"}
	for _, n := range names {
		vid, err := m.AddVertex(storage.StrID(n), 0, 0, nil)
		require.NoError(t, err)
		vids[n] = vid
	}
	edges := [][2]string{
		{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"},
		{"d", "e"}, {"e", "f"}, {"c", "f"},
	}
	inAdj := map[string][]string{}
	for _, e := range edges {
		_, err := m.AddEdge(vids[e[0]], vids[e[1]], 1, 0, storage.LayerDefault, nil)
		require.NoError(t, err)
		inAdj[e[1]] = append(inAdj[e[1]], e[0])
	}

	v := view.New(singleShardBackend{store: m})
	result, err := InComponents(context.Background(), v, 0)
	require.NoError(t, err)

	for _, target := range names {
		expected := bruteForceAncestors(target, inAdj)
		assert.ElementsMatch(t, expected, result[target], "node %s", target)
	}
}

func bruteForceAncestors(target string, inAdj map[string][]string) []string {
	seen := map[string]bool{}
	queue := append([]string{}, inAdj[target]...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		queue = append(queue, inAdj[n]...)
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}
