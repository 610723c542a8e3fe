package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/config"
	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

func testConfig(shardCount int, persistent bool) config.Config {
	cfg := config.LoadFromEnv()
	cfg.Storage.ShardCount = shardCount
	cfg.Storage.Persistent = persistent
	return cfg
}

func openGraph(t *testing.T, shardCount int, persistent bool) *Graph {
	t.Helper()
	g, err := Open(testConfig(shardCount, persistent))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestAddEdgeAutoVivifiesEndpoints(t *testing.T) {
	g := openGraph(t, 4, false)

	require.NoError(t, g.AddEdge(storage.StrID("a"), storage.StrID("b"), 1))

	v := g.View()
	aID, ok := g.NodeID(storage.StrID("a"))
	require.True(t, ok)
	_, ok = g.NodeID(storage.StrID("b"))
	require.True(t, ok, "AddEdge must auto-vivify the destination endpoint too")

	node, ok := v.Node(aID)
	require.True(t, ok)
	deg, err := node.Degree(storage.DirOut)
	require.NoError(t, err)
	assert.Equal(t, 1, deg)
}

func TestAddEdgeCrossShardAgreement(t *testing.T) {
	// Many shards over few distinct ids makes a cross-shard pairing
	// likely; the assertion below holds regardless of which shards
	// src/dst happen to land on.
	g := openGraph(t, 8, false)

	_, err := g.AddVertex(storage.StrID("src"), 0, 0, nil)
	require.NoError(t, err)
	_, err = g.AddVertex(storage.StrID("dst"), 0, 0, nil)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(storage.StrID("src"), storage.StrID("dst"), 5, WithProps(map[string]prop.Prop{"w": prop.I64(3)})))

	srcID, _ := g.NodeID(storage.StrID("src"))
	dstID, _ := g.NodeID(storage.StrID("dst"))

	v := g.View()
	e, ok := v.Edge(srcID, dstID)
	require.True(t, ok)
	val, ok := e.Prop("w", 5)
	require.True(t, ok)
	got, _ := val.IntoI64()
	assert.Equal(t, int64(3), got)
}

func TestDeleteEdgeRequiresPersistentGraph(t *testing.T) {
	g := openGraph(t, 2, false)
	require.NoError(t, g.AddEdge(storage.StrID("a"), storage.StrID("b"), 1))

	err := g.DeleteEdge(storage.StrID("a"), storage.StrID("b"), 2, 0, "")
	assert.ErrorIs(t, err, chronoerr.ErrDeletionUnsupported)
}

func TestDeleteEdgeOnPersistentGraph(t *testing.T) {
	g := openGraph(t, 2, true)
	require.NoError(t, g.AddEdge(storage.StrID("a"), storage.StrID("b"), 1))
	require.NoError(t, g.DeleteEdge(storage.StrID("a"), storage.StrID("b"), 5, 0, ""))

	srcID, _ := g.NodeID(storage.StrID("a"))
	dstID, _ := g.NodeID(storage.StrID("b"))
	v := g.View()
	e, ok := v.Edge(srcID, dstID)
	require.True(t, ok)
	assert.False(t, e.AliveAt(10))
	assert.True(t, e.AliveAt(3))
}

func TestDeleteEdgeUndefinedLayerIsLayerMismatch(t *testing.T) {
	g := openGraph(t, 2, true)
	require.NoError(t, g.AddEdge(storage.StrID("a"), storage.StrID("b"), 1))

	err := g.DeleteEdge(storage.StrID("a"), storage.StrID("b"), 2, 0, "never-defined")
	assert.ErrorIs(t, err, chronoerr.ErrLayerMismatch)
}

func TestViewLayersRestrictsByName(t *testing.T) {
	g := openGraph(t, 2, false)
	require.NoError(t, g.AddEdge(storage.StrID("a"), storage.StrID("b"), 1, WithLayer("transfer")))
	require.NoError(t, g.AddEdge(storage.StrID("a"), storage.StrID("c"), 1))

	v, err := g.ViewLayers("transfer")
	require.NoError(t, err)

	aID, _ := g.NodeID(storage.StrID("a"))
	node, ok := v.Node(aID)
	require.True(t, ok)
	deg, err := node.Degree(storage.DirOut)
	require.NoError(t, err)
	assert.Equal(t, 1, deg, "only the transfer-layer edge is visible")

	bID, _ := g.NodeID(storage.StrID("b"))
	e, ok := v.Edge(aID, bID)
	require.True(t, ok)
	assert.Equal(t, "transfer", g.LayerName(e.Layer()))

	_, err = g.ViewLayers("no-such-layer")
	assert.ErrorIs(t, err, chronoerr.ErrLayerMismatch)
}

func TestSaveAndOpenFromFileRoundTrip(t *testing.T) {
	g := openGraph(t, 3, false)
	require.NoError(t, g.AddEdge(storage.StrID("a"), storage.StrID("b"), 1, WithProps(map[string]prop.Prop{"k": prop.Str("v")})))

	dir := t.TempDir()
	path := filepath.Join(dir, "g.graph")
	require.NoError(t, g.SaveToFile(path))

	reopened, err := OpenFromFile(path, testConfig(3, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	aID, ok := reopened.NodeID(storage.StrID("a"))
	require.True(t, ok)
	bID, ok := reopened.NodeID(storage.StrID("b"))
	require.True(t, ok)

	v := reopened.View()
	e, ok := v.Edge(aID, bID)
	require.True(t, ok)
	val, ok := e.Prop("k", 1)
	require.True(t, ok)
	s, _ := val.IntoStr()
	assert.Equal(t, "v", s)
}

func TestEncodeURLRoundTrip(t *testing.T) {
	g := openGraph(t, 1, false)
	_, err := g.AddVertex(storage.StrID("gandalf"), 0, 0, nil)
	require.NoError(t, err)

	encoded, err := g.EncodeURL()
	require.NoError(t, err)

	decoded, err := DecodeURL(encoded, testConfig(1, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = decoded.Close() })

	_, ok := decoded.NodeID(storage.StrID("gandalf"))
	assert.True(t, ok)
}

func TestInComponentsMatchesScenarioS2(t *testing.T) {
	g := openGraph(t, 4, false)
	edges := [][2]string{
		{"1", "2"}, {"1", "3"}, {"2", "4"}, {"2", "5"},
		{"5", "4"}, {"4", "6"}, {"4", "7"}, {"5", "8"},
	}
	for i, e := range edges {
		require.NoError(t, g.AddEdge(storage.StrID(e[0]), storage.StrID(e[1]), prop.Timestamp(i)))
	}

	result, err := g.InComponents(context.Background(), 2)
	require.NoError(t, err)

	assert.Empty(t, result["1"])
	assert.ElementsMatch(t, []string{"1", "2", "5"}, result["4"])
	assert.ElementsMatch(t, []string{"1", "2", "4", "5"}, result["6"])
	assert.ElementsMatch(t, []string{"1", "2", "5"}, result["8"])
}

func TestSearchNodesScenarioS1(t *testing.T) {
	g := openGraph(t, 2, false)
	_, err := g.AddVertex(storage.StrID("Gandalf"), 0, 0, map[string]prop.Prop{"kind": prop.Str("wizard")})
	require.NoError(t, err)
	_, err = g.AddVertex(storage.StrID("Frodo"), 0, 0, map[string]prop.Prop{"kind": prop.Str("Hobbit")})
	require.NoError(t, err)

	hits, err := SearchNodes(g.View(), []string{"kind"}, "kind:wizard", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gandalf"}, hits)
}

func TestManagerLoadNewGraphsFromPathScenarioS3(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(1, false)

	g0 := openGraph(t, 1, false)
	require.NoError(t, g0.SaveToFile(filepath.Join(dir, "g0.graph")))

	mgr := NewManager(cfg)
	names, err := mgr.LoadGraphsFromPath(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"g0"}, names)

	g1 := openGraph(t, 1, false)
	_, err = g1.AddVertex(storage.StrID("only-in-g1"), 0, 0, nil)
	require.NoError(t, err)
	require.NoError(t, g1.SaveToFile(filepath.Join(dir, "g1.graph")))

	g2 := openGraph(t, 1, false)
	_, err = g2.AddVertex(storage.StrID("2"), 0, 0, nil)
	require.NoError(t, err)
	require.NoError(t, g2.SaveToFile(filepath.Join(dir, "g0.graph")))

	loaded, err := mgr.LoadNewGraphsFromPath(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, loaded, "g0 already registered, so only g1 is newly loaded")

	unchanged, err := mgr.Graph("g0")
	require.NoError(t, err)
	_, ok := unchanged.NodeID(storage.StrID("2"))
	assert.False(t, ok, "loadNewGraphsFromPath must not overwrite the already-registered g0")

	names, err = mgr.LoadGraphsFromPath(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g0", "g1"}, names)

	replaced, err := mgr.Graph("g0")
	require.NoError(t, err)
	_, ok = replaced.NodeID(storage.StrID("2"))
	assert.True(t, ok, "loadGraphsFromPath replaces g0's content with g2's")
}

func TestManagerSendReceiveGraphRoundTrip(t *testing.T) {
	g := openGraph(t, 1, false)
	_, err := g.AddVertex(storage.StrID("gandalf"), 0, 0, nil)
	require.NoError(t, err)

	mgr := NewManager(testConfig(1, false))
	mgr.UploadGraph("orig", g)

	encoded, err := mgr.ReceiveGraph("orig")
	require.NoError(t, err)
	require.NoError(t, mgr.SendGraph("copy", encoded))

	copied, err := mgr.Graph("copy")
	require.NoError(t, err)
	t.Cleanup(func() { _ = copied.Close() })
	_, ok := copied.NodeID(storage.StrID("gandalf"))
	assert.True(t, ok)

	_, err = mgr.ReceiveGraph("missing")
	assert.ErrorIs(t, err, chronoerr.ErrUnknownGraph)
}

func TestManagerUnknownGraph(t *testing.T) {
	mgr := NewManager(testConfig(1, false))
	_, err := mgr.Graph("missing")
	assert.ErrorIs(t, err, chronoerr.ErrUnknownGraph)
}

func TestDataDirIsNotRequiredForInMemoryUse(t *testing.T) {
	// Sanity check that opening a graph never touches cfg.Storage.DataDir
	// until a caller explicitly calls SaveToFile/OpenFromFile against it.
	cfg := testConfig(1, false)
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "does-not-exist-yet")
	g, err := Open(cfg)
	require.NoError(t, err)
	defer g.Close()
	_, statErr := os.Stat(cfg.Storage.DataDir)
	assert.True(t, os.IsNotExist(statErr))
}
