// Package view implements the zero-copy time-window view algebra
// (component D): a composable handle over a sharded store that
// restricts reads to a half-open time range, a layer selection, and
// chained node/edge predicates, all without copying any storage.
package view

import (
	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

// Backend is the multi-shard store a View is defined over. The graph
// package supplies the concrete implementation that fans a global
// NodeID out across per-shard *storage.Mem instances.
type Backend interface {
	ShardCount() int
	Shard(i int) storage.NodeStorageOps
}

// NodeID is a view-level node handle: the shard a VID is local to,
// plus the VID itself.
type NodeID struct {
	Shard uint32
	VID   storage.VID
}

// NodeFilter is a pure predicate over a resolved Node.
type NodeFilter func(Node) bool

// EdgeFilter is a pure predicate over a resolved Edge.
type EdgeFilter func(Edge) bool

// ExplodedEdgeFilter is a pure predicate over one event of an edge's
// additions timeline, treated as an independent entity.
type ExplodedEdgeFilter func(ExplodedEdge) bool

// View is an immutable, structurally-shared handle: start/end bounds,
// a layer selection, and chained predicates. Every method returns a
// new View; none mutate the receiver or touch storage.
type View struct {
	backend Backend

	start, end prop.Timestamp
	layers     storage.LayerSelector

	nodeFilters    []NodeFilter
	edgeFilters    []EdgeFilter
	explodeFilters []ExplodedEdgeFilter
}

// New constructs the default, unrestricted view over backend: the full
// time range and every layer.
func New(backend Backend) View {
	return View{
		backend: backend,
		start:   prop.MinTimestamp,
		end:     prop.MaxTimestamp,
		layers:  storage.AllLayers(),
	}
}

// Start returns the intersection of the view's explicit window with
// the store-observed bounds, or ok=false if the store is empty. The
// store-observed bounds cover every shard's events and are not
// restricted by the view's window, layers or filters.
func (v View) Start() (prop.Timestamp, bool) {
	s, _, ok := v.observedBounds()
	if !ok {
		return 0, false
	}
	if v.start > s {
		return v.start, true
	}
	return s, true
}

// End is the End-bound counterpart of Start.
func (v View) End() (prop.Timestamp, bool) {
	_, e, ok := v.observedBounds()
	if !ok {
		return 0, false
	}
	if v.end < e {
		return v.end, true
	}
	return e, true
}

func (v View) observedBounds() (start, end prop.Timestamp, ok bool) {
	start, end = prop.MaxTimestamp, prop.MinTimestamp
	any := false
	for i := 0; i < v.backend.ShardCount(); i++ {
		s, e, shardOK := v.backend.Shard(i).Bounds()
		if !shardOK {
			continue
		}
		any = true
		if s < start {
			start = s
		}
		if e > end {
			end = e
		}
	}
	if !any {
		return 0, 0, false
	}
	return start, end, true
}

// Window restricts the view to [a,b), intersected with the current
// window: window(a,b).window(c,d) == window(max(a,c), min(b,d)), so
// windowing is idempotent.
func (v View) Window(a, b prop.Timestamp) View {
	nv := v
	if a > nv.start {
		nv.start = a
	}
	if b < nv.end {
		nv.end = b
	}
	return nv
}

// At restricts the view to the instant t: window(MIN, t+1).
func (v View) At(t prop.Timestamp) View {
	return v.Window(prop.MinTimestamp, t.SaturatingAdd(1))
}

// Layers intersects the view's layer selection with sel.
func (v View) Layers(sel storage.LayerSelector) View {
	nv := v
	nv.layers = nv.layers.Intersect(sel)
	return nv
}

// FilterNodes attaches a node predicate; composition with any existing
// node filters is conjunctive.
func (v View) FilterNodes(f NodeFilter) View {
	nv := v
	nv.nodeFilters = append(append([]NodeFilter{}, v.nodeFilters...), f)
	return nv
}

// FilterEdges attaches an edge predicate, conjunctively composed.
func (v View) FilterEdges(f EdgeFilter) View {
	nv := v
	nv.edgeFilters = append(append([]EdgeFilter{}, v.edgeFilters...), f)
	return nv
}

// FilterExplodedEdges attaches an exploded-edge predicate, conjunctively
// composed.
func (v View) FilterExplodedEdges(f ExplodedEdgeFilter) View {
	nv := v
	nv.explodeFilters = append(append([]ExplodedEdgeFilter{}, v.explodeFilters...), f)
	return nv
}

func (v View) window() *storage.Window {
	return &storage.Window{Start: v.start, End: v.end}
}

// qualifies reports whether any of keys falls within the view's window.
func (v View) qualifies(keys []prop.OrderKey) bool {
	for _, k := range keys {
		if v.window().Contains(k.T) {
			return true
		}
	}
	return false
}

// Node resolves id to a Node handle iff it has at least one qualifying
// addition event in the view.
func (v View) Node(id NodeID) (Node, bool) {
	store := v.backend.Shard(int(id.Shard))
	additions, err := store.Additions(id.VID)
	if err != nil || !v.qualifies(additions) {
		return Node{}, false
	}
	n := Node{view: v, id: id, store: store}
	for _, f := range v.nodeFilters {
		if !f(n) {
			return Node{}, false
		}
	}
	return n, true
}

// NodeByExternalID resolves an external id via the shard it would be
// routed to, then through Node.
func (v View) NodeByExternalID(shard uint32, ext storage.ExternalID) (Node, bool) {
	store := v.backend.Shard(int(shard))
	vid, ok := store.VIDFor(ext)
	if !ok {
		return Node{}, false
	}
	return v.Node(NodeID{Shard: shard, VID: vid})
}

// Nodes returns every node across every shard that qualifies for this
// view, in (shard, VID) order. This is necessarily eager in this
// implementation (no lazy generators in Go without goroutine-backed
// iterators), but each Node it returns remains a cheap handle sharing
// the parent view's bounds.
func (v View) Nodes() []Node {
	var out []Node
	for i := 0; i < v.backend.ShardCount(); i++ {
		store := v.backend.Shard(i)
		for _, vid := range store.AllVIDs() {
			if n, ok := v.Node(NodeID{Shard: uint32(i), VID: vid}); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// Edge resolves the edge between src and dst, as seen from src's
// owning shard (the shard that records the edge's OutAdj / the
// AddRemoteOutEdge half), iff it has a qualifying event in the view.
func (v View) Edge(src, dst NodeID) (Edge, bool) {
	store := v.backend.Shard(int(src.Shard))
	candidates, err := store.EdgesIter(src.VID, storage.DirOut, v.layers)
	if err != nil {
		return Edge{}, false
	}
	var found *storage.EdgeStore
	var layer storage.LayerID
	for _, e := range candidates {
		if e.Dst == dst.VID {
			found = e
			layer = e.Layer
			break
		}
	}
	if found == nil {
		return Edge{}, false
	}
	if !v.qualifies(found.Additions) {
		return Edge{}, false
	}
	e := Edge{view: v, src: src, dst: dst, layer: layer, store: found}
	for _, f := range v.edgeFilters {
		if !f(e) {
			return Edge{}, false
		}
	}
	return e, true
}

// Edges returns every qualifying edge reachable from every qualifying
// node's out-adjacency.
func (v View) Edges() []Edge {
	var out []Edge
	for _, n := range v.Nodes() {
		refs, err := n.store.NeighbourRefs(n.id.VID, storage.DirOut, v.layers, v.window())
		if err != nil {
			continue
		}
		for _, ref := range refs {
			dst := NodeID{Shard: ref.Shard, VID: ref.VID}
			if e, ok := v.Edge(n.id, dst); ok {
				out = append(out, e)
			}
		}
	}
	return out
}
