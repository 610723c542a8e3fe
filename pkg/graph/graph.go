// Package graph wires storage, shards and views into the single
// top-level handle the external ingest and query interfaces are built
// against: a fixed set of running shard actors, hash-routed ingest, and
// a default view over every shard's store. It is the one package
// allowed to know both "shard" and "view" exist.
package graph

import (
	"fmt"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/config"
	"github.com/chronoshard/chronoshard/pkg/pool"
	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/search"
	"github.com/chronoshard/chronoshard/pkg/shard"
	"github.com/chronoshard/chronoshard/pkg/storage"
	"github.com/chronoshard/chronoshard/pkg/view"
)

// Graph is a running graph: one actor per shard, a router that applies
// the hash-routing rule, and the persistence/search conveniences layered
// on top. Construct with Open; call Close to drain and terminate every
// shard actor.
type Graph struct {
	cfg    config.Config
	shards []*shard.Shard
	router *shard.Router
}

// Open constructs a Graph with cfg.Storage.ShardCount running shard
// actors and starts each actor's goroutine. Callers must eventually call
// Close.
func Open(cfg config.Config) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool.Configure(pool.Config{Enabled: cfg.Pool.Enabled, MaxSize: cfg.Pool.MaxSize})
	shards := make([]*shard.Shard, cfg.Storage.ShardCount)
	for i := range shards {
		store := storage.NewMem(uint32(i), cfg.Storage.Persistent)
		s := shard.New(shard.ID(i), store, cfg.Routing.MailboxSize)
		shards[i] = s
		go s.Run()
	}
	return &Graph{
		cfg:    cfg,
		shards: shards,
		router: shard.NewRouter(shards),
	}, nil
}

// Close sends Done to every shard actor and returns once every send has
// been accepted (it does not wait for the actor goroutines to drain,
// since Done already guarantees deliver-then-terminate).
func (g *Graph) Close() error {
	for _, s := range g.shards {
		if err := s.SendDone(); err != nil {
			return err
		}
	}
	return nil
}

// ShardCount implements view.Backend.
func (g *Graph) ShardCount() int { return len(g.shards) }

// Shard implements view.Backend.
func (g *Graph) Shard(i int) storage.NodeStorageOps { return g.shards[i].Store }

// View returns the default, unrestricted view over every shard.
func (g *Graph) View() view.View { return view.New(g) }

// nodeID resolves ext to its view.NodeID, auto-interning a vertex record
// with no properties if ext has never been referenced before — the
// auto-vivification AddEdge relies on so that every VID appearing in an
// edge record has a vertex record on its owning shard, even when a
// producer issues an edge before an explicit add_vertex for an endpoint.
func (g *Graph) nodeID(ext storage.ExternalID, t prop.Timestamp) (view.NodeID, error) {
	owner := shard.OwnerOf(ext, len(g.shards))
	vid, err := g.shards[owner].SendAddVertex(ext, t, 0, nil)
	if err != nil {
		return view.NodeID{}, err
	}
	return view.NodeID{Shard: uint32(owner), VID: vid}, nil
}

// AddVertex assigns a VID to ext on first reference, appends (t,
// secondary) to its additions timeline, and applies props. Never fails
// on duplicate additions.
func (g *Graph) AddVertex(ext storage.ExternalID, t prop.Timestamp, secondary uint64, props map[string]prop.Prop) (view.NodeID, error) {
	owner := shard.OwnerOf(ext, len(g.shards))
	vid, err := g.shards[owner].SendAddVertex(ext, t, secondary, props)
	if err != nil {
		return view.NodeID{}, fmt.Errorf("graph: add_vertex: %w", err)
	}
	return view.NodeID{Shard: uint32(owner), VID: vid}, nil
}

// EdgeOption configures an AddEdge call: the optional secondary index,
// layer name, and property bag the mutation API accepts in one call.
type EdgeOption func(*edgeOptions)

type edgeOptions struct {
	secondary uint64
	layer     string
	props     map[string]prop.Prop
}

// WithSecondary sets the tie-breaking secondary index for the edge
// event.
func WithSecondary(secondary uint64) EdgeOption {
	return func(o *edgeOptions) { o.secondary = secondary }
}

// WithLayer names the layer the edge belongs to; omitted or "" selects
// the default layer.
func WithLayer(name string) EdgeOption {
	return func(o *edgeOptions) { o.layer = name }
}

// WithProps attaches a property bag to the edge addition event.
func WithProps(props map[string]prop.Prop) EdgeOption {
	return func(o *edgeOptions) { o.props = props }
}

// AddEdge creates the edge between srcExt and dstExt if absent, routing
// through the shard owning each endpoint: a single AddEdge when both
// endpoints share a shard, or an AddRemoteOutEdge/AddRemoteInEdge pair
// otherwise. Both endpoints are
// auto-vivified as vertices (with no properties) if this is their first
// reference.
func (g *Graph) AddEdge(srcExt, dstExt storage.ExternalID, t prop.Timestamp, opts ...EdgeOption) error {
	var o edgeOptions
	for _, opt := range opts {
		opt(&o)
	}
	layer := internLayer(o.layer)

	src, err := g.nodeID(srcExt, t)
	if err != nil {
		return fmt.Errorf("graph: add_edge: %w", err)
	}
	dst, err := g.nodeID(dstExt, t)
	if err != nil {
		return fmt.Errorf("graph: add_edge: %w", err)
	}

	if err := g.router.RouteEdge(shard.ID(src.Shard), shard.ID(dst.Shard), src.VID, dst.VID, t, o.secondary, layer, o.props); err != nil {
		return fmt.Errorf("graph: add_edge: %w", err)
	}
	return nil
}

// DeleteEdge appends a tombstone event to the edge between srcExt and
// dstExt. Allowed only on a graph opened with Storage.Persistent; returns
// chronoerr.ErrDeletionUnsupported otherwise, chronoerr.ErrLayerMismatch
// if layerName was never defined by an AddEdge, and
// chronoerr.ErrUnknownEdge if the edge was never created.
func (g *Graph) DeleteEdge(srcExt, dstExt storage.ExternalID, t prop.Timestamp, secondary uint64, layerName string) error {
	if !g.cfg.Storage.Persistent {
		return fmt.Errorf("graph: delete_edge: %w", chronoerr.ErrDeletionUnsupported)
	}
	layer, err := lookupLayer(layerName)
	if err != nil {
		return fmt.Errorf("graph: delete_edge: %w", err)
	}
	srcShard := shard.OwnerOf(srcExt, len(g.shards))
	dstShard := shard.OwnerOf(dstExt, len(g.shards))

	src, ok := g.shards[srcShard].Store.VIDFor(srcExt)
	if !ok {
		return fmt.Errorf("graph: delete_edge: %w", chronoerr.ErrUnknownEdge)
	}
	dst, ok := g.shards[dstShard].Store.VIDFor(dstExt)
	if !ok {
		return fmt.Errorf("graph: delete_edge: %w", chronoerr.ErrUnknownEdge)
	}

	if err := g.router.RouteDeleteEdge(srcShard, dstShard, src, dst, t, secondary, layer); err != nil {
		return fmt.Errorf("graph: delete_edge: %w", err)
	}
	return nil
}

// NodeID resolves an external id to its view.NodeID, if it has ever
// been referenced.
func (g *Graph) NodeID(ext storage.ExternalID) (view.NodeID, bool) {
	owner := shard.OwnerOf(ext, len(g.shards))
	vid, ok := g.shards[owner].Store.VIDFor(ext)
	if !ok {
		return view.NodeID{}, false
	}
	return view.NodeID{Shard: uint32(owner), VID: vid}, true
}

// ViewLayers returns the default view restricted to the named layers —
// the layers(sel) query operation for callers that hold layer names
// rather than interned ids. Referencing a name no AddEdge ever defined
// is chronoerr.ErrLayerMismatch.
func (g *Graph) ViewLayers(names ...string) (view.View, error) {
	ids := make([]storage.LayerID, 0, len(names))
	for _, name := range names {
		id, err := lookupLayer(name)
		if err != nil {
			return view.View{}, fmt.Errorf("graph: layers: %w", err)
		}
		ids = append(ids, id)
	}
	return g.View().Layers(storage.MultipleLayers(ids...)), nil
}

// LayerName resolves an interned layer id back to its name, for result
// formatting; the default layer is "default", and an id no AddEdge ever
// assigned resolves to "".
func (g *Graph) LayerName(id storage.LayerID) string {
	return layerName(id)
}

// SearchNodes builds a one-shot full-text index over every node's
// propNames values currently visible in v and returns up to limit
// external id strings starting after offset — the search_nodes query
// operation.
func SearchNodes(v view.View, propNames []string, query string, limit, offset int) ([]string, error) {
	idx, err := search.BuildNodeIndex(v, propNames)
	if err != nil {
		return nil, fmt.Errorf("graph: search_nodes: %w", err)
	}
	return idx.Search(query, limit, offset), nil
}
