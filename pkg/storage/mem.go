package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/pool"
	"github.com/chronoshard/chronoshard/pkg/prop"
)

// Mem is the mutable in-memory backend for one shard's slice of the
// graph. It is owned exclusively by a single shard actor (pkg/shard);
// the RWMutex below guards it only against concurrent readers from the
// task runner, which may hold a view over the store while the actor is
// between mailbox messages — not against concurrent writers, since the
// actor model already serialises those.
type Mem struct {
	mu sync.RWMutex

	ShardID    uint32
	persistent bool

	byExternal map[string]VID // external id rendered via ExternalID.String()
	nodes      []*NodeStore   // indexed by VID
	edges      []*EdgeStore   // indexed by EdgeStore.ID
}

// NewMem constructs an empty Mem store for the given shard id.
// persistent selects whether DeleteEdge is permitted (the
// persistent-graph variant).
func NewMem(shardID uint32, persistent bool) *Mem {
	return &Mem{
		ShardID:    shardID,
		persistent: persistent,
		byExternal: make(map[string]VID),
	}
}

// Persistent reports whether this store allows DeleteEdge.
func (m *Mem) Persistent() bool { return m.persistent }

// AddVertex assigns a VID on first reference, appends (t, secondary) to
// the vertex's additions timeline, and applies each property addition.
// It never fails on duplicate additions.
func (m *Mem) AddVertex(ext ExternalID, t prop.Timestamp, secondary uint64, props map[string]prop.Prop) (VID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ext.String()
	vid, ok := m.byExternal[key]
	if !ok {
		vid = VID(len(m.nodes))
		m.nodes = append(m.nodes, &NodeStore{
			VID:      vid,
			External: ext,
			Props:    make(map[string]Timeline),
		})
		m.byExternal[key] = vid
	}

	ns := m.nodes[vid]
	ns.Additions = appendOrderKey(ns.Additions, prop.OrderKey{T: t, Secondary: secondary})
	for name, val := range props {
		tl := ns.Props[name]
		tl.Append(TimelineEntry{Key: prop.OrderKey{T: t, Secondary: secondary}, Value: val})
		ns.Props[name] = tl
	}
	return vid, nil
}

// SetNodeType assigns vid's type id.
func (m *Mem) SetNodeType(vid VID, typeID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, err := m.node(vid)
	if err != nil {
		return err
	}
	ns.TypeID = typeID
	return nil
}

// AddEdge creates the edge record between src and dst in layer if
// absent, and appends to both endpoints' adjacency lists plus the
// edge's additions timeline.
func (m *Mem) AddEdge(src, dst VID, t prop.Timestamp, secondary uint64, layer LayerID, props map[string]prop.Prop) (*EdgeStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addEdgeLocked(src, dst, t, secondary, layer, props, false)
}

// AddRemoteOutEdge records the source-shard half of a cross-shard edge.
// dstShard is the shard dst's VID is local to.
func (m *Mem) AddRemoteOutEdge(src, dst VID, dstShard uint32, t prop.Timestamp, secondary uint64, layer LayerID, props map[string]prop.Prop) (*EdgeStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.node(src); err != nil {
		return nil, err
	}
	e := m.findOrCreateEdgeLocked(src, dst, layer, true)
	e.Additions = appendOrderKey(e.Additions, prop.OrderKey{T: t, Secondary: secondary})
	applyEdgeProps(e, t, secondary, props)
	m.nodes[src].OutAdj = insertAdj(m.nodes[src].OutAdj, AdjEntry{Neighbour: dst, NeighbourShard: dstShard, EdgeID: e.ID, Layer: layer})
	return e, nil
}

// AddRemoteInEdge records the destination-shard half of a cross-shard
// edge. Unlike AddRemoteOutEdge, it does not require a local node
// record for src — only dst, which this shard owns, needs one.
// srcShard is the shard src's VID is local to.
func (m *Mem) AddRemoteInEdge(src, dst VID, srcShard uint32, t prop.Timestamp, secondary uint64, layer LayerID, props map[string]prop.Prop) (*EdgeStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.node(dst); err != nil {
		return nil, err
	}
	// src is not local to this shard, so the edge cannot be found or
	// created via the src-indexed lookup addEdgeLocked/AddRemoteOutEdge
	// use; scan dst's own InAdj instead.
	e, ok := m.findRemoteInEdgeLocked(dst, src, layer)
	if !ok {
		e = &EdgeStore{
			ID:     uint64(len(m.edges)),
			Src:    src,
			Dst:    dst,
			Layer:  layer,
			Props:  make(map[string]Timeline),
			Remote: true,
		}
		m.edges = append(m.edges, e)
	}
	e.Additions = appendOrderKey(e.Additions, prop.OrderKey{T: t, Secondary: secondary})
	applyEdgeProps(e, t, secondary, props)
	m.nodes[dst].InAdj = insertAdj(m.nodes[dst].InAdj, AdjEntry{Neighbour: src, NeighbourShard: srcShard, EdgeID: e.ID, Layer: layer})
	return e, nil
}

func (m *Mem) findRemoteInEdgeLocked(dst, src VID, layer LayerID) (*EdgeStore, bool) {
	if int(dst) >= len(m.nodes) {
		return nil, false
	}
	for _, a := range m.nodes[dst].InAdj {
		if a.Neighbour == src && a.Layer == layer {
			return m.edges[a.EdgeID], true
		}
	}
	return nil, false
}

func (m *Mem) addEdgeLocked(src, dst VID, t prop.Timestamp, secondary uint64, layer LayerID, props map[string]prop.Prop, remote bool) (*EdgeStore, error) {
	if _, err := m.node(src); err != nil {
		return nil, err
	}
	if _, err := m.node(dst); err != nil {
		return nil, err
	}
	e := m.findOrCreateEdgeLocked(src, dst, layer, remote)
	e.Additions = appendOrderKey(e.Additions, prop.OrderKey{T: t, Secondary: secondary})
	applyEdgeProps(e, t, secondary, props)

	m.nodes[src].OutAdj = insertAdj(m.nodes[src].OutAdj, AdjEntry{Neighbour: dst, NeighbourShard: m.ShardID, EdgeID: e.ID, Layer: layer})
	m.nodes[dst].InAdj = insertAdj(m.nodes[dst].InAdj, AdjEntry{Neighbour: src, NeighbourShard: m.ShardID, EdgeID: e.ID, Layer: layer})
	return e, nil
}

func applyEdgeProps(e *EdgeStore, t prop.Timestamp, secondary uint64, props map[string]prop.Prop) {
	for name, val := range props {
		tl := e.Props[name]
		tl.Append(TimelineEntry{Key: prop.OrderKey{T: t, Secondary: secondary}, Value: val})
		e.Props[name] = tl
	}
}

func (m *Mem) findOrCreateEdgeLocked(src, dst VID, layer LayerID, remote bool) *EdgeStore {
	if e, ok := m.findEdgeLocked(src, dst, layer); ok {
		return e
	}
	e := &EdgeStore{
		ID:     uint64(len(m.edges)),
		Src:    src,
		Dst:    dst,
		Layer:  layer,
		Props:  make(map[string]Timeline),
		Remote: remote,
	}
	m.edges = append(m.edges, e)
	return e
}

// findEdgeLocked resolves the edge from src to dst via src's own OutAdj
// (the only source of truth when src is local to this shard, i.e. for
// same-shard edges and the AddRemoteOutEdge half). It does not see the
// AddRemoteInEdge half recorded on a different shard; use
// findRemoteInEdgeLocked for that side.
func (m *Mem) findEdgeLocked(src, dst VID, layer LayerID) (*EdgeStore, bool) {
	if int(src) >= len(m.nodes) {
		return nil, false
	}
	for _, a := range m.nodes[src].OutAdj {
		if a.Neighbour == dst && a.Layer == layer {
			return m.edges[a.EdgeID], true
		}
	}
	return nil, false
}

// DeleteEdge appends a tombstone event to an edge's deletions timeline.
// Permitted only when the store is persistent; returns
// chronoerr.ErrDeletionUnsupported otherwise. src is looked up first as a
// locally-owned source (the same-shard or remote-out case); if that
// fails, dst is tried as the locally-owned destination of a remote-in
// half, since a cross-shard edge's two shard-local copies are found
// through different adjacency lists.
func (m *Mem) DeleteEdge(src, dst VID, t prop.Timestamp, secondary uint64, layer LayerID) error {
	if !m.persistent {
		return chronoerr.ErrDeletionUnsupported
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.findEdgeLocked(src, dst, layer)
	if !ok {
		e, ok = m.findRemoteInEdgeLocked(dst, src, layer)
	}
	if !ok {
		return fmt.Errorf("storage: delete_edge: %w", chronoerr.ErrUnknownEdge)
	}
	e.Deletions = appendOrderKey(e.Deletions, prop.OrderKey{T: t, Secondary: secondary})
	return nil
}

func insertAdj(adj []AdjEntry, e AdjEntry) []AdjEntry {
	i := sort.Search(len(adj), func(i int) bool { return adj[i].Neighbour >= e.Neighbour })
	if i < len(adj) && adj[i].Neighbour == e.Neighbour && adj[i].Layer == e.Layer {
		adj[i].EdgeID = e.EdgeID
		return adj
	}
	adj = append(adj, AdjEntry{})
	copy(adj[i+1:], adj[i:])
	adj[i] = e
	return adj
}

func appendOrderKey(keys []prop.OrderKey, k prop.OrderKey) []prop.OrderKey {
	n := len(keys)
	if n == 0 || keys[n-1].Compare(k) <= 0 {
		return append(keys, k)
	}
	i := sort.Search(n, func(i int) bool { return keys[i].Compare(k) > 0 })
	keys = append(keys, prop.OrderKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	return keys
}

func (m *Mem) node(vid VID) (*NodeStore, error) {
	if int(vid) < 0 || int(vid) >= len(m.nodes) {
		return nil, fmt.Errorf("storage: vid %d: %w", vid, chronoerr.ErrUnknownNode)
	}
	return m.nodes[vid], nil
}

// Degree implements NodeStorageOps.
func (m *Mem) Degree(vid VID, dir Direction, layers LayerSelector, window *Window) (int, error) {
	neigh, err := m.Neighbours(vid, dir, layers, window)
	if err != nil {
		return 0, err
	}
	return len(neigh), nil
}

// Neighbours implements NodeStorageOps. Each neighbour is yielded at
// most once, only if some qualifying event exists in window.
func (m *Mem) Neighbours(vid VID, dir Direction, layers LayerSelector, window *Window) ([]VID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, err := m.node(vid)
	if err != nil {
		return nil, err
	}

	type key struct {
		shard uint32
		vid   VID
	}
	seen := make(map[key]struct{})
	out := pool.GetVIDSlice()
	defer pool.PutVIDSlice(out)

	consider := func(adj []AdjEntry) {
		for _, a := range adj {
			if !layers.Contains(a.Layer) {
				continue
			}
			k := key{a.NeighbourShard, a.Neighbour}
			if _, dup := seen[k]; dup {
				continue
			}
			e := m.edges[a.EdgeID]
			if !edgeQualifies(e, window) {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, uint64(a.Neighbour))
		}
	}
	if dir == DirOut || dir == DirBoth {
		consider(ns.OutAdj)
	}
	if dir == DirIn || dir == DirBoth {
		consider(ns.InAdj)
	}

	result := make([]VID, len(out))
	for i, v := range out {
		result[i] = VID(v)
	}
	return result, nil
}

// NeighbourRefs implements NodeStorageOps.
func (m *Mem) NeighbourRefs(vid VID, dir Direction, layers LayerSelector, window *Window) ([]NeighbourRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, err := m.node(vid)
	if err != nil {
		return nil, err
	}

	type key struct {
		shard uint32
		vid   VID
	}
	seen := make(map[key]struct{})
	var out []NeighbourRef

	consider := func(adj []AdjEntry) {
		for _, a := range adj {
			if !layers.Contains(a.Layer) {
				continue
			}
			k := key{a.NeighbourShard, a.Neighbour}
			if _, dup := seen[k]; dup {
				continue
			}
			e := m.edges[a.EdgeID]
			if !edgeQualifies(e, window) {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, NeighbourRef{Shard: a.NeighbourShard, VID: a.Neighbour})
		}
	}
	if dir == DirOut || dir == DirBoth {
		consider(ns.OutAdj)
	}
	if dir == DirIn || dir == DirBoth {
		consider(ns.InAdj)
	}
	return out, nil
}

func edgeQualifies(e *EdgeStore, window *Window) bool {
	if window == nil {
		return len(e.Additions) > 0
	}
	for _, k := range e.Additions {
		if window.Contains(k.T) {
			return true
		}
	}
	return false
}

// Additions implements NodeStorageOps.
func (m *Mem) Additions(vid VID) ([]prop.OrderKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, err := m.node(vid)
	if err != nil {
		return nil, err
	}
	return ns.Additions, nil
}

// TProp implements NodeStorageOps.
func (m *Mem) TProp(vid VID, propName string, t prop.Timestamp) (prop.Prop, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, err := m.node(vid)
	if err != nil {
		return prop.Prop{}, false, err
	}
	tl, ok := ns.Props[propName]
	if !ok {
		return prop.Prop{}, false, nil
	}
	v, ok := tl.At(t)
	return v, ok, nil
}

// EdgesIter implements NodeStorageOps.
func (m *Mem) EdgesIter(vid VID, dir Direction, layers LayerSelector) ([]*EdgeStore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, err := m.node(vid)
	if err != nil {
		return nil, err
	}
	var result []*EdgeStore
	add := func(adj []AdjEntry) {
		for _, a := range adj {
			if layers.Contains(a.Layer) {
				result = append(result, m.edges[a.EdgeID])
			}
		}
	}
	if dir == DirOut || dir == DirBoth {
		add(ns.OutAdj)
	}
	if dir == DirIn || dir == DirBoth {
		add(ns.InAdj)
	}
	return result, nil
}

// NodeTypeID implements NodeStorageOps.
func (m *Mem) NodeTypeID(vid VID) (int32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, err := m.node(vid)
	if err != nil {
		return 0, err
	}
	return ns.TypeID, nil
}

// VIDFor implements NodeStorageOps.
func (m *Mem) VIDFor(ext ExternalID) (VID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vid, ok := m.byExternal[ext.String()]
	return vid, ok
}

// Name implements NodeStorageOps.
func (m *Mem) Name(vid VID) (ExternalID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, err := m.node(vid)
	if err != nil {
		return ExternalID{}, err
	}
	return ns.External, nil
}

// FindEdge implements NodeStorageOps. src is resolved via its OutAdj
// first (the same-shard and remote-out cases); a miss falls back to
// dst's InAdj, so the remote-in half of a cross-shard edge is found on
// the shard that only owns the destination.
func (m *Mem) FindEdge(src, dst VID, layer LayerID) (*EdgeStore, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.findEdgeLocked(src, dst, layer); ok {
		return e, true
	}
	return m.findRemoteInEdgeLocked(dst, src, layer)
}

// AllVIDs implements NodeStorageOps.
func (m *Mem) AllVIDs() []VID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vids := make([]VID, len(m.nodes))
	for i, ns := range m.nodes {
		vids[i] = ns.VID
	}
	return vids
}

// Bounds implements NodeStorageOps.
func (m *Mem) Bounds() (start, end prop.Timestamp, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start, end = prop.MaxTimestamp, prop.MinTimestamp
	for _, ns := range m.nodes {
		for _, k := range ns.Additions {
			if k.T < start {
				start = k.T
			}
			if k.T > end {
				end = k.T
			}
		}
	}
	for _, e := range m.edges {
		for _, k := range e.Additions {
			if k.T < start {
				start = k.T
			}
			if k.T > end {
				end = k.T
			}
		}
	}
	if start > end {
		return 0, 0, false
	}
	return start, end.SaturatingAdd(1), true
}
