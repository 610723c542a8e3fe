// Package storage implements the per-shard temporal graph store
// (component B): the owning storage of nodes and edges, each carrying
// an append-only, time-ordered event list. A shard actor (pkg/shard) is
// the only writer of a given Store; readers reach it only through a
// view (pkg/view).
//
// The layout splits reads from writes: NodeStorageOps is the read
// surface, implemented by the Mem backend, while mutation
// (AddVertex/AddEdge/DeleteEdge) is only defined on Mem as well. A
// read-only Badger-backed snapshot (badger.go) persists the same
// node/edge records for point lookups and rehydration; it does not
// implement NodeStorageOps.
package storage

import (
	"sort"

	"github.com/chronoshard/chronoshard/pkg/prop"
)

// VID is a dense, shard-local integer handle for a vertex. VIDs are
// never reused; the global handle is (shard, VID).
type VID uint64

// ExternalID is the stable caller-supplied vertex identifier a VID is
// interned from. It may represent either a string or an unsigned
// 64-bit integer external id, per the data model.
type ExternalID struct {
	Str   string
	U64   uint64
	IsStr bool
}

// StrID builds a string-flavoured ExternalID.
func StrID(s string) ExternalID { return ExternalID{Str: s, IsStr: true} }

// U64ID builds an unsigned-integer-flavoured ExternalID.
func U64ID(u uint64) ExternalID { return ExternalID{U64: u} }

// String renders the external id for logging and error messages.
func (e ExternalID) String() string {
	if e.IsStr {
		return e.Str
	}
	return u64ToString(e.U64)
}

func u64ToString(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

// LayerID is a small integer name-space on edges. LayerDefault always
// exists.
type LayerID uint16

// LayerDefault is the layer every edge belongs to when none is given.
const LayerDefault LayerID = 0

// LayerSelector selects a subset of layers a view or query is
// restricted to.
type LayerSelector struct {
	all  bool
	none bool
	ids  map[LayerID]struct{}
}

// AllLayers selects every layer.
func AllLayers() LayerSelector { return LayerSelector{all: true} }

// NoLayers selects no layer at all (an always-empty view).
func NoLayers() LayerSelector { return LayerSelector{none: true} }

// OneLayer selects a single layer.
func OneLayer(id LayerID) LayerSelector {
	return LayerSelector{ids: map[LayerID]struct{}{id: {}}}
}

// MultipleLayers selects a sorted set of layers.
func MultipleLayers(ids ...LayerID) LayerSelector {
	m := make(map[LayerID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return LayerSelector{ids: m}
}

// Contains reports whether id is selected.
func (l LayerSelector) Contains(id LayerID) bool {
	if l.none {
		return false
	}
	if l.all {
		return true
	}
	if l.ids == nil {
		return id == LayerDefault
	}
	_, ok := l.ids[id]
	return ok
}

// Intersect returns the selector for both l and other being satisfied.
func (l LayerSelector) Intersect(other LayerSelector) LayerSelector {
	if l.none || other.none {
		return NoLayers()
	}
	if l.all {
		return other
	}
	if other.all {
		return l
	}
	m := make(map[LayerID]struct{})
	for id := range l.ids {
		if _, ok := other.ids[id]; ok {
			m[id] = struct{}{}
		}
	}
	return LayerSelector{ids: m}
}

// Event is one (t, secondary) entry of an additions or deletions
// timeline.
type Event struct {
	Key prop.OrderKey
}

// TimelineEntry is a single (t, secondary) → Prop entry of a temporal
// property timeline.
type TimelineEntry struct {
	Key   prop.OrderKey
	Value prop.Prop
}

// Timeline is an append-only, (t, secondary)-ordered sequence of
// property entries for one property id.
type Timeline []TimelineEntry

// Append inserts an entry, maintaining (t, secondary) order. Inserts
// arrive monotonically in the overwhelming majority of workloads; the
// fallback path below handles the rare out-of-order case.
func (tl *Timeline) Append(e TimelineEntry) {
	n := len(*tl)
	if n == 0 || (*tl)[n-1].Key.Compare(e.Key) <= 0 {
		*tl = append(*tl, e)
		return
	}
	i := sort.Search(n, func(i int) bool { return (*tl)[i].Key.Compare(e.Key) > 0 })
	*tl = append(*tl, TimelineEntry{})
	copy((*tl)[i+1:], (*tl)[i:])
	(*tl)[i] = e
}

// At returns the last entry with Key.T <= t, i.e. last-write-wins at
// time t.
func (tl Timeline) At(t prop.Timestamp) (prop.Prop, bool) {
	i := sort.Search(len(tl), func(i int) bool { return tl[i].Key.T > t })
	if i == 0 {
		return prop.Prop{}, false
	}
	return tl[i-1].Value, true
}

// Window returns every entry with Key.T in [start, end).
func (tl Timeline) Window(start, end prop.Timestamp) []TimelineEntry {
	lo := sort.Search(len(tl), func(i int) bool { return tl[i].Key.T >= start })
	hi := sort.Search(len(tl), func(i int) bool { return tl[i].Key.T >= end })
	if lo >= hi {
		return nil
	}
	return tl[lo:hi]
}

// AdjEntry is one entry of a node's in/out adjacency list: a neighbour
// VID, the shard that neighbour's VID is local to, the local edge
// handle connecting to it, and the layer the edge entry belongs to.
// NeighbourShard is almost always the entry's own shard; it differs
// only for the remote half of a cross-shard edge, where Neighbour is a
// VID local to the other shard.
type AdjEntry struct {
	Neighbour      VID
	NeighbourShard uint32
	EdgeID         uint64
	Layer          LayerID
}

// Direction selects in-edges, out-edges, or both when querying
// adjacency.
type Direction int

const (
	DirOut Direction = iota
	DirIn
	DirBoth
)

// NodeStore holds one vertex's full temporal record: its additions
// timeline, per-property-id timelines, and sorted in/out adjacency
// lists.
type NodeStore struct {
	VID       VID
	External  ExternalID
	TypeID    int32
	Additions []prop.OrderKey
	Props     map[string]Timeline
	OutAdj    []AdjEntry // sorted by Neighbour
	InAdj     []AdjEntry // sorted by Neighbour
}

// EdgeStore holds one edge's additions timeline, its optional
// deletions timeline (persistent-graph variant only), and per-property
// timelines.
type EdgeStore struct {
	ID        uint64
	Src       VID
	Dst       VID
	Layer     LayerID
	Additions []prop.OrderKey
	Deletions []prop.OrderKey
	Props     map[string]Timeline
	Remote    bool // true for a remote-out/remote-in half of a cross-shard edge
}

// AliveAt reports whether a persistent edge is alive at time t: the
// most recent of additions/deletions at or before t is an addition.
func (e *EdgeStore) AliveAt(t prop.Timestamp) bool {
	lastAdd := lastAtOrBefore(e.Additions, t)
	lastDel := lastAtOrBefore(e.Deletions, t)
	if lastAdd == nil {
		return false
	}
	if lastDel == nil {
		return true
	}
	return lastAdd.Compare(*lastDel) >= 0
}

func lastAtOrBefore(keys []prop.OrderKey, t prop.Timestamp) *prop.OrderKey {
	i := sort.Search(len(keys), func(i int) bool { return keys[i].T > t })
	if i == 0 {
		return nil
	}
	return &keys[i-1]
}

// NeighbourRef identifies a neighbour vertex by its global handle
// (owning shard, local VID) — the unit Neighbours must return once
// cross-shard edges are in play, since a remote edge's neighbour VID is
// local to a different shard's numbering.
type NeighbourRef struct {
	Shard uint32
	VID   VID
}

// NodeStorageOps is the read-only capability surface of a storage
// backend. Mem implements it; the Badger-backed snapshot does not. View and
// task-runner code is written exclusively against this interface so it
// never cares which backend a shard happens to be running.
type NodeStorageOps interface {
	// Degree returns the number of distinct neighbours of vid in the
	// given direction, restricted to layers and, if non-nil, window.
	Degree(vid VID, dir Direction, layers LayerSelector, window *Window) (int, error)
	// Neighbours returns the distinct neighbour VIDs of vid, each
	// yielded at most once. For a node with remote adjacency, prefer
	// NeighbourRefs, which disambiguates the owning shard.
	Neighbours(vid VID, dir Direction, layers LayerSelector, window *Window) ([]VID, error)
	// NeighbourRefs is Neighbours but yields the global (shard, VID)
	// handle of each distinct neighbour, correctly resolving neighbours
	// that live on a different shard than vid.
	NeighbourRefs(vid VID, dir Direction, layers LayerSelector, window *Window) ([]NeighbourRef, error)
	// Additions returns vid's addition timestamps.
	Additions(vid VID) ([]prop.OrderKey, error)
	// TProp returns the value of a node property at time t.
	TProp(vid VID, propName string, t prop.Timestamp) (prop.Prop, bool, error)
	// EdgesIter returns every EdgeStore touching vid in the given
	// direction and layer selection.
	EdgesIter(vid VID, dir Direction, layers LayerSelector) ([]*EdgeStore, error)
	// NodeTypeID returns vid's type id.
	NodeTypeID(vid VID) (int32, error)
	// VIDFor resolves an external id to its VID, if present.
	VIDFor(ext ExternalID) (VID, bool)
	// Name returns the external id a VID was interned from.
	Name(vid VID) (ExternalID, error)
	// FindEdge resolves the edge between src and dst in layer, if any.
	FindEdge(src, dst VID, layer LayerID) (*EdgeStore, bool)
	// AllVIDs returns every VID currently stored, in ascending order.
	AllVIDs() []VID
	// Bounds returns the store-observed [min,max) of every addition
	// event in the store, or ok=false if the store is empty.
	Bounds() (start, end prop.Timestamp, ok bool)
}

// Window is a half-open [Start, End) time bound used by read
// operations that need to respect an active view window.
type Window struct {
	Start prop.Timestamp
	End   prop.Timestamp
}

// Contains reports whether t falls within the window.
func (w *Window) Contains(t prop.Timestamp) bool {
	if w == nil {
		return true
	}
	return t >= w.Start && t < w.End
}
