package view

import (
	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

// Node is a resolved vertex handle carrying its parent view's bounds,
// so degree/neighbours/property reads all respect the active window and
// layer selection without the caller re-specifying them. Neighbours
// also applies the view's node filters; Degree applies no filters, and
// neither applies edge or exploded-edge filters.
type Node struct {
	view  View
	id    NodeID
	store storage.NodeStorageOps
}

// ID returns the node's (shard, VID) handle.
func (n Node) ID() NodeID { return n.id }

// ExternalID returns the caller-facing identifier the node was created
// with.
func (n Node) ExternalID() (storage.ExternalID, error) {
	return n.store.Name(n.id.VID)
}

// Degree returns the node's degree in dir, respecting the view's window
// and layer selection.
func (n Node) Degree(dir storage.Direction) (int, error) {
	return n.store.Degree(n.id.VID, dir, n.view.layers, n.view.window())
}

// Neighbours returns the node's distinct neighbours in dir as resolved
// view Nodes, filtered by any node predicates on the parent view. Edge
// and exploded-edge predicates are not applied: a neighbour reached
// only through filtered-out edges is still returned.
func (n Node) Neighbours(dir storage.Direction) ([]Node, error) {
	refs, err := n.store.NeighbourRefs(n.id.VID, dir, n.view.layers, n.view.window())
	if err != nil {
		return nil, err
	}
	var out []Node
	for _, ref := range refs {
		if neigh, ok := n.view.Node(NodeID{Shard: ref.Shard, VID: ref.VID}); ok {
			out = append(out, neigh)
		}
	}
	return out, nil
}

// Prop reads the node's value for propName at the view's effective end
// (last-write-wins at End()-1, or at the view's upper bound generally);
// PropAt reads at an arbitrary time.
func (n Node) Prop(propName string) (prop.Prop, bool, error) {
	end, ok := n.view.End()
	if !ok {
		return prop.Prop{}, false, nil
	}
	return n.PropAt(propName, end.SaturatingAdd(-1))
}

// PropAt reads the node's value for propName at time t.
func (n Node) PropAt(propName string, t prop.Timestamp) (prop.Prop, bool, error) {
	return n.store.TProp(n.id.VID, propName, t)
}

// Additions returns the node's addition events restricted to the view's
// window.
func (n Node) Additions() ([]prop.OrderKey, error) {
	all, err := n.store.Additions(n.id.VID)
	if err != nil {
		return nil, err
	}
	w := n.view.window()
	out := make([]prop.OrderKey, 0, len(all))
	for _, k := range all {
		if w.Contains(k.T) {
			out = append(out, k)
		}
	}
	return out, nil
}

// TypeID returns the node's type id.
func (n Node) TypeID() (int32, error) {
	return n.store.NodeTypeID(n.id.VID)
}

// Edge is a resolved directed edge handle within a layer, carrying its
// parent view's bounds.
type Edge struct {
	view  View
	src   NodeID
	dst   NodeID
	layer storage.LayerID
	store *storage.EdgeStore
}

// Src returns the edge's source node handle.
func (e Edge) Src() NodeID { return e.src }

// Dst returns the edge's destination node handle.
func (e Edge) Dst() NodeID { return e.dst }

// Layer returns the layer the edge belongs to.
func (e Edge) Layer() storage.LayerID { return e.layer }

// Additions returns the edge's addition events restricted to the
// view's window.
func (e Edge) Additions() []prop.OrderKey {
	w := e.view.window()
	out := make([]prop.OrderKey, 0, len(e.store.Additions))
	for _, k := range e.store.Additions {
		if w.Contains(k.T) {
			out = append(out, k)
		}
	}
	return out
}

// Exploded returns one ExplodedEdge per qualifying addition event,
// filtered by the view's exploded-edge predicates.
func (e Edge) Exploded() []ExplodedEdge {
	var out []ExplodedEdge
	for _, k := range e.Additions() {
		ee := ExplodedEdge{Edge: e, At: k}
		qualifies := true
		for _, f := range e.view.explodeFilters {
			if !f(ee) {
				qualifies = false
				break
			}
		}
		if qualifies {
			out = append(out, ee)
		}
	}
	return out
}

// Prop reads the edge's value for propName at time t.
func (e Edge) Prop(propName string, t prop.Timestamp) (prop.Prop, bool) {
	tl, ok := e.store.Props[propName]
	if !ok {
		return prop.Prop{}, false
	}
	return tl.At(t)
}

// AliveAt reports whether a persistent edge is alive at t (always true
// for a non-persistent edge that has any qualifying addition).
func (e Edge) AliveAt(t prop.Timestamp) bool {
	return e.store.AliveAt(t)
}

// ExplodedEdge is one event of an edge's additions timeline, treated as
// an independent entity for filtering.
type ExplodedEdge struct {
	Edge
	At prop.OrderKey
}
