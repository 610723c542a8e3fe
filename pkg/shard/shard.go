// Package shard implements the shard actor and routing layer
// (component C): one mailbox per shard, hash-routed events, and
// cross-shard edge fan-out into remote-out/remote-in halves.
//
// Each Shard owns an exclusive *storage.Mem and is the only goroutine
// that ever mutates it; every other goroutine reaches the store only by
// sending a Message through SendXxx. The actor is a message-passing
// loop over a bounded queue with an explicit Done message, so no
// locking is needed on the write path.
package shard

import (
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"sync/atomic"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

// ID identifies one shard among the graph's N shards.
type ID uint32

// Kind enumerates the mailbox message types a shard actor accepts.
type Kind int

const (
	KindAddVertex Kind = iota
	KindAddEdge
	KindAddRemoteOutEdge
	KindAddRemoteInEdge
	KindDeleteEdge
	KindLen
	KindDone
)

// Message is the single envelope type every shard mailbox carries.
// Only the fields relevant to Kind are populated.
type Message struct {
	Kind Kind

	External  storage.ExternalID // AddVertex
	Src, Dst  storage.VID        // AddEdge / AddRemote*Edge
	PeerShard uint32             // AddRemoteOutEdge: dst's shard; AddRemoteInEdge: src's shard
	T         prop.Timestamp
	Secondary uint64
	Layer     storage.LayerID
	Props     map[string]prop.Prop
	TypeID    *int32

	// Reply is populated for KindLen and carries the current node count.
	Reply chan int
	// Result carries the per-message outcome back to a synchronous caller
	// that wants confirmation (e.g. AddVertex needs to know the
	// resulting VID). Nil when the caller doesn't wait for a reply.
	Result chan addResult
}

type addResult struct {
	VID storage.VID
	Err error
}

// Shard is one actor: a bounded mailbox, a dedicated store, and the
// goroutine that drains it. Construct with New and start with Run in
// its own goroutine.
type Shard struct {
	ID      ID
	Store   *storage.Mem
	mailbox chan Message
	stopped atomic.Bool
	log     *log.Logger
}

// New constructs a shard actor with the given mailbox capacity
// (component C default: 32).
func New(id ID, store *storage.Mem, mailboxSize int) *Shard {
	if mailboxSize <= 0 {
		mailboxSize = 32
	}
	return &Shard{
		ID:      id,
		Store:   store,
		mailbox: make(chan Message, mailboxSize),
		log:     log.New(os.Stderr, fmt.Sprintf("shard[%d] ", id), log.LstdFlags),
	}
}

// Run drains the mailbox until it processes a KindDone message, applying
// every message received before the Done and none after it. If the
// channel is closed with no Done received, Run applies every message
// still buffered in the mailbox and then returns; buffered messages are
// not discarded in that case. Run returns when the actor has
// terminated; call it from its own goroutine.
func (s *Shard) Run() {
	defer s.stopped.Store(true)
	for msg := range s.mailbox {
		if msg.Kind == KindDone {
			return
		}
		s.apply(msg)
	}
}

func (s *Shard) apply(msg Message) {
	switch msg.Kind {
	case KindAddVertex:
		vid, err := s.Store.AddVertex(msg.External, msg.T, msg.Secondary, msg.Props)
		if err == nil && msg.TypeID != nil {
			err = s.Store.SetNodeType(vid, *msg.TypeID)
		}
		if msg.Result != nil {
			msg.Result <- addResult{VID: vid, Err: err}
		} else if err != nil {
			s.log.Printf("add_vertex: %v", err)
		}
	case KindAddEdge:
		_, err := s.Store.AddEdge(msg.Src, msg.Dst, msg.T, msg.Secondary, msg.Layer, msg.Props)
		s.reportOrLog(msg, err)
	case KindAddRemoteOutEdge:
		_, err := s.Store.AddRemoteOutEdge(msg.Src, msg.Dst, msg.PeerShard, msg.T, msg.Secondary, msg.Layer, msg.Props)
		s.reportOrLog(msg, err)
	case KindAddRemoteInEdge:
		_, err := s.Store.AddRemoteInEdge(msg.Src, msg.Dst, msg.PeerShard, msg.T, msg.Secondary, msg.Layer, msg.Props)
		s.reportOrLog(msg, err)
	case KindDeleteEdge:
		err := s.Store.DeleteEdge(msg.Src, msg.Dst, msg.T, msg.Secondary, msg.Layer)
		s.reportOrLog(msg, err)
	case KindLen:
		msg.Reply <- len(s.Store.AllVIDs())
	}
}

func (s *Shard) reportOrLog(msg Message, err error) {
	if msg.Result != nil {
		msg.Result <- addResult{Err: err}
		return
	}
	if err != nil {
		s.log.Printf("apply: %v", err)
	}
}

// send delivers msg to the mailbox, returning ErrShardDown instead of
// blocking forever if the actor has already terminated.
func (s *Shard) send(msg Message) error {
	if s.stopped.Load() {
		return fmt.Errorf("shard %d: %w", s.ID, chronoerr.ErrShardDown)
	}
	s.mailbox <- msg
	return nil
}

// SendDone requests termination. Safe to call more than once.
func (s *Shard) SendDone() error {
	return s.send(Message{Kind: KindDone})
}

// SendAddVertex enqueues an AddVertex event and waits for the resulting
// VID.
func (s *Shard) SendAddVertex(ext storage.ExternalID, t prop.Timestamp, secondary uint64, props map[string]prop.Prop) (storage.VID, error) {
	result := make(chan addResult, 1)
	if err := s.send(Message{Kind: KindAddVertex, External: ext, T: t, Secondary: secondary, Props: props, Result: result}); err != nil {
		return 0, err
	}
	r := <-result
	return r.VID, r.Err
}

// SendAddEdge enqueues a same-shard AddEdge event.
func (s *Shard) SendAddEdge(src, dst storage.VID, t prop.Timestamp, secondary uint64, layer storage.LayerID, props map[string]prop.Prop) error {
	result := make(chan addResult, 1)
	if err := s.send(Message{Kind: KindAddEdge, Src: src, Dst: dst, T: t, Secondary: secondary, Layer: layer, Props: props, Result: result}); err != nil {
		return err
	}
	return (<-result).Err
}

// SendAddRemoteOutEdge enqueues the source-shard half of a cross-shard
// edge. dstShard is the shard dst's VID is local to.
func (s *Shard) SendAddRemoteOutEdge(src, dst storage.VID, dstShard uint32, t prop.Timestamp, secondary uint64, layer storage.LayerID, props map[string]prop.Prop) error {
	result := make(chan addResult, 1)
	if err := s.send(Message{Kind: KindAddRemoteOutEdge, Src: src, Dst: dst, PeerShard: dstShard, T: t, Secondary: secondary, Layer: layer, Props: props, Result: result}); err != nil {
		return err
	}
	return (<-result).Err
}

// SendAddRemoteInEdge enqueues the destination-shard half of a
// cross-shard edge. srcShard is the shard src's VID is local to.
func (s *Shard) SendAddRemoteInEdge(src, dst storage.VID, srcShard uint32, t prop.Timestamp, secondary uint64, layer storage.LayerID, props map[string]prop.Prop) error {
	result := make(chan addResult, 1)
	if err := s.send(Message{Kind: KindAddRemoteInEdge, Src: src, Dst: dst, PeerShard: srcShard, T: t, Secondary: secondary, Layer: layer, Props: props, Result: result}); err != nil {
		return err
	}
	return (<-result).Err
}

// SendDeleteEdge enqueues a tombstone event on a persistent-graph edge.
// Non-persistent stores report chronoerr.ErrDeletionUnsupported.
func (s *Shard) SendDeleteEdge(src, dst storage.VID, t prop.Timestamp, secondary uint64, layer storage.LayerID) error {
	result := make(chan addResult, 1)
	if err := s.send(Message{Kind: KindDeleteEdge, Src: src, Dst: dst, T: t, Secondary: secondary, Layer: layer, Result: result}); err != nil {
		return err
	}
	return (<-result).Err
}

// SendLen returns the shard's current node count.
func (s *Shard) SendLen() (int, error) {
	reply := make(chan int, 1)
	if err := s.send(Message{Kind: KindLen, Reply: reply}); err != nil {
		return 0, err
	}
	return <-reply, nil
}

// HashExternalID computes the shard-routing hash of an external id,
// independent of shard count; callers reduce it modulo N themselves via
// OwnerOf.
func HashExternalID(ext storage.ExternalID) uint64 {
	h := fnv.New64a()
	if ext.IsStr {
		_, _ = h.Write([]byte(ext.Str))
	} else {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(ext.U64 >> (8 * i))
		}
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}

// OwnerOf returns the shard id owning ext under N shards.
func OwnerOf(ext storage.ExternalID, n int) ID {
	if n <= 0 {
		return 0
	}
	return ID(HashExternalID(ext) % uint64(n))
}

// Router holds every shard of a graph and implements the routing rule
// for edges: same-owner edges become a single AddEdge; cross-shard
// edges fan out into an AddRemoteOutEdge/AddRemoteInEdge pair, sent in
// order so both halves agree under crash-free operation.
type Router struct {
	Shards []*Shard
}

// NewRouter constructs a Router over an already-running set of shards.
func NewRouter(shards []*Shard) *Router {
	return &Router{Shards: shards}
}

// ShardFor returns the shard owning ext.
func (r *Router) ShardFor(ext storage.ExternalID) *Shard {
	return r.Shards[OwnerOf(ext, len(r.Shards))]
}

// RouteEdge applies the component-C routing rule for an edge between
// two VIDs already resolved to their owning shard ids.
func (r *Router) RouteEdge(srcShard, dstShard ID, src, dst storage.VID, t prop.Timestamp, secondary uint64, layer storage.LayerID, props map[string]prop.Prop) error {
	if srcShard == dstShard {
		return r.Shards[srcShard].SendAddEdge(src, dst, t, secondary, layer, props)
	}
	if err := r.Shards[srcShard].SendAddRemoteOutEdge(src, dst, uint32(dstShard), t, secondary, layer, props); err != nil {
		return err
	}
	return r.Shards[dstShard].SendAddRemoteInEdge(src, dst, uint32(srcShard), t, secondary, layer, props)
}

// RouteDeleteEdge applies delete_edge's tombstone to every shard-local
// copy of the edge: just the one copy for a same-shard edge, or both the
// remote-out and remote-in halves for a cross-shard edge, so AliveAt
// agrees regardless of which shard a reader resolves the edge through.
func (r *Router) RouteDeleteEdge(srcShard, dstShard ID, src, dst storage.VID, t prop.Timestamp, secondary uint64, layer storage.LayerID) error {
	if err := r.Shards[srcShard].SendDeleteEdge(src, dst, t, secondary, layer); err != nil {
		return err
	}
	if srcShard == dstShard {
		return nil
	}
	return r.Shards[dstShard].SendDeleteEdge(src, dst, t, secondary, layer)
}
