package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
)

// Key prefixes for the Badger-backed snapshot: a single-byte prefix per
// key family keeps unrelated key spaces apart in one database.
const (
	bgPrefixNode = byte(0x01) // node:  shard(4B) vid(8B)         -> encoded NodeStore
	bgPrefixEdge = byte(0x02) // edge:  shard(4B) edgeID(8B)      -> encoded EdgeStore
	bgPrefixExt  = byte(0x03) // ext:   shard(4B) external id bytes -> vid(8B)
)

// BadgerSnapshot is a read-only, disk-backed node/edge store populated
// by SnapshotShard. It stands in for the Mem/Arrow capability-trait
// duality described for component B: Mem is the mutable, in-process
// implementer of NodeStorageOps, BadgerSnapshot a disk-backed copy of
// the same records. BadgerSnapshot exposes the narrower key-value primitives
// (LoadNode, VIDForInShard, PrefixScanNodes) a caller needs to either
// answer point lookups directly or rehydrate a shard's Mem store
// on demand; it does not implement NodeStorageOps's full view-facing
// surface (Neighbours, EdgesIter, Additions, …), since a view backend
// needs live adjacency traversal that a flat key-value scan does not
// give for free.
type BadgerSnapshot struct {
	db *badger.DB
}

// OpenBadgerSnapshot opens (creating if absent) a Badger database at
// dir for use as a read-only storage backend.
func OpenBadgerSnapshot(dir string) (*BadgerSnapshot, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger snapshot: %w: %v", chronoerr.ErrIO, err)
	}
	return &BadgerSnapshot{db: db}, nil
}

// Close releases the underlying Badger database handle.
func (b *BadgerSnapshot) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("storage: close badger snapshot: %w: %v", chronoerr.ErrIO, err)
	}
	return nil
}

// SnapshotShard writes every node and edge of m into the snapshot under
// keys scoped by shardID, overwriting any existing entries for that
// shard. Used by Graph.SnapshotToBadger.
func (b *BadgerSnapshot) SnapshotShard(shardID uint32, m *Mem) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return b.db.Update(func(txn *badger.Txn) error {
		for _, ns := range m.nodes {
			key := nodeKey(shardID, ns.VID)
			var buf []byte
			buf = appendNode(buf, ns)
			if err := txn.Set(key, buf); err != nil {
				return err
			}
			extKey := extKey(shardID, ns.External)
			if err := txn.Set(extKey, appendU64(nil, uint64(ns.VID))); err != nil {
				return err
			}
		}
		for _, e := range m.edges {
			key := edgeKey(shardID, e.ID)
			var buf []byte
			buf = appendEdge(buf, e)
			if err := txn.Set(key, buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func nodeKey(shardID uint32, vid VID) []byte {
	k := []byte{bgPrefixNode}
	k = appendU32(k, shardID)
	k = appendU64(k, uint64(vid))
	return k
}

func edgeKey(shardID uint32, edgeID uint64) []byte {
	k := []byte{bgPrefixEdge}
	k = appendU32(k, shardID)
	k = appendU64(k, edgeID)
	return k
}

func extKey(shardID uint32, ext ExternalID) []byte {
	k := []byte{bgPrefixExt}
	k = appendU32(k, shardID)
	k = appendExternalID(k, ext)
	return k
}

// LoadNode reads back a node written by SnapshotShard.
func (b *BadgerSnapshot) LoadNode(shardID uint32, vid VID) (*NodeStore, error) {
	var ns *NodeStore
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(shardID, vid))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("storage: %w", chronoerr.ErrUnknownNode)
			}
			return fmt.Errorf("storage: %w: %v", chronoerr.ErrIO, err)
		}
		return item.Value(func(val []byte) error {
			r := &byteReader{buf: val}
			decoded, err := readNode(r)
			if err != nil {
				return err
			}
			ns = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// VIDForInShard resolves an external id within a snapshotted shard.
func (b *BadgerSnapshot) VIDForInShard(shardID uint32, ext ExternalID) (VID, bool) {
	var vid VID
	found := false
	_ = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(extKey(shardID, ext))
		if err != nil {
			return nil
		}
		return item.Value(func(val []byte) error {
			r := &byteReader{buf: val}
			v, err := r.u64()
			if err != nil {
				return err
			}
			vid = VID(v)
			found = true
			return nil
		})
	})
	return vid, found
}

// PrefixScanNodes invokes fn for every node stored under shardID, in
// key order (ascending VID).
func (b *BadgerSnapshot) PrefixScanNodes(shardID uint32, fn func(*NodeStore) error) error {
	prefix := append([]byte{bgPrefixNode}, appendU32(nil, shardID)...)
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				r := &byteReader{buf: val}
				ns, err := readNode(r)
				if err != nil {
					return err
				}
				return fn(ns)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// PrefixScanEdges invokes fn for every edge stored under shardID, in key
// order (ascending edge id). Used alongside PrefixScanNodes to rehydrate
// a shard's Mem store from a snapshot.
func (b *BadgerSnapshot) PrefixScanEdges(shardID uint32, fn func(*EdgeStore) error) error {
	prefix := append([]byte{bgPrefixEdge}, appendU32(nil, shardID)...)
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				r := &byteReader{buf: val}
				e, err := readEdge(r)
				if err != nil {
					return err
				}
				return fn(e)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// RehydrateMem rebuilds a shard's Mem store from a Badger snapshot: the
// read-only disk path a load falls back to when a shard's hot store has
// not yet replayed the full log. Nodes and edges are appended in the key order
// SnapshotShard wrote them (ascending VID / edge id), which matches the
// order Mem itself assigns VIDs and edge ids in, so VID-indexed slice
// positions line up without a remapping pass.
func RehydrateMem(b *BadgerSnapshot, shardID uint32, persistent bool) (*Mem, error) {
	m := NewMem(shardID, persistent)
	if err := b.PrefixScanNodes(shardID, func(ns *NodeStore) error {
		m.nodes = append(m.nodes, ns)
		m.byExternal[ns.External.String()] = ns.VID
		return nil
	}); err != nil {
		return nil, fmt.Errorf("storage: rehydrate_mem: %w", err)
	}
	if err := b.PrefixScanEdges(shardID, func(e *EdgeStore) error {
		m.edges = append(m.edges, e)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("storage: rehydrate_mem: %w", err)
	}
	return m, nil
}
