package graph

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/config"
	"github.com/chronoshard/chronoshard/pkg/shard"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

// storeSnapshot returns the current *storage.Mem of every shard, for
// SaveToFile and EncodeURL to hand to storage.EncodeGraph.
func (g *Graph) storeSnapshot() []*storage.Mem {
	mems := make([]*storage.Mem, len(g.shards))
	for i, s := range g.shards {
		mems[i] = s.Store
	}
	return mems
}

// SaveToFile serialises the graph to path in the binary graph format,
// replacing any existing file atomically (write-temp-then-rename, so
// POSIX rename semantics apply): the file at path either holds the
// complete prior contents or the complete new contents, never a partial
// write.
func (g *Graph) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".chronoshard-tmp-*")
	if err != nil {
		return fmt.Errorf("graph: save_to_file: %w: %v", chronoerr.ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if err := storage.EncodeGraph(tmp, g.storeSnapshot()); err != nil {
		tmp.Close()
		return fmt.Errorf("graph: save_to_file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("graph: save_to_file: %w: %v", chronoerr.ErrIO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("graph: save_to_file: %w: %v", chronoerr.ErrIO, err)
	}
	return nil
}

// OpenFromFile constructs a Graph by decoding a binary graph previously
// written by SaveToFile, starting one shard actor per decoded shard.
// cfg.Storage.Persistent is applied to every reconstructed store; the
// decoded shard count overrides cfg.Storage.ShardCount (the graph being
// loaded dictates its own partitioning).
func OpenFromFile(path string, cfg config.Config) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("graph: load_from_file: %w: %v", chronoerr.ErrIO, err)
	}
	defer f.Close()

	mems, err := storage.DecodeGraph(f, cfg.Storage.Persistent)
	if err != nil {
		return nil, fmt.Errorf("graph: load_from_file: %w", err)
	}
	return fromStores(mems, cfg), nil
}

// DecodeURL constructs a Graph from a base64-url-no-pad string produced
// by EncodeURL — the url_decode_graph half of the GraphQL transport
// encoding.
func DecodeURL(encoded string, cfg config.Config) (*Graph, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("graph: url_decode_graph: %w: %v", chronoerr.ErrGraphCorrupt, err)
	}
	mems, err := storage.DecodeGraph(bytes.NewReader(raw), cfg.Storage.Persistent)
	if err != nil {
		return nil, fmt.Errorf("graph: url_decode_graph: %w", err)
	}
	return fromStores(mems, cfg), nil
}

// EncodeURL renders the graph's binary format as a base64-url-no-pad
// string (url_encode_graph). No GraphQL server is built around it here;
// it is the stable round-trip helper such a server would call.
func (g *Graph) EncodeURL() (string, error) {
	var buf bytes.Buffer
	if err := storage.EncodeGraph(&buf, g.storeSnapshot()); err != nil {
		return "", fmt.Errorf("graph: url_encode_graph: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// SnapshotToBadger writes every shard's current store into a Badger
// database at dir: a read-only, disk-backed copy a future load can fall
// back to without first replaying a full event log.
func (g *Graph) SnapshotToBadger(dir string) error {
	snap, err := storage.OpenBadgerSnapshot(dir)
	if err != nil {
		return fmt.Errorf("graph: snapshot_to_badger: %w", err)
	}
	defer snap.Close()

	for i, s := range g.shards {
		if err := snap.SnapshotShard(uint32(i), s.Store); err != nil {
			return fmt.Errorf("graph: snapshot_to_badger: %w: %v", chronoerr.ErrIO, err)
		}
	}
	return nil
}

// OpenFromBadgerSnapshot reconstructs a Graph by rehydrating shardCount
// shards' Mem stores from a Badger snapshot written by SnapshotToBadger.
// Unlike OpenFromFile's binary format (which round-trips exactly), this
// path serves the case where the hot store has not replayed the log yet:
// the rehydrated store is read from whatever was last snapshotted, not
// necessarily the most recent event.
func OpenFromBadgerSnapshot(dir string, shardCount int, cfg config.Config) (*Graph, error) {
	snap, err := storage.OpenBadgerSnapshot(dir)
	if err != nil {
		return nil, fmt.Errorf("graph: open_from_badger_snapshot: %w", err)
	}
	defer snap.Close()

	mems := make([]*storage.Mem, shardCount)
	for i := range mems {
		m, err := storage.RehydrateMem(snap, uint32(i), cfg.Storage.Persistent)
		if err != nil {
			return nil, fmt.Errorf("graph: open_from_badger_snapshot: %w", err)
		}
		mems[i] = m
	}
	return fromStores(mems, cfg), nil
}

// fromStores wraps a set of already-populated Mem stores (one per shard,
// in shard-id order) with running actors, the way Open wraps freshly
// constructed ones.
func fromStores(mems []*storage.Mem, cfg config.Config) *Graph {
	shards := make([]*shard.Shard, len(mems))
	for i, m := range mems {
		s := shard.New(shard.ID(i), m, cfg.Routing.MailboxSize)
		shards[i] = s
		go s.Run()
	}
	cfg.Storage.ShardCount = len(mems)
	return &Graph{
		cfg:    cfg,
		shards: shards,
		router: shard.NewRouter(shards),
	}
}
