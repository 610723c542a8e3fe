package storage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/prop"
)

// binaryMagic and binaryVersion identify the on-disk graph format:
// magic(4B) | version(u16) | shard_count(u32) | [per-shard blob]*.
var binaryMagic = [4]byte{'C', 'S', 'G', '1'}

const binaryVersion uint16 = 1

// EncodeGraph serialises one Mem store per shard into the binary graph
// format described by the ingest API.
func EncodeGraph(w io.Writer, shards []*Mem) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(binaryMagic[:]); err != nil {
		return fmt.Errorf("storage: encode: %w", chronoerr.ErrIO)
	}
	if err := writeU16(bw, binaryVersion); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(len(shards))); err != nil {
		return err
	}
	for _, m := range shards {
		blob, err := encodeShard(m)
		if err != nil {
			return err
		}
		if err := writeU32(bw, uint32(len(blob))); err != nil {
			return err
		}
		if _, err := bw.Write(blob); err != nil {
			return fmt.Errorf("storage: encode: %w", chronoerr.ErrIO)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("storage: encode: %w", chronoerr.ErrIO)
	}
	return nil
}

// DecodeGraph reads a binary graph produced by EncodeGraph, returning
// one Mem store per shard. persistent is applied to every
// reconstructed store.
func DecodeGraph(r io.Reader, persistent bool) ([]*Mem, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil || magic != binaryMagic {
		return nil, fmt.Errorf("storage: decode: bad magic: %w", chronoerr.ErrGraphCorrupt)
	}
	version, err := readU16(br)
	if err != nil {
		return nil, err
	}
	if version != binaryVersion {
		return nil, fmt.Errorf("storage: decode: unsupported version %d: %w", version, chronoerr.ErrGraphCorrupt)
	}
	shardCount, err := readU32(br)
	if err != nil {
		return nil, err
	}
	shards := make([]*Mem, shardCount)
	for i := range shards {
		blobLen, err := readU32(br)
		if err != nil {
			return nil, err
		}
		blob := make([]byte, blobLen)
		if _, err := io.ReadFull(br, blob); err != nil {
			return nil, fmt.Errorf("storage: decode: truncated shard %d: %w", i, chronoerr.ErrGraphCorrupt)
		}
		m, err := decodeShard(blob, uint32(i), persistent)
		if err != nil {
			return nil, err
		}
		shards[i] = m
	}
	return shards, nil
}

func encodeShard(m *Mem) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var buf []byte
	buf = appendU32(buf, uint32(len(m.nodes)))
	for _, ns := range m.nodes {
		buf = appendNode(buf, ns)
	}
	buf = appendU32(buf, uint32(len(m.edges)))
	for _, e := range m.edges {
		buf = appendEdge(buf, e)
	}
	return buf, nil
}

func decodeShard(blob []byte, shardID uint32, persistent bool) (*Mem, error) {
	m := NewMem(shardID, persistent)
	r := &byteReader{buf: blob}

	nodeCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.nodes = make([]*NodeStore, nodeCount)
	for i := range m.nodes {
		ns, err := readNode(r)
		if err != nil {
			return nil, err
		}
		m.nodes[i] = ns
		m.byExternal[ns.External.String()] = ns.VID
	}
	edgeCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.edges = make([]*EdgeStore, edgeCount)
	for i := range m.edges {
		e, err := readEdge(r)
		if err != nil {
			return nil, err
		}
		m.edges[i] = e
	}
	return m, nil
}

func appendNode(buf []byte, ns *NodeStore) []byte {
	buf = appendU64(buf, uint64(ns.VID))
	buf = appendExternalID(buf, ns.External)
	buf = appendU32(buf, uint32(ns.TypeID))
	buf = appendU32(buf, uint32(len(ns.Additions)))
	for _, k := range ns.Additions {
		buf = appendOrderKeyBytes(buf, k)
	}
	buf = appendPropTimelines(buf, ns.Props)
	buf = appendAdjList(buf, ns.OutAdj)
	buf = appendAdjList(buf, ns.InAdj)
	return buf
}

func readNode(r *byteReader) (*NodeStore, error) {
	vid, err := r.u64()
	if err != nil {
		return nil, err
	}
	ext, err := readExternalID(r)
	if err != nil {
		return nil, err
	}
	typeID, err := r.u32()
	if err != nil {
		return nil, err
	}
	additions, err := readOrderKeys(r)
	if err != nil {
		return nil, err
	}
	propCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	props := make(map[string]Timeline, propCount)
	for i := uint32(0); i < propCount; i++ {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		tl, err := readTimeline(r)
		if err != nil {
			return nil, err
		}
		props[name] = tl
	}
	outAdj, err := readAdjList(r)
	if err != nil {
		return nil, err
	}
	inAdj, err := readAdjList(r)
	if err != nil {
		return nil, err
	}
	return &NodeStore{
		VID:       VID(vid),
		External:  ext,
		TypeID:    int32(typeID),
		Additions: additions,
		Props:     props,
		OutAdj:    outAdj,
		InAdj:     inAdj,
	}, nil
}

func appendEdge(buf []byte, e *EdgeStore) []byte {
	buf = appendU64(buf, e.ID)
	buf = appendU64(buf, uint64(e.Src))
	buf = appendU64(buf, uint64(e.Dst))
	buf = appendU16(buf, uint16(e.Layer))
	buf = appendBool(buf, e.Remote)
	buf = appendU32(buf, uint32(len(e.Additions)))
	for _, k := range e.Additions {
		buf = appendOrderKeyBytes(buf, k)
	}
	buf = appendU32(buf, uint32(len(e.Deletions)))
	for _, k := range e.Deletions {
		buf = appendOrderKeyBytes(buf, k)
	}
	buf = appendPropTimelines(buf, e.Props)
	return buf
}

// appendPropTimelines writes a property map in sorted name order, so the
// serialisation of a given store is deterministic: comparing two
// encodings of the same graph, or the two halves of a cross-shard edge,
// is a byte comparison.
func appendPropTimelines(buf []byte, props map[string]Timeline) []byte {
	buf = appendU32(buf, uint32(len(props)))
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		buf = appendString(buf, name)
		buf = appendTimeline(buf, props[name])
	}
	return buf
}

func readEdge(r *byteReader) (*EdgeStore, error) {
	id, err := r.u64()
	if err != nil {
		return nil, err
	}
	src, err := r.u64()
	if err != nil {
		return nil, err
	}
	dst, err := r.u64()
	if err != nil {
		return nil, err
	}
	layer, err := r.u16()
	if err != nil {
		return nil, err
	}
	remote, err := r.boolean()
	if err != nil {
		return nil, err
	}
	additions, err := readOrderKeys(r)
	if err != nil {
		return nil, err
	}
	deletions, err := readOrderKeys(r)
	if err != nil {
		return nil, err
	}
	propCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	props := make(map[string]Timeline, propCount)
	for i := uint32(0); i < propCount; i++ {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		tl, err := readTimeline(r)
		if err != nil {
			return nil, err
		}
		props[name] = tl
	}
	return &EdgeStore{
		ID: id, Src: VID(src), Dst: VID(dst), Layer: LayerID(layer), Remote: remote,
		Additions: additions, Deletions: deletions, Props: props,
	}, nil
}

func appendTimeline(buf []byte, tl Timeline) []byte {
	buf = appendU32(buf, uint32(len(tl)))
	for _, e := range tl {
		buf = appendOrderKeyBytes(buf, e.Key)
		buf = appendProp(buf, e.Value)
	}
	return buf
}

func readTimeline(r *byteReader) (Timeline, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	tl := make(Timeline, n)
	for i := range tl {
		k, err := readOrderKeyBytes(r)
		if err != nil {
			return nil, err
		}
		v, err := readProp(r)
		if err != nil {
			return nil, err
		}
		tl[i] = TimelineEntry{Key: k, Value: v}
	}
	return tl, nil
}

func appendAdjList(buf []byte, adj []AdjEntry) []byte {
	buf = appendU32(buf, uint32(len(adj)))
	for _, a := range adj {
		buf = appendU64(buf, uint64(a.Neighbour))
		buf = appendU32(buf, a.NeighbourShard)
		buf = appendU64(buf, a.EdgeID)
		buf = appendU16(buf, uint16(a.Layer))
	}
	return buf
}

func readAdjList(r *byteReader) ([]AdjEntry, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	adj := make([]AdjEntry, n)
	for i := range adj {
		neigh, err := r.u64()
		if err != nil {
			return nil, err
		}
		neighShard, err := r.u32()
		if err != nil {
			return nil, err
		}
		edgeID, err := r.u64()
		if err != nil {
			return nil, err
		}
		layer, err := r.u16()
		if err != nil {
			return nil, err
		}
		adj[i] = AdjEntry{Neighbour: VID(neigh), NeighbourShard: neighShard, EdgeID: edgeID, Layer: LayerID(layer)}
	}
	return adj, nil
}

func appendExternalID(buf []byte, ext ExternalID) []byte {
	buf = appendBool(buf, ext.IsStr)
	if ext.IsStr {
		buf = appendString(buf, ext.Str)
	} else {
		buf = appendU64(buf, ext.U64)
	}
	return buf
}

func readExternalID(r *byteReader) (ExternalID, error) {
	isStr, err := r.boolean()
	if err != nil {
		return ExternalID{}, err
	}
	if isStr {
		s, err := r.str()
		if err != nil {
			return ExternalID{}, err
		}
		return StrID(s), nil
	}
	u, err := r.u64()
	if err != nil {
		return ExternalID{}, err
	}
	return U64ID(u), nil
}

func appendOrderKeyBytes(buf []byte, k prop.OrderKey) []byte {
	buf = appendU64(buf, uint64(k.T))
	buf = appendU64(buf, k.Secondary)
	return buf
}

func readOrderKeyBytes(r *byteReader) (prop.OrderKey, error) {
	t, err := r.u64()
	if err != nil {
		return prop.OrderKey{}, err
	}
	sec, err := r.u64()
	if err != nil {
		return prop.OrderKey{}, err
	}
	return prop.OrderKey{T: prop.Timestamp(t), Secondary: sec}, nil
}

func readOrderKeys(r *byteReader) ([]prop.OrderKey, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	keys := make([]prop.OrderKey, n)
	for i := range keys {
		k, err := readOrderKeyBytes(r)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func writeU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return fmt.Errorf("storage: encode: %w", chronoerr.ErrIO)
	}
	return nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return fmt.Errorf("storage: encode: %w", chronoerr.ErrIO)
	}
	return nil
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("storage: decode: %w", chronoerr.ErrGraphCorrupt)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("storage: decode: %w", chronoerr.ErrGraphCorrupt)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
