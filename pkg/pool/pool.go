// Package pool provides sync.Pool-backed object pooling for
// chronoshard's hot paths: pooled scratch slices reduce GC pressure on
// the allocation-heavy paths of per-shard traversal and task-runner
// convergence rounds.
//
// Usage:
//
//	vids := pool.GetVIDSlice()
//	defer pool.PutVIDSlice(vids)
package pool

import "sync"

// Config configures pooling behavior.
type Config struct {
	Enabled bool
	MaxSize int
}

var global = Config{Enabled: true, MaxSize: 1000}

// Configure sets the global pooling configuration. Call during
// initialization, before the pools are used.
func Configure(cfg Config) {
	global = cfg
}

// IsEnabled reports whether pooling is currently active.
func IsEnabled() bool { return global.Enabled }

var vidSlicePool = sync.Pool{
	New: func() any { return make([]uint64, 0, 32) },
}

// GetVIDSlice returns a []uint64 scratch slice from the pool, length 0.
// Used by neighbour-collection and BFS-style traversals that need a
// reusable accumulator of VIDs.
func GetVIDSlice() []uint64 {
	if !global.Enabled {
		return make([]uint64, 0, 32)
	}
	return vidSlicePool.Get().([]uint64)[:0]
}

// PutVIDSlice returns a slice obtained from GetVIDSlice to the pool.
func PutVIDSlice(s []uint64) {
	if !global.Enabled || cap(s) > global.MaxSize {
		return
	}
	vidSlicePool.Put(s[:0])
}

var edgeKeySlicePool = sync.Pool{
	New: func() any { return make([]EdgeKey, 0, 32) },
}

// EdgeKey identifies an adjacency entry by (neighbour VID, edge handle,
// layer id) — the tuple stored in each node's sorted in/out adjacency
// list.
type EdgeKey struct {
	Neighbour uint64
	EdgeID    uint64
	Layer     uint16
}

// GetEdgeKeySlice returns a scratch []EdgeKey slice from the pool.
func GetEdgeKeySlice() []EdgeKey {
	if !global.Enabled {
		return make([]EdgeKey, 0, 32)
	}
	return edgeKeySlicePool.Get().([]EdgeKey)[:0]
}

// PutEdgeKeySlice returns a slice obtained from GetEdgeKeySlice to the
// pool.
func PutEdgeKeySlice(s []EdgeKey) {
	if !global.Enabled || cap(s) > global.MaxSize {
		return
	}
	edgeKeySlicePool.Put(s[:0])
}

var boolStatePool = sync.Pool{
	New: func() any { return make([]bool, 0, 64) },
}

// GetBoolSlice returns a scratch []bool (used as a per-task-runner-pass
// visited/continue marker set) from the pool.
func GetBoolSlice(n int) []bool {
	if !global.Enabled {
		return make([]bool, n)
	}
	s := boolStatePool.Get().([]bool)[:0]
	if cap(s) < n {
		return make([]bool, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = false
	}
	return s
}

// PutBoolSlice returns a slice obtained from GetBoolSlice to the pool.
func PutBoolSlice(s []bool) {
	if !global.Enabled || cap(s) > global.MaxSize {
		return
	}
	boolStatePool.Put(s[:0])
}
