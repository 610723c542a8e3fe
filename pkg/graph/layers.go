package graph

import (
	"fmt"
	"sync"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

// layerTable is the process-wide layer name interning table: layer ids
// are a small integer name-space shared by every graph in the process,
// guarded by a short-held mutex. "default" is pre-interned at
// LayerDefault so every edge has a layer even when the caller never
// names one.
type layerTable struct {
	mu     sync.Mutex
	byName map[string]layerID
	byID   []string
}

type layerID = storage.LayerID

var layers = newLayerTable()

func newLayerTable() *layerTable {
	t := &layerTable{
		byName: make(map[string]layerID),
		byID:   []string{"default"},
	}
	t.byName["default"] = 0
	return t
}

// internLayer resolves name to a layer id, assigning a new one on first
// reference. The empty string is treated as "default".
func internLayer(name string) layerID {
	if name == "" {
		return 0
	}
	layers.mu.Lock()
	defer layers.mu.Unlock()
	if id, ok := layers.byName[name]; ok {
		return id
	}
	id := layerID(len(layers.byID))
	layers.byName[name] = id
	layers.byID = append(layers.byID, name)
	return id
}

// lookupLayer resolves name to an already-interned layer id, without
// assigning one: operations that reference a layer rather than define
// one (delete_edge, a layers() view restriction by name) go through
// here so a typo'd layer surfaces as ErrLayerMismatch instead of
// silently creating an empty layer. The empty string is "default".
func lookupLayer(name string) (layerID, error) {
	if name == "" {
		return 0, nil
	}
	layers.mu.Lock()
	defer layers.mu.Unlock()
	if id, ok := layers.byName[name]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("graph: layer %q: %w", name, chronoerr.ErrLayerMismatch)
}

// layerName resolves a layer id back to its interned name, for result
// formatting; returns "" if id was never interned.
func layerName(id layerID) string {
	layers.mu.Lock()
	defer layers.mu.Unlock()
	if int(id) >= len(layers.byID) {
		return ""
	}
	return layers.byID[id]
}
