package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/config"
)

// graphExt is the file extension loadGraphsFromPath/loadNewGraphsFromPath
// scan a directory for.
const graphExt = ".graph"

// Manager is the named-graph registry behind the GraphQL-compatible
// mutation names: graph(name), loadGraphsFromPath,
// loadNewGraphsFromPath, saveGraph, uploadGraph, sendGraph,
// receiveGraph. It is the query-API collaborator's entry point into
// this package, mapping a name to an open handle.
type Manager struct {
	cfg config.Config

	mu     sync.RWMutex
	graphs map[string]*Graph
}

// NewManager constructs an empty registry. cfg is applied to every graph
// the manager opens or loads.
func NewManager(cfg config.Config) *Manager {
	return &Manager{cfg: cfg, graphs: make(map[string]*Graph)}
}

// Graph resolves name to its open Graph handle, or
// chronoerr.ErrUnknownGraph if no graph by that name is registered.
func (mgr *Manager) Graph(name string) (*Graph, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	g, ok := mgr.graphs[name]
	if !ok {
		return nil, fmt.Errorf("graph: graph(%q): %w", name, chronoerr.ErrUnknownGraph)
	}
	return g, nil
}

// Names returns every registered graph name, sorted.
func (mgr *Manager) Names() []string {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	out := make([]string, 0, len(mgr.graphs))
	for name := range mgr.graphs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Register installs an already-open graph under name, closing and
// replacing whatever was previously registered there.
func (mgr *Manager) Register(name string, g *Graph) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if old, ok := mgr.graphs[name]; ok {
		_ = old.Close()
	}
	mgr.graphs[name] = g
}

// SaveGraph encodes the named graph to <dir>/<name>.graph, the
// saveGraph mutation.
func (mgr *Manager) SaveGraph(name, dir string) error {
	g, err := mgr.Graph(name)
	if err != nil {
		return err
	}
	return g.SaveToFile(filepath.Join(dir, name+graphExt))
}

// LoadGraphsFromPath re-loads every .graph file in dir, replacing any
// existing registration of the same name, and returns the sorted list of
// names now present. A directory entry's base name (minus the .graph
// extension) is the graph's name.
func (mgr *Manager) LoadGraphsFromPath(dir string) ([]string, error) {
	names, err := graphFilesIn(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		g, err := OpenFromFile(filepath.Join(dir, name+graphExt), mgr.cfg)
		if err != nil {
			return nil, fmt.Errorf("graph: load_graphs_from_path: %w", err)
		}
		mgr.Register(name, g)
	}
	return mgr.Names(), nil
}

// LoadNewGraphsFromPath loads only the .graph files in dir whose name is
// not already registered, leaving existing registrations (and their
// in-memory content) untouched. Returns the names actually loaded, not
// the full registry: a directory holding an unchanged g0 plus a new g1
// yields ["g1"], even though g0 remains registered.
func (mgr *Manager) LoadNewGraphsFromPath(dir string) ([]string, error) {
	names, err := graphFilesIn(dir)
	if err != nil {
		return nil, err
	}
	var loaded []string
	for _, name := range names {
		mgr.mu.RLock()
		_, exists := mgr.graphs[name]
		mgr.mu.RUnlock()
		if exists {
			continue
		}
		g, err := OpenFromFile(filepath.Join(dir, name+graphExt), mgr.cfg)
		if err != nil {
			return nil, fmt.Errorf("graph: load_new_graphs_from_path: %w", err)
		}
		mgr.Register(name, g)
		loaded = append(loaded, name)
	}
	sort.Strings(loaded)
	return loaded, nil
}

// UploadGraph registers an externally-supplied graph under name — the
// uploadGraph mutation, used when a caller hands over an
// already-decoded Graph (e.g. from DecodeURL) rather than a path on
// disk.
func (mgr *Manager) UploadGraph(name string, g *Graph) {
	mgr.Register(name, g)
}

// SendGraph decodes a base64-url-no-pad graph (the transport encoding
// EncodeURL produces) and registers it under name, replacing any
// existing registration — the sendGraph mutation, the wire-transfer
// counterpart of UploadGraph.
func (mgr *Manager) SendGraph(name, encoded string) error {
	g, err := DecodeURL(encoded, mgr.cfg)
	if err != nil {
		return fmt.Errorf("graph: send_graph(%q): %w", name, err)
	}
	mgr.Register(name, g)
	return nil
}

// ReceiveGraph renders the named graph in the same transport encoding,
// for a remote peer to pass to its own SendGraph — the receiveGraph
// query.
func (mgr *Manager) ReceiveGraph(name string) (string, error) {
	g, err := mgr.Graph(name)
	if err != nil {
		return "", err
	}
	encoded, err := g.EncodeURL()
	if err != nil {
		return "", fmt.Errorf("graph: receive_graph(%q): %w", name, err)
	}
	return encoded, nil
}

func graphFilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("graph: %w: %v", chronoerr.ErrIO, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), graphExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), graphExt))
	}
	sort.Strings(names)
	return names, nil
}
