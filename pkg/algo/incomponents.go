// Package algo implements the in-components reference algorithm of
// component G: for every node, the set of nodes that can reach it by
// following directed edges forward (equivalently, its reverse-BFS
// ancestor set).
package algo

import (
	"context"
	"fmt"
	"sort"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/storage"
	"github.com/chronoshard/chronoshard/pkg/taskrunner"
	"github.com/chronoshard/chronoshard/pkg/view"
)

// Result maps a node's external id string to the sorted external ids of
// every node in its in-component.
type Result map[string][]string

type ancestorState struct {
	ancestors   map[view.NodeID]bool
	frontier    []view.NodeID
	initialized bool
}

// InComponents computes the in-component of every node in v in
// parallel, using up to threads worker goroutines per round (0 selects
// runtime.NumCPU()). Each node independently expands its own reverse
// frontier by repeatedly querying DirIn neighbours through the
// (read-only, immutable) view — no node's task ever reads another
// node's in-progress state, so rounds are race-free without any
// double-buffering.
func InComponents(ctx context.Context, v view.View, threads int) (Result, error) {
	program := taskrunner.Program[ancestorState]{
		Tasks: []taskrunner.Task[ancestorState]{expandFrontier(v)},
	}

	raw, err := taskrunner.Run(ctx, v, taskrunner.Config{Threads: threads}, program,
		func(view.Node) *ancestorState { return &ancestorState{} },
		func(v view.View, nodes []view.Node, states []*ancestorState) (any, error) {
			return reduceAncestors(v, nodes, states)
		})
	if err != nil {
		return nil, err
	}
	return raw.(Result), nil
}

// InComponent is the single-node convenience path: the in-component of
// one node, by external id, without materializing the whole graph's
// result map.
func InComponent(ctx context.Context, v view.View, shard uint32, ext storage.ExternalID) ([]string, error) {
	node, ok := v.NodeByExternalID(shard, ext)
	if !ok {
		return nil, nil
	}

	state := &ancestorState{}
	task := expandFrontier(v)
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("algo: in_component: %w", chronoerr.ErrDeadline)
		default:
		}
		outcome := task(node, state)
		if outcome == taskrunner.Done {
			break
		}
	}

	return sortedExternalIDs(v, state.ancestors)
}

// expandFrontier returns a task that, per call, advances one node's
// reverse-BFS by one hop: the first call seeds the frontier from direct
// in-neighbours, subsequent calls expand each frontier member's own
// in-neighbours. Each call only queries graph structure through v
// (immutable) and this node's own *ancestorState, so concurrent calls
// for distinct nodes never race.
func expandFrontier(v view.View) taskrunner.Task[ancestorState] {
	return func(n view.Node, s *ancestorState) taskrunner.Outcome {
		if !s.initialized {
			s.initialized = true
			s.ancestors = map[view.NodeID]bool{}
			ins, err := n.Neighbours(storage.DirIn)
			if err != nil {
				return taskrunner.Done
			}
			for _, nb := range ins {
				if !s.ancestors[nb.ID()] {
					s.ancestors[nb.ID()] = true
					s.frontier = append(s.frontier, nb.ID())
				}
			}
			if len(s.frontier) == 0 {
				return taskrunner.Done
			}
			return taskrunner.Continue
		}

		if len(s.frontier) == 0 {
			return taskrunner.Done
		}

		var next []view.NodeID
		for _, id := range s.frontier {
			neigh, ok := v.Node(id)
			if !ok {
				continue
			}
			ins, err := neigh.Neighbours(storage.DirIn)
			if err != nil {
				continue
			}
			for _, nb := range ins {
				if !s.ancestors[nb.ID()] {
					s.ancestors[nb.ID()] = true
					next = append(next, nb.ID())
				}
			}
		}
		s.frontier = next
		if len(next) == 0 {
			return taskrunner.Done
		}
		return taskrunner.Continue
	}
}

func reduceAncestors(v view.View, nodes []view.Node, states []*ancestorState) (Result, error) {
	out := make(Result, len(nodes))
	for i, n := range nodes {
		ext, err := n.ExternalID()
		if err != nil {
			return nil, err
		}
		names, err := sortedExternalIDs(v, states[i].ancestors)
		if err != nil {
			return nil, err
		}
		out[ext.String()] = names
	}
	return out, nil
}

func sortedExternalIDs(v view.View, ids map[view.NodeID]bool) ([]string, error) {
	names := make([]string, 0, len(ids))
	for id := range ids {
		n, ok := v.Node(id)
		if !ok {
			continue
		}
		ext, err := n.ExternalID()
		if err != nil {
			return nil, err
		}
		names = append(names, ext.String())
	}
	sort.Strings(names)
	return names, nil
}
