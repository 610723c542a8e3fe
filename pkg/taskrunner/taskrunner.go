// Package taskrunner implements the vertex-centric parallel task
// runner of component F: per-node state, an ordered list of tasks
// applied in parallel across worker partitions with a Continue/Done
// convergence loop, and a caller-supplied reduction over the final
// per-node state.
package taskrunner

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/pool"
	"github.com/chronoshard/chronoshard/pkg/view"
)

// Outcome is a task's per-node verdict: Continue requests another pass
// over that node; Done marks it settled.
type Outcome int

const (
	Done Outcome = iota
	Continue
)

// Task is a pure step function applied to one node and its mutable
// scratch state.
type Task[S any] func(node view.Node, state *S) Outcome

// Program is an ordered list of tasks, plus optional post-tasks run
// once every task has converged for every node.
type Program[S any] struct {
	Tasks     []Task[S]
	PostTasks []Task[S]
}

// Config controls worker partitioning.
type Config struct {
	// Threads is the target worker-partition count. Zero selects
	// runtime.NumCPU().
	Threads int
}

func (c Config) workers() int {
	if c.Threads <= 0 {
		return runtime.NumCPU()
	}
	if c.Threads < runtime.NumCPU() {
		return c.Threads
	}
	return runtime.NumCPU()
}

// Run executes program over every node in v, allocating one State slot
// per node via newState, and returns reduce(v, states) once every task
// (and its Continue re-entries) has settled for every node. cfg.Threads
// caps the worker-partition count at min(threads, num_cpus); the zero
// Config selects runtime.NumCPU().
//
// Determinism: within a single task, node visitation order across
// workers is unspecified. Between tasks, every task i completes across
// all nodes before task i+1 begins for any node — callers must write
// step functions whose per-node updates are commutative across
// interleavings, or that only read self-state and neighbour immutable
// views (as component G does).
func Run[S any](ctx context.Context, v view.View, cfg Config, program Program[S], newState func(view.Node) *S, reduce func(view.View, []view.Node, []*S) (any, error)) (any, error) {
	nodes := v.Nodes()
	states := make([]*S, len(nodes))
	for i, n := range nodes {
		states[i] = newState(n)
	}

	runAll := func(tasks []Task[S]) error {
		for _, task := range tasks {
			pending := makeIndexSet(len(nodes))
			for len(pending) > 0 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("taskrunner: %w", chronoerr.ErrDeadline)
				default:
				}
				next, err := runPass(ctx, cfg, nodes, states, pending, task)
				if err != nil {
					return err
				}
				pending = next
			}
		}
		return nil
	}

	if err := runAll(program.Tasks); err != nil {
		return nil, err
	}
	if err := runAll(program.PostTasks); err != nil {
		return nil, err
	}

	return reduce(v, nodes, states)
}

func makeIndexSet(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// runPass applies task to every node index in pending, partitioned
// across cfg.workers() goroutines, and returns the subset that returned
// Continue.
func runPass[S any](ctx context.Context, cfg Config, nodes []view.Node, states []*S, pending []int, task Task[S]) ([]int, error) {
	workers := cfg.workers()
	if workers > len(pending) {
		workers = len(pending)
	}
	if workers <= 0 {
		return nil, nil
	}

	// continued[i] marks whether pending[i] asked for another pass; a
	// plain bool suffices since Outcome is binary, and the pool spares
	// each convergence round a fresh allocation.
	continued := pool.GetBoolSlice(len(pending))
	defer pool.PutBoolSlice(continued)

	chunks := partition(len(pending), workers)
	var wg sync.WaitGroup
	var deadlineHit bool
	var mu sync.Mutex

	for _, c := range chunks {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := c.start; i < c.end; i++ {
				select {
				case <-ctx.Done():
					mu.Lock()
					deadlineHit = true
					mu.Unlock()
					return
				default:
				}
				idx := pending[i]
				continued[i] = task(nodes[idx], states[idx]) == Continue
			}
		}()
	}
	wg.Wait()

	if deadlineHit {
		return nil, fmt.Errorf("taskrunner: %w", chronoerr.ErrDeadline)
	}

	var next []int
	for i, c := range continued {
		if c {
			next = append(next, pending[i])
		}
	}
	return next, nil
}

type chunk struct{ start, end int }

func partition(n, workers int) []chunk {
	if workers <= 0 {
		workers = 1
	}
	size := (n + workers - 1) / workers
	if size == 0 {
		size = 1
	}
	var chunks []chunk
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, chunk{start: start, end: end})
	}
	return chunks
}
