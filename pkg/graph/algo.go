package graph

import (
	"context"

	"github.com/chronoshard/chronoshard/pkg/algo"
	"github.com/chronoshard/chronoshard/pkg/shard"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

// InComponents runs the in-components reference algorithm (component G)
// over the graph's default view, using up to threads worker goroutines
// per task-runner round (threads <= 0 selects cfg.TaskRunner.Threads,
// which in turn selects runtime.NumCPU() when also unset). If ctx
// carries no deadline of its own, cfg.TaskRunner.Deadline is applied so
// the configured bound still takes effect.
func (g *Graph) InComponents(ctx context.Context, threads int) (algo.Result, error) {
	if threads <= 0 {
		threads = g.cfg.TaskRunner.Threads
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && g.cfg.TaskRunner.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.TaskRunner.Deadline)
		defer cancel()
	}
	return algo.InComponents(ctx, g.View(), threads)
}

// InComponent is the single-node convenience path: the in-component of
// one node by external id, without materializing the whole graph's
// result map.
func (g *Graph) InComponent(ctx context.Context, ext storage.ExternalID) ([]string, error) {
	owner := shard.OwnerOf(ext, len(g.shards))
	return algo.InComponent(ctx, g.View(), uint32(owner), ext)
}
