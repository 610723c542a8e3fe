// Package chronoerr defines the error kinds surfaced by chronoshard.
//
// Every kind here is a sentinel that callers match with errors.Is; the
// concrete error returned from an operation wraps one of these with
// fmt.Errorf("%w: ...") so the sentinel survives unwrapping while the
// message carries operation-specific detail.
package chronoerr

import "errors"

var (
	// ErrInvalidTime is returned when a timestamp cannot be parsed.
	ErrInvalidTime = errors.New("chronoshard: invalid time")

	// ErrInvalidInterval is returned when a window-set step or window
	// size is non-positive, or a calendar interval expression cannot be
	// parsed.
	ErrInvalidInterval = errors.New("chronoshard: invalid interval")

	// ErrUnknownGraph is returned when an operation names a graph that
	// does not exist.
	ErrUnknownGraph = errors.New("chronoshard: unknown graph")

	// ErrUnknownNode is returned by mutate-by-id operations on an
	// absent node. Read paths return a zero value plus false/nil instead
	// of this error.
	ErrUnknownNode = errors.New("chronoshard: unknown node")

	// ErrUnknownEdge is the edge analogue of ErrUnknownNode.
	ErrUnknownEdge = errors.New("chronoshard: unknown edge")

	// ErrLayerMismatch is returned when an edge operation references a
	// layer id that was never interned.
	ErrLayerMismatch = errors.New("chronoshard: layer mismatch")

	// ErrDeletionUnsupported is returned when delete_edge is called on a
	// graph that was not constructed as a persistent-graph variant.
	ErrDeletionUnsupported = errors.New("chronoshard: deletion unsupported on this graph variant")

	// ErrIO wraps file open/read/write failures.
	ErrIO = errors.New("chronoshard: io error")

	// ErrDeadline is returned by the task runner when a caller-supplied
	// deadline expires before all tasks converge. No partial result is
	// returned alongside it.
	ErrDeadline = errors.New("chronoshard: deadline exceeded")

	// ErrShardDown is returned when a message is sent to a shard actor
	// after it has processed a Done message. It is non-fatal.
	ErrShardDown = errors.New("chronoshard: shard is down")

	// ErrGraphCorrupt is returned when deserializing a binary graph
	// finds a magic/version/length mismatch. The graph is not loaded.
	ErrGraphCorrupt = errors.New("chronoshard: graph corrupt")
)
