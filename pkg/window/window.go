// Package window implements the window-set iterators of component E:
// Rolling and Expanding sequences of half-open sub-windows over a time
// range, with calendar-aware cursor arithmetic for intervals like
// "1 day" or "2 months".
//
// Cursor arithmetic follows the reference algorithm exactly: for
// Rolling(window, step), t_k = start + step - 1, start + 2*step - 1, …
// while t_k < end, and each sub-window is [t_k - window + 1, t_k + 1).
// Expanding(step) reuses the same cursor cadence but always starts at
// MinTimestamp.
package window

import (
	"fmt"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/prop"
)

// Bound is one half-open [Start, End) sub-window produced by a window
// set.
type Bound struct {
	Start prop.Timestamp
	End   prop.Timestamp
}

// TimeIndex returns the bound's representative instant: End-1 by
// default, or the midpoint (Start + (End-Start)/2) when center is true.
func (b Bound) TimeIndex(center bool) prop.Timestamp {
	if !center {
		return b.End.SaturatingAdd(-1)
	}
	return b.Start.SaturatingAdd(int64(b.End-b.Start) / 2)
}

// Set is an ordered sequence of sub-window Bounds, computed in full
// when the set is built.
type Set struct {
	bounds []Bound
}

// Bounds returns every sub-window in the set, in cursor order.
func (s Set) Bounds() []Bound { return s.bounds }

// TimeIndex returns TimeIndex(center) for every bound in the set, in
// order.
func (s Set) TimeIndex(center bool) []prop.Timestamp {
	out := make([]prop.Timestamp, len(s.bounds))
	for i, b := range s.bounds {
		out[i] = b.TimeIndex(center)
	}
	return out
}

// Rolling produces sub-views [t_k-window+1, t_k+1) for
// t_k = start+step-1, start+2*step-1, … while t_k < end. An empty
// [start,end) range produces an empty set. step or window <= 0 is
// InvalidInterval.
func Rolling(start, end prop.Timestamp, window, step prop.Interval) (Set, error) {
	if !window.Positive() || !step.Positive() {
		return Set{}, fmt.Errorf("window: rolling: %w", chronoerr.ErrInvalidInterval)
	}
	if start >= end {
		return Set{}, nil
	}

	var bounds []Bound
	aligned := step.EpochAligned()
	cursor := firstCursor(start, step, aligned)
	for cursor < end {
		winStart := window.SubFrom(cursor).SaturatingAdd(1)
		bounds = append(bounds, Bound{Start: winStart, End: cursor.SaturatingAdd(1)})
		cursor = step.AddTo(cursor)
	}
	return Set{bounds: bounds}, nil
}

// Expanding produces sub-views [MIN, t_k+1) on the same cursor cadence
// as Rolling. step <= 0 is InvalidInterval.
func Expanding(start, end prop.Timestamp, step prop.Interval) (Set, error) {
	if !step.Positive() {
		return Set{}, fmt.Errorf("window: expanding: %w", chronoerr.ErrInvalidInterval)
	}
	if start >= end {
		return Set{}, nil
	}

	var bounds []Bound
	aligned := step.EpochAligned()
	cursor := firstCursor(start, step, aligned)
	for cursor < end {
		bounds = append(bounds, Bound{Start: prop.MinTimestamp, End: cursor.SaturatingAdd(1)})
		cursor = step.AddTo(cursor)
	}
	return Set{bounds: bounds}, nil
}

// firstCursor computes t_0 = start + step - 1, snapping to calendar
// arithmetic first when step is a calendar interval so that, e.g.,
// rolling("1 day") cursors land on UTC midnight boundaries rather than
// an arbitrary 24h-from-start grid.
func firstCursor(start prop.Timestamp, step prop.Interval, aligned bool) prop.Timestamp {
	if aligned {
		floor := start.FloorTo(step, true)
		cursor := step.AddTo(floor).SaturatingAdd(-1)
		if cursor < start {
			cursor = step.AddTo(cursor.SaturatingAdd(1)).SaturatingAdd(-1)
		}
		return cursor
	}
	ms, ok := step.ToMillis()
	if !ok {
		return start
	}
	return start.SaturatingAdd(ms - 1)
}
