package window

import (
	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/view"
)

// Views applies each bound of the set to v, yielding one derived
// sub-view per bound. Each sub-view shares v's storage, layer selection
// and predicates; only the time window differs (and composes with any
// window already on v, per the windowing idempotence rule).
func (s Set) Views(v view.View) []view.View {
	out := make([]view.View, len(s.bounds))
	for i, b := range s.bounds {
		out[i] = v.Window(b.Start, b.End)
	}
	return out
}

// RollingOver builds a Rolling window set spanning v's observed time
// range and returns its sub-views. An empty view yields no sub-views.
func RollingOver(v view.View, win, step prop.Interval) ([]view.View, error) {
	start, end, ok := viewRange(v)
	if !ok {
		return nil, nil
	}
	set, err := Rolling(start, end, win, step)
	if err != nil {
		return nil, err
	}
	return set.Views(v), nil
}

// ExpandingOver is RollingOver's expanding counterpart.
func ExpandingOver(v view.View, step prop.Interval) ([]view.View, error) {
	start, end, ok := viewRange(v)
	if !ok {
		return nil, nil
	}
	set, err := Expanding(start, end, step)
	if err != nil {
		return nil, err
	}
	return set.Views(v), nil
}

func viewRange(v view.View) (start, end prop.Timestamp, ok bool) {
	start, ok = v.Start()
	if !ok {
		return 0, 0, false
	}
	end, ok = v.End()
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}
