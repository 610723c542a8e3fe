package prop

import (
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
)

// Timestamp is a signed 64-bit epoch-millisecond value. All time windows
// in chronoshard are half-open [start, end); MaxTimestamp represents an
// open upper bound (end=+inf) and MinTimestamp an open lower bound
// (start=-inf).
type Timestamp int64

const (
	MinTimestamp Timestamp = math.MinInt64
	MaxTimestamp Timestamp = math.MaxInt64
)

// SaturatingAdd adds delta milliseconds to t, clamping at MinTimestamp /
// MaxTimestamp instead of wrapping on overflow.
func (t Timestamp) SaturatingAdd(delta int64) Timestamp {
	if delta > 0 && int64(t) > int64(MaxTimestamp)-delta {
		return MaxTimestamp
	}
	if delta < 0 && int64(t) < int64(MinTimestamp)-delta {
		return MinTimestamp
	}
	return t + Timestamp(delta)
}

// FloorTo floors t to the most recent boundary of step. When aligned is
// true, the boundary is anchored to the UTC epoch (midnight UTC for a
// day-long step, the top of the hour for an hour-long step, and so on
// for calendar intervals); when false, the boundary is anchored at t's
// own position modulo step.millis(), i.e. a plain integer floor-division
// grid with no relationship to the wall clock.
func (t Timestamp) FloorTo(step Interval, aligned bool) Timestamp {
	if aligned && step.calendar {
		return floorCalendar(t, step)
	}
	millis, ok := step.ToMillis()
	if !ok || millis <= 0 {
		return t
	}
	tv := int64(t)
	rem := tv % millis
	if rem < 0 {
		rem += millis
	}
	return Timestamp(tv - rem)
}

func floorCalendar(t Timestamp, step Interval) Timestamp {
	ut := time.UnixMilli(int64(t)).UTC()
	switch {
	case step.months%12 == 0 && step.months > 0:
		years := step.months / 12
		y := ut.Year() - (ut.Year() % years)
		return Timestamp(time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	case step.months > 0:
		truncated := time.Date(ut.Year(), ut.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Timestamp(truncated.UnixMilli())
	default:
		day := time.Date(ut.Year(), ut.Month(), ut.Day(), 0, 0, 0, 0, time.UTC)
		millis, ok := step.ToMillis()
		if !ok || millis <= 0 {
			return Timestamp(day.UnixMilli())
		}
		since := day.UnixMilli()
		rem := (int64(t) - since) % millis
		if rem < 0 {
			rem += millis
		}
		return Timestamp(int64(t) - rem)
	}
}

// maxFloatSecondsULPError bounds the relative precision loss tolerated
// when parsing a floating-point-seconds timestamp (e.g. "1700000000.25")
// into millisecond resolution; inputs that would lose more than 4ε of
// relative precision on the round trip are rejected as InvalidTime
// rather than silently truncated.
const maxFloatSecondsULPError = 4 * 2.220446049250313e-16

// ParseTimestamp accepts a signed integer of milliseconds, an RFC-3339
// timestamp, an e-mail (RFC 5322) date, or a floating-point number of
// seconds since the epoch. Naive date-times (no offset) are interpreted
// as UTC. Failures wrap chronoerr.ErrInvalidTime and never mutate
// anything; callers match with errors.Is.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("prop: empty timestamp: %w", chronoerr.ErrInvalidTime)
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Timestamp(ms), nil
	}

	if ts, ok := tryParseRFC3339(s); ok {
		return ts, nil
	}

	if ts, ok := tryParseMailDate(s); ok {
		return ts, nil
	}

	if ts, ok, err := tryParseFloatSeconds(s); err != nil {
		return 0, err
	} else if ok {
		return ts, nil
	}

	return 0, fmt.Errorf("prop: unparseable timestamp %q: %w", s, chronoerr.ErrInvalidTime)
}

func tryParseRFC3339(s string) (Timestamp, bool) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if tm, err := time.Parse(layout, s); err == nil {
			if tm.Location() == time.UTC && !strings.ContainsAny(s, "Zz+") && !hasOffsetSuffix(s) {
				tm = time.Date(tm.Year(), tm.Month(), tm.Day(), tm.Hour(), tm.Minute(), tm.Second(), tm.Nanosecond(), time.UTC)
			}
			return Timestamp(tm.UnixMilli()), true
		}
	}
	return 0, false
}

func hasOffsetSuffix(s string) bool {
	if len(s) < 6 {
		return false
	}
	tail := s[len(s)-6:]
	return (tail[0] == '+' || tail[0] == '-') && tail[3] == ':'
}

func tryParseMailDate(s string) (Timestamp, bool) {
	tm, err := mail.ParseDate(s)
	if err != nil {
		return 0, false
	}
	return Timestamp(tm.UnixMilli()), true
}

func tryParseFloatSeconds(s string) (Timestamp, bool, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, nil
	}
	millisF := f * 1000
	rounded := math.Round(millisF)
	if rounded != 0 {
		relErr := math.Abs(millisF-rounded) / math.Abs(rounded)
		if relErr > maxFloatSecondsULPError {
			return 0, false, fmt.Errorf("prop: float-seconds timestamp %q loses precision at millisecond resolution: %w", s, chronoerr.ErrInvalidTime)
		}
	}
	return Timestamp(int64(rounded)), true, nil
}

// OrderKey is the (timestamp, secondary) pair that totally orders events
// within an additions/deletions timeline: lexicographic on (T,
// Secondary). A missing secondary index is represented as 0, which is
// also the smallest possible secondary value — ties among events with no
// explicit secondary break in insertion order only by virtue of stable
// sort, not by any magic value.
type OrderKey struct {
	T         Timestamp
	Secondary uint64
}

// Less reports whether k sorts strictly before other.
func (k OrderKey) Less(other OrderKey) bool {
	if k.T != other.T {
		return k.T < other.T
	}
	return k.Secondary < other.Secondary
}

// Compare returns -1, 0, or 1 as k is less than, equal to, or greater
// than other.
func (k OrderKey) Compare(other OrderKey) int {
	switch {
	case k.Less(other):
		return -1
	case other.Less(k):
		return 1
	default:
		return 0
	}
}
