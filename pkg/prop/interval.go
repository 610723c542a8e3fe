package prop

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
)

// Interval is a step or window size used by rolling/expanding window
// sets (component E). It is either a fixed millisecond duration (parsed
// from a bare integer) or a calendar expression ("1 day", "2 months",
// "3 years") whose arithmetic snaps to the UTC calendar rather than a
// fixed number of milliseconds — a month is not always 30*24h.
type Interval struct {
	millis   int64 // valid when !calendar, or when calendar but months == 0
	months   int   // valid when calendar && months != 0 (month/year units)
	calendar bool
}

// Millis constructs a plain millisecond-duration Interval, as produced
// by passing a bare integer step/window to Rolling/Expanding.
func Millis(ms int64) Interval {
	return Interval{millis: ms}
}

// ParseInterval accepts either an int64 (a plain millisecond count) or a
// calendar expression string of the form "<n> <unit>" where unit is one
// of millisecond(s), second(s), minute(s), hour(s), day(s), week(s),
// month(s), year(s).
func ParseInterval(v any) (Interval, error) {
	switch x := v.(type) {
	case int64:
		return Millis(x), nil
	case int:
		return Millis(int64(x)), nil
	case Interval:
		return x, nil
	case string:
		return parseCalendarInterval(x)
	default:
		return Interval{}, fmt.Errorf("prop: unsupported interval type %T: %w", v, chronoerr.ErrInvalidInterval)
	}
}

func parseCalendarInterval(s string) (Interval, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return Interval{}, fmt.Errorf("prop: invalid calendar interval %q: %w", s, chronoerr.ErrInvalidInterval)
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Interval{}, fmt.Errorf("prop: invalid calendar interval count in %q: %w", s, chronoerr.ErrInvalidInterval)
	}
	unit := strings.ToLower(strings.TrimSuffix(fields[1], "s"))
	switch unit {
	case "millisecond":
		return Interval{millis: n, calendar: true}, nil
	case "second":
		return Interval{millis: n * 1000, calendar: true}, nil
	case "minute":
		return Interval{millis: n * int64(time.Minute/time.Millisecond), calendar: true}, nil
	case "hour":
		return Interval{millis: n * int64(time.Hour/time.Millisecond), calendar: true}, nil
	case "day":
		return Interval{millis: n * 24 * int64(time.Hour/time.Millisecond), calendar: true}, nil
	case "week":
		return Interval{millis: n * 7 * 24 * int64(time.Hour/time.Millisecond), calendar: true}, nil
	case "month":
		return Interval{months: int(n), calendar: true}, nil
	case "year":
		return Interval{months: int(n) * 12, calendar: true}, nil
	default:
		return Interval{}, fmt.Errorf("prop: unknown calendar unit %q in %q: %w", fields[1], s, chronoerr.ErrInvalidInterval)
	}
}

// ToMillis returns the interval expressed in milliseconds along with
// true, or (0, false) if the interval is a month/year calendar interval
// whose length in milliseconds is not fixed.
func (iv Interval) ToMillis() (int64, bool) {
	if iv.calendar && iv.months != 0 {
		return 0, false
	}
	return iv.millis, true
}

// EpochAligned reports whether iv was parsed from a calendar expression,
// meaning window cursor increments should snap to calendar arithmetic on
// the UTC calendar rather than raw millisecond addition.
func (iv Interval) EpochAligned() bool { return iv.calendar }

// Positive reports whether the interval represents a positive step or
// window size; non-positive intervals are InvalidInterval.
func (iv Interval) Positive() bool {
	if iv.months != 0 {
		return iv.months > 0
	}
	return iv.millis > 0
}

// AddTo advances t by iv, using calendar-correct month/year arithmetic
// when iv carries a month count, or plain millisecond addition
// otherwise.
func (iv Interval) AddTo(t Timestamp) Timestamp {
	if iv.months != 0 {
		ut := time.UnixMilli(int64(t)).UTC()
		return Timestamp(ut.AddDate(0, iv.months, 0).UnixMilli())
	}
	return t.SaturatingAdd(iv.millis)
}

// SubFrom is the inverse of AddTo: it steps t backward by iv.
func (iv Interval) SubFrom(t Timestamp) Timestamp {
	if iv.months != 0 {
		ut := time.UnixMilli(int64(t)).UTC()
		return Timestamp(ut.AddDate(0, -iv.months, 0).UnixMilli())
	}
	return t.SaturatingAdd(-iv.millis)
}
