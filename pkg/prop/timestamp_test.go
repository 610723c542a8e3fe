package prop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
)

func TestParseTimestampIntegerMillis(t *testing.T) {
	ts, err := ParseTimestamp("1700000000000")
	require.NoError(t, err)
	assert.Equal(t, Timestamp(1700000000000), ts)

	ts, err = ParseTimestamp("-5")
	require.NoError(t, err)
	assert.Equal(t, Timestamp(-5), ts)
}

func TestParseTimestampRFC3339(t *testing.T) {
	ts, err := ParseTimestamp("2020-06-06T12:30:00Z")
	require.NoError(t, err)
	want := time.Date(2020, 6, 6, 12, 30, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, Timestamp(want), ts)
}

func TestParseTimestampNaiveDatetimeIsUTC(t *testing.T) {
	ts, err := ParseTimestamp("2020-06-06 12:30:00")
	require.NoError(t, err)
	want := time.Date(2020, 6, 6, 12, 30, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, Timestamp(want), ts)
}

func TestParseTimestampMailDate(t *testing.T) {
	ts, err := ParseTimestamp("Sat, 06 Jun 2020 12:30:00 +0000")
	require.NoError(t, err)
	want := time.Date(2020, 6, 6, 12, 30, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, Timestamp(want), ts)
}

func TestParseTimestampFloatSeconds(t *testing.T) {
	ts, err := ParseTimestamp("1700000000.25")
	require.NoError(t, err)
	assert.Equal(t, Timestamp(1700000000250), ts)
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("not-a-time")
	require.Error(t, err)
	assert.ErrorIs(t, err, chronoerr.ErrInvalidTime)

	_, err = ParseTimestamp("")
	assert.ErrorIs(t, err, chronoerr.ErrInvalidTime)
}

func TestSaturatingAddClampsAtBounds(t *testing.T) {
	assert.Equal(t, MaxTimestamp, MaxTimestamp.SaturatingAdd(1))
	assert.Equal(t, MinTimestamp, MinTimestamp.SaturatingAdd(-1))
	assert.Equal(t, Timestamp(5), Timestamp(3).SaturatingAdd(2))
}

func TestFloorToUnalignedGrid(t *testing.T) {
	step := Millis(10)
	assert.Equal(t, Timestamp(30), Timestamp(37).FloorTo(step, false))
	assert.Equal(t, Timestamp(-10), Timestamp(-3).FloorTo(step, false))
}

func TestFloorToCalendarDay(t *testing.T) {
	step, err := ParseInterval("1 day")
	require.NoError(t, err)

	noon := Timestamp(time.Date(2020, 6, 6, 12, 0, 0, 0, time.UTC).UnixMilli())
	midnight := Timestamp(time.Date(2020, 6, 6, 0, 0, 0, 0, time.UTC).UnixMilli())
	assert.Equal(t, midnight, noon.FloorTo(step, true))
}

func TestParseIntervalCalendarUnits(t *testing.T) {
	iv, err := ParseInterval("2 months")
	require.NoError(t, err)
	_, fixed := iv.ToMillis()
	assert.False(t, fixed, "month intervals have no fixed millisecond length")
	assert.True(t, iv.Positive())

	iv, err = ParseInterval("1 day")
	require.NoError(t, err)
	ms, fixed := iv.ToMillis()
	require.True(t, fixed)
	assert.Equal(t, int64(24*60*60*1000), ms)
}

func TestParseIntervalRejectsMalformed(t *testing.T) {
	_, err := ParseInterval("once upon a time")
	require.Error(t, err)
	assert.ErrorIs(t, err, chronoerr.ErrInvalidInterval)

	_, err = ParseInterval("3 fortnights")
	assert.ErrorIs(t, err, chronoerr.ErrInvalidInterval)
}

func TestIntervalCalendarAddTo(t *testing.T) {
	iv, err := ParseInterval("1 month")
	require.NoError(t, err)

	jan15 := Timestamp(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC).UnixMilli())
	feb15 := Timestamp(time.Date(2021, 2, 15, 0, 0, 0, 0, time.UTC).UnixMilli())
	assert.Equal(t, feb15, iv.AddTo(jan15))
	assert.Equal(t, jan15, iv.SubFrom(feb15))
}
