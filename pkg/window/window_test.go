package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoshard/chronoshard/pkg/prop"
)

func TestRollingFixedStep(t *testing.T) {
	set, err := Rolling(1, 7, prop.Millis(2), prop.Millis(2))
	require.NoError(t, err)
	assert.Equal(t, []Bound{
		{Start: 1, End: 3},
		{Start: 3, End: 5},
		{Start: 5, End: 7},
	}, set.Bounds())
}

func TestRollingWithSmallerStepThanWindow(t *testing.T) {
	set, err := Rolling(1, 6, prop.Millis(3), prop.Millis(2))
	require.NoError(t, err)
	assert.Equal(t, []Bound{
		{Start: 0, End: 3},
		{Start: 2, End: 5},
	}, set.Bounds())
}

func TestExpandingFixedStep(t *testing.T) {
	set, err := Expanding(1, 7, prop.Millis(2))
	require.NoError(t, err)
	assert.Equal(t, []Bound{
		{Start: prop.MinTimestamp, End: 3},
		{Start: prop.MinTimestamp, End: 5},
		{Start: prop.MinTimestamp, End: 7},
	}, set.Bounds())
}

func TestRollingInvalidInterval(t *testing.T) {
	_, err := Rolling(1, 7, prop.Millis(0), prop.Millis(2))
	assert.Error(t, err)

	_, err = Rolling(1, 7, prop.Millis(2), prop.Millis(-1))
	assert.Error(t, err)
}

func TestExpandingInvalidInterval(t *testing.T) {
	_, err := Expanding(1, 7, prop.Millis(0))
	assert.Error(t, err)
}

func TestEmptyRangeProducesEmptySet(t *testing.T) {
	set, err := Rolling(5, 5, prop.Millis(2), prop.Millis(2))
	require.NoError(t, err)
	assert.Empty(t, set.Bounds())
}

func TestCalendarRollingOneDay(t *testing.T) {
	day0 := prop.Timestamp(time.Date(2020, 6, 6, 0, 0, 0, 0, time.UTC).UnixMilli())
	day2 := prop.Timestamp(time.Date(2020, 6, 8, 0, 0, 0, 0, time.UTC).UnixMilli())

	oneDay, err := prop.ParseInterval("1 day")
	require.NoError(t, err)

	set, err := Rolling(day0, day2, oneDay, oneDay)
	require.NoError(t, err)
	require.Len(t, set.Bounds(), 2, "exactly two windows aligned to midnight UTC")

	day1 := prop.Timestamp(time.Date(2020, 6, 7, 0, 0, 0, 0, time.UTC).UnixMilli())
	assert.Equal(t, Bound{Start: day0, End: day1}, set.Bounds()[0])
	assert.Equal(t, Bound{Start: day1, End: day2}, set.Bounds()[1])
}

func TestTimeIndexDefaultIsEndMinusOne(t *testing.T) {
	b := Bound{Start: 1, End: 3}
	assert.Equal(t, prop.Timestamp(2), b.TimeIndex(false))
}

func TestTimeIndexCenter(t *testing.T) {
	b := Bound{Start: 0, End: 10}
	assert.Equal(t, prop.Timestamp(5), b.TimeIndex(true))
}
