package query

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFloorDate(t *testing.T) {
	ref := time.Date(2014, 1, 1, 17, 42, 3, 0, time.UTC)

	cases := []struct {
		name string
		ref  time.Time
		n    int64
		want time.Time
	}{
		{"zero is today", ref, 0, day(2014, 1, 1)},
		{"fifteen days", ref, 15, day(2013, 12, 17)},
		{"leap year", day(2012, 3, 14), 15, day(2012, 2, 28)},
		{"non leap year", day(2013, 3, 14), 15, day(2013, 2, 27)},
		{"negative clamps to one", ref, -1, day(2013, 12, 31)},
		{"large negative clamps to one", ref, -400, day(2013, 12, 31)},
		{"max days overflows", ref, MaxDateRangeDays, day(2013, 12, 17)},
		{"max int overflows", ref, math.MaxInt64, day(2013, 12, 17)},
		{"before year one overflows", ref, 800000, day(2013, 12, 17)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FloorDate(tc.ref, tc.n))
		})
	}
}

func TestFloorDateString(t *testing.T) {
	ref := day(2014, 1, 1)

	got, err := FloorDateString(ref, "-1")
	require.NoError(t, err)
	assert.Equal(t, day(2013, 12, 31), got)
	assert.Equal(t, FloorDate(ref, -1), got)

	got, err = FloorDateString(ref, " 15 ")
	require.NoError(t, err)
	assert.Equal(t, day(2013, 12, 17), got)

	got, err = FloorDateString(ref, "99999999999999999999999999")
	require.NoError(t, err)
	assert.Equal(t, day(2013, 12, 17), got)

	_, err = FloorDateString(ref, "yesterday")
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = FloorDateString(ref, "1.5")
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestMidnightUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	local := time.Date(2014, 1, 2, 3, 0, 0, 0, loc)
	assert.Equal(t, day(2014, 1, 1), Midnight(local))
}
