package query

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxDateRangeDays is the largest day delta accepted as-is.
	MaxDateRangeDays int64 = 999999999
	// OverflowDateRangeDays replaces a day delta that cannot be represented.
	OverflowDateRangeDays int64 = 15
)

// ErrInvalidDateRange is returned for values that are not integers.
var ErrInvalidDateRange = errors.New("date range must be an integer")

// Midnight truncates t to 00:00 UTC of the same day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FloorDate returns UTC midnight of the day daysBack days before ref.
// Negative values clamp to one day back; values at or past MaxDateRangeDays,
// or that would leave the calendar, fall back to OverflowDateRangeDays.
func FloorDate(ref time.Time, daysBack int64) time.Time {
	day := Midnight(ref)
	switch {
	case daysBack < 0:
		daysBack = 1
	case daysBack >= MaxDateRangeDays:
		daysBack = OverflowDateRangeDays
	}
	floor := day.AddDate(0, 0, -int(daysBack))
	if floor.Year() < 1 {
		floor = day.AddDate(0, 0, -int(OverflowDateRangeDays))
	}
	return floor
}

// ParseDaysBack parses a date range query value. Magnitudes beyond int64 are
// reported as the matching int64 bound so FloorDate clamps them.
func ParseDaysBack(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return n, nil
		}
		return 0, ErrInvalidDateRange
	}
	return n, nil
}

// FloorDateString parses raw and applies FloorDate.
func FloorDateString(ref time.Time, raw string) (time.Time, error) {
	n, err := ParseDaysBack(raw)
	if err != nil {
		return time.Time{}, err
	}
	return FloorDate(ref, n), nil
}
