package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

var ErrInvalidTime = errors.New("model: invalid time of day")

// TimeOfDay is a wall-clock "HH:MM" in the local timezone of whoever
// evaluates it.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at this clock time on the calendar day of date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, date.Location())
}

func (t TimeOfDay) cron() string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

// NextAfter returns the first occurrence strictly after now.
func (t TimeOfDay) NextAfter(now time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(t.cron(), now, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("model: next occurrence of %s: %w", t, err)
	}
	return next, nil
}
