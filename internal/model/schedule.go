package model

import (
	"errors"
	"strings"
	"time"
)

// Schedule is one armed reminder for a medicine. A daily schedule is
// re-armed after each delivery; a one-shot schedule is retired.
type Schedule struct {
	ID               string
	Name             string
	Time             string
	Daily            bool
	NextNotification time.Time
}

func (s Schedule) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("model: schedule id is required")
	}
	if s.NextNotification.IsZero() {
		return errors.New("model: schedule next_notification is required")
	}
	return nil
}

// Key identifies a schedule for de-duplication.
func (s Schedule) Key() string {
	return s.ID + "|" + s.Time
}

func (s Schedule) Due(now time.Time) bool {
	return !s.NextNotification.After(now)
}

// SameSlot reports whether both schedules fire at the same clock time
// with the same repetition.
func (s Schedule) SameSlot(o Schedule) bool {
	return s.ID == o.ID && s.Time == o.Time && s.Daily == o.Daily
}

// ScheduleFor arms a schedule for the next occurrence of the medicine's
// time after now.
func ScheduleFor(m Medicine, now time.Time) (Schedule, error) {
	tod, err := ParseTimeOfDay(m.Time)
	if err != nil {
		return Schedule{}, err
	}
	next, err := tod.NextAfter(now)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{
		ID:               m.ID,
		Name:             m.Name,
		Time:             tod.String(),
		Daily:            m.Daily,
		NextNotification: next,
	}, nil
}
