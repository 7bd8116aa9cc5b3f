package storage

import (
	"time"

	"github.com/sandeepkv93/medremind/internal/model"
)

// ScheduleRow is a stored schedule. Seq grows with every write, so rows
// come back in insertion order and the highest Seq is the latest write.
type ScheduleRow struct {
	Seq              int64
	ID               string
	Name             string
	Time             string
	Daily            bool
	NextNotification time.Time
	WrittenAt        time.Time
}

func (r ScheduleRow) Schedule() model.Schedule {
	return model.Schedule{
		ID:               r.ID,
		Name:             r.Name,
		Time:             r.Time,
		Daily:            r.Daily,
		NextNotification: r.NextNotification,
	}
}

func rowFromSchedule(s model.Schedule, writtenAt time.Time) ScheduleRow {
	return ScheduleRow{
		ID:               s.ID,
		Name:             s.Name,
		Time:             s.Time,
		Daily:            s.Daily,
		NextNotification: s.NextNotification,
		WrittenAt:        writtenAt,
	}
}

// Batch is the write-back of one scheduler pass. Rearm entries only
// update rows that still exist with the same id and time; Retire deletes
// every row for the id.
type Batch struct {
	Rearm  []model.Schedule
	Retire []string
}

func (b Batch) Empty() bool {
	return len(b.Rearm) == 0 && len(b.Retire) == 0
}
