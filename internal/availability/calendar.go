// Package availability derives open time slots for courts from weekly
// schedules and one-off blocks.
package availability

import (
	"context"
	"sort"

	"quadra/internal/models"
)

// Slot is a bookable half-open interval on a single date.
type Slot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ScheduleStore provides the schedule data the calendar reads.
type ScheduleStore interface {
	GetSchedulesForDay(ctx context.Context, courtID int64, dayOfWeek int) ([]models.CourtSchedule, error)
	GetBlocksForDate(ctx context.Context, courtID int64, date string) ([]models.ScheduleBlock, error)
}

// Calendar computes open slots. Results are recomputed per call; schedules and
// blocks can change between requests, so nothing is cached.
type Calendar struct {
	store       ScheduleStore
	slotMinutes int
}

// NewCalendar creates a calendar with the given slot size in minutes
// (defaults to 60 when non-positive).
func NewCalendar(store ScheduleStore, slotMinutes int) *Calendar {
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	return &Calendar{store: store, slotMinutes: slotMinutes}
}

// OpenSlots returns the open slots for a court on a date, ascending by start
// time. Slots are aligned to each schedule segment's start; a block removes
// every slot it overlaps (half-open, so a block touching a slot boundary
// removes nothing).
func (c *Calendar) OpenSlots(ctx context.Context, courtID int64, date string) ([]Slot, error) {
	day, err := models.ParseDate(date)
	if err != nil {
		return nil, &models.InvalidScheduleError{Reason: "bad date " + date}
	}

	schedules, err := c.store.GetSchedulesForDay(ctx, courtID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, nil
	}

	blocks, err := c.store.GetBlocksForDate(ctx, courtID, date)
	if err != nil {
		return nil, err
	}

	type span struct{ start, end int }
	var blocked []span
	for _, b := range blocks {
		if b.FullDay() {
			return nil, nil
		}
		bs, err := models.ParseClock(b.StartTime)
		if err != nil {
			return nil, &models.InvalidScheduleError{Reason: err.Error()}
		}
		be, err := models.ParseClock(b.EndTime)
		if err != nil {
			return nil, &models.InvalidScheduleError{Reason: err.Error()}
		}
		if bs >= be {
			return nil, &models.InvalidScheduleError{Reason: "block start must be before end"}
		}
		blocked = append(blocked, span{bs, be})
	}

	var slots []Slot
	for _, sched := range schedules {
		segStart, err := models.ParseClock(sched.StartTime)
		if err != nil {
			return nil, &models.InvalidScheduleError{Reason: err.Error()}
		}
		segEnd, err := models.ParseClock(sched.EndTime)
		if err != nil {
			return nil, &models.InvalidScheduleError{Reason: err.Error()}
		}
		if segStart >= segEnd {
			return nil, &models.InvalidScheduleError{Reason: "schedule start must be before end"}
		}

		for cursor := segStart; cursor+c.slotMinutes <= segEnd; cursor += c.slotMinutes {
			slotEnd := cursor + c.slotMinutes
			open := true
			for _, b := range blocked {
				if models.Overlaps(cursor, slotEnd, b.start, b.end) {
					open = false
					break
				}
			}
			if open {
				slots = append(slots, Slot{
					StartTime: models.FormatClock(cursor),
					EndTime:   models.FormatClock(slotEnd),
				})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
	return slots, nil
}

// Covers reports whether [startTime, endTime) is exactly a run of consecutive
// open slots, which is what a reservation must occupy. The requested start has
// to land on a slot boundary and the run must be gapless up to endTime.
func (c *Calendar) Covers(ctx context.Context, courtID int64, date, startTime, endTime string) (bool, error) {
	slots, err := c.OpenSlots(ctx, courtID, date)
	if err != nil {
		return false, err
	}

	idx := -1
	for i, s := range slots {
		if s.StartTime == startTime {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	cursor := startTime
	for idx < len(slots) && slots[idx].StartTime == cursor {
		cursor = slots[idx].EndTime
		if cursor == endTime {
			return true, nil
		}
		idx++
	}
	return false, nil
}
