package database

import (
	"context"
	"database/sql"
	"time"

	"quadra/internal/models"
)

// GetSchedulesForDay returns the open weekly segments for a court on a weekday.
func (db *DB) GetSchedulesForDay(ctx context.Context, courtID int64, dayOfWeek int) ([]models.CourtSchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, court_id, day_of_week, start_time, end_time, is_available, created_at, updated_at
		FROM court_schedules
		WHERE court_id = ? AND day_of_week = ? AND is_available = 1
		ORDER BY start_time`,
		courtID, dayOfWeek,
	)
	if err != nil {
		return nil, wrapErr("get schedules", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// ListSchedules returns every weekly segment for a court.
func (db *DB) ListSchedules(ctx context.Context, courtID int64) ([]models.CourtSchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, court_id, day_of_week, start_time, end_time, is_available, created_at, updated_at
		FROM court_schedules
		WHERE court_id = ?
		ORDER BY day_of_week, start_time`,
		courtID,
	)
	if err != nil {
		return nil, wrapErr("list schedules", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func scanSchedules(rows *sql.Rows) ([]models.CourtSchedule, error) {
	var schedules []models.CourtSchedule
	for rows.Next() {
		var s models.CourtSchedule
		if err := rows.Scan(&s.ID, &s.CourtID, &s.DayOfWeek, &s.StartTime, &s.EndTime,
			&s.IsAvailable, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, wrapErr("scan schedule", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, wrapErr("scan schedules", rows.Err())
}

// CreateSchedule inserts a weekly segment after validating it against the
// existing segments for the same (court, day): overlapping segments are
// rejected so availability stays well defined.
func (db *DB) CreateSchedule(ctx context.Context, s *models.CourtSchedule) error {
	start, err := models.ParseClock(s.StartTime)
	if err != nil {
		return &models.InvalidScheduleError{Reason: err.Error()}
	}
	end, err := models.ParseClock(s.EndTime)
	if err != nil {
		return &models.InvalidScheduleError{Reason: err.Error()}
	}
	if start >= end {
		return &models.InvalidScheduleError{Reason: "start_time must be before end_time"}
	}

	existing, err := db.GetSchedulesForDay(ctx, s.CourtID, s.DayOfWeek)
	if err != nil {
		return err
	}
	for _, other := range existing {
		os, _ := models.ParseClock(other.StartTime)
		oe, _ := models.ParseClock(other.EndTime)
		if models.Overlaps(start, end, os, oe) {
			return &models.InvalidScheduleError{
				Reason: "segment overlaps existing schedule " + other.StartTime + "-" + other.EndTime,
			}
		}
	}

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO court_schedules (court_id, day_of_week, start_time, end_time, is_available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.CourtID, s.DayOfWeek, s.StartTime, s.EndTime, s.IsAvailable, now, now,
	)
	if err != nil {
		return wrapErr("create schedule", err)
	}
	s.ID, _ = res.LastInsertId()
	return nil
}

// DeleteSchedule removes a weekly segment.
func (db *DB) DeleteSchedule(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM court_schedules WHERE id = ?", id)
	return wrapErr("delete schedule", err)
}

// GetBlocksForDate returns capacity-removing blocks for a court on a date.
func (db *DB) GetBlocksForDate(ctx context.Context, courtID int64, date string) ([]models.ScheduleBlock, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, court_id, date, start_time, end_time, reason, created_at
		FROM schedule_blocks
		WHERE court_id = ? AND date = ?
		ORDER BY start_time`,
		courtID, date,
	)
	if err != nil {
		return nil, wrapErr("get blocks", err)
	}
	defer rows.Close()

	var blocks []models.ScheduleBlock
	for rows.Next() {
		var b models.ScheduleBlock
		var startTime, endTime, reason sql.NullString
		if err := rows.Scan(&b.ID, &b.CourtID, &b.Date, &startTime, &endTime, &reason, &b.CreatedAt); err != nil {
			return nil, wrapErr("scan block", err)
		}
		if startTime.Valid {
			b.StartTime = startTime.String
		}
		if endTime.Valid {
			b.EndTime = endTime.String
		}
		if reason.Valid {
			b.Reason = reason.String
		}
		blocks = append(blocks, b)
	}
	return blocks, wrapErr("get blocks", rows.Err())
}

// CreateBlock inserts a one-off block. Partial blocks must have start < end.
func (db *DB) CreateBlock(ctx context.Context, b *models.ScheduleBlock) error {
	if !b.FullDay() {
		start, err := models.ParseClock(b.StartTime)
		if err != nil {
			return &models.InvalidScheduleError{Reason: err.Error()}
		}
		end, err := models.ParseClock(b.EndTime)
		if err != nil {
			return &models.InvalidScheduleError{Reason: err.Error()}
		}
		if start >= end {
			return &models.InvalidScheduleError{Reason: "block start_time must be before end_time"}
		}
	}

	var startTime, endTime any
	if b.StartTime != "" {
		startTime = b.StartTime
	}
	if b.EndTime != "" {
		endTime = b.EndTime
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO schedule_blocks (court_id, date, start_time, end_time, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.CourtID, b.Date, startTime, endTime, b.Reason, time.Now(),
	)
	if err != nil {
		return wrapErr("create block", err)
	}
	b.ID, _ = res.LastInsertId()
	return nil
}

// DeleteBlock removes a block.
func (db *DB) DeleteBlock(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM schedule_blocks WHERE id = ?", id)
	return wrapErr("delete block", err)
}
