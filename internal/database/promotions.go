package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"quadra/internal/models"
)

// ListActivePromotions returns promotions applying to courtID: its own plus
// the global ones. The pricing resolver filters by date and time.
func (db *DB) ListActivePromotions(ctx context.Context, courtID int64) ([]models.Promotion, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, court_id, title, description, discount_percentage, fixed_price,
		       start_date, end_date, start_time, end_time, days_of_week, is_active, created_at
		FROM promotions
		WHERE is_active = 1 AND (court_id IS NULL OR court_id = ?)
		ORDER BY created_at DESC`,
		courtID,
	)
	if err != nil {
		return nil, wrapErr("list promotions", err)
	}
	defer rows.Close()
	return scanPromotions(rows)
}

// ListPromotions returns every promotion for the admin surface.
func (db *DB) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, court_id, title, description, discount_percentage, fixed_price,
		       start_date, end_date, start_time, end_time, days_of_week, is_active, created_at
		FROM promotions
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, wrapErr("list promotions", err)
	}
	defer rows.Close()
	return scanPromotions(rows)
}

func scanPromotions(rows *sql.Rows) ([]models.Promotion, error) {
	var promotions []models.Promotion
	for rows.Next() {
		var p models.Promotion
		var courtID sql.NullInt64
		var description, startDate, endDate, startTime, endTime, days sql.NullString
		var pct, fixed sql.NullFloat64
		if err := rows.Scan(&p.ID, &courtID, &p.Title, &description, &pct, &fixed,
			&startDate, &endDate, &startTime, &endTime, &days, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, wrapErr("scan promotion", err)
		}
		if courtID.Valid {
			p.CourtID = courtID.Int64
		}
		if description.Valid {
			p.Description = description.String
		}
		if pct.Valid {
			p.DiscountPercentage = pct.Float64
		}
		if fixed.Valid {
			p.FixedPrice = fixed.Float64
		}
		if startDate.Valid {
			p.StartDate = startDate.String
		}
		if endDate.Valid {
			p.EndDate = endDate.String
		}
		if startTime.Valid {
			p.StartTime = startTime.String
		}
		if endTime.Valid {
			p.EndTime = endTime.String
		}
		if days.Valid && days.String != "" {
			p.DaysOfWeek = parseDays(days.String)
		}
		promotions = append(promotions, p)
	}
	return promotions, wrapErr("scan promotions", rows.Err())
}

// Days-of-week are stored as a comma-separated list ("0,5,6").
func parseDays(s string) []int {
	parts := strings.Split(s, ",")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		if d, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			days = append(days, d)
		}
	}
	return days
}

func formatDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// CreatePromotion validates and inserts a promotion.
func (db *DB) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var courtID, pct, fixed, startDate, endDate, startTime, endTime, days any
	if p.CourtID != 0 {
		courtID = p.CourtID
	}
	if p.DiscountPercentage > 0 {
		pct = p.DiscountPercentage
	}
	if p.FixedPrice > 0 {
		fixed = p.FixedPrice
	}
	if p.StartDate != "" {
		startDate = p.StartDate
	}
	if p.EndDate != "" {
		endDate = p.EndDate
	}
	if p.StartTime != "" {
		startTime = p.StartTime
	}
	if p.EndTime != "" {
		endTime = p.EndTime
	}
	if len(p.DaysOfWeek) > 0 {
		days = formatDays(p.DaysOfWeek)
	}

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO promotions (
			court_id, title, description, discount_percentage, fixed_price,
			start_date, end_date, start_time, end_time, days_of_week, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		courtID, p.Title, p.Description, pct, fixed,
		startDate, endDate, startTime, endTime, days, p.IsActive, now,
	)
	if err != nil {
		return wrapErr("create promotion", err)
	}
	p.ID, _ = res.LastInsertId()
	p.CreatedAt = now
	return nil
}

// SetPromotionActive toggles a promotion on or off.
func (db *DB) SetPromotionActive(ctx context.Context, id int64, active bool) error {
	res, err := db.ExecContext(ctx,
		"UPDATE promotions SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return wrapErr("toggle promotion", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrPromotionNotFound
	}
	return nil
}

// DeletePromotion removes a promotion.
func (db *DB) DeletePromotion(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM promotions WHERE id = ?", id)
	return wrapErr("delete promotion", err)
}
