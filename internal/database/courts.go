package database

import (
	"context"
	"database/sql"
	"time"

	"quadra/internal/models"
)

// GetCourt returns a court by id.
func (db *DB) GetCourt(ctx context.Context, id int64) (*models.Court, error) {
	var c models.Court
	var description sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, name, description, category, price_per_hour, status, created_at, updated_at
		FROM courts WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &description, &c.Category, &c.PricePerHour, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrCourtNotFound
	}
	if err != nil {
		return nil, wrapErr("get court", err)
	}
	if description.Valid {
		c.Description = description.String
	}
	return &c, nil
}

// ListCourts returns all courts, optionally filtered by status.
func (db *DB) ListCourts(ctx context.Context, status models.CourtStatus) ([]models.Court, error) {
	query := `
		SELECT id, name, description, category, price_per_hour, status, created_at, updated_at
		FROM courts`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY name"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list courts", err)
	}
	defer rows.Close()

	var courts []models.Court
	for rows.Next() {
		var c models.Court
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &description, &c.Category, &c.PricePerHour,
			&c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, wrapErr("scan court", err)
		}
		if description.Valid {
			c.Description = description.String
		}
		courts = append(courts, c)
	}
	return courts, wrapErr("list courts", rows.Err())
}

// CreateCourt inserts a court and fills in its id.
func (db *DB) CreateCourt(ctx context.Context, c *models.Court) error {
	if c.Status == "" {
		c.Status = models.CourtAvailable
	}
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO courts (name, description, category, price_per_hour, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.Category, c.PricePerHour, c.Status, now, now,
	)
	if err != nil {
		return wrapErr("create court", err)
	}
	c.ID, _ = res.LastInsertId()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// UpdateCourt updates mutable court fields.
func (db *DB) UpdateCourt(ctx context.Context, c *models.Court) error {
	res, err := db.ExecContext(ctx, `
		UPDATE courts
		SET name = ?, description = ?, category = ?, price_per_hour = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.Category, c.PricePerHour, c.Status, time.Now(), c.ID,
	)
	if err != nil {
		return wrapErr("update court", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCourtNotFound
	}
	return nil
}

// SetCourtStatus changes only the status (admin toggle).
func (db *DB) SetCourtStatus(ctx context.Context, id int64, status models.CourtStatus) error {
	res, err := db.ExecContext(ctx,
		"UPDATE courts SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	if err != nil {
		return wrapErr("set court status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCourtNotFound
	}
	return nil
}
