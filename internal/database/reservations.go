package database

import (
	"context"
	"database/sql"
	"time"

	"quadra/internal/models"
)

const reservationColumns = `
	id, court_id, date, start_time, end_time, status, total_price,
	client_name, client_phone, notes, applied_promotion_id, idempotency_key,
	created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*models.Reservation, error) {
	var r models.Reservation
	var notes, idemKey sql.NullString
	var promoID sql.NullInt64
	err := row.Scan(&r.ID, &r.CourtID, &r.Date, &r.StartTime, &r.EndTime, &r.Status,
		&r.TotalPrice, &r.ClientName, &r.ClientPhone, &notes, &promoID, &idemKey,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		r.Notes = notes.String
	}
	if promoID.Valid {
		r.AppliedPromotionID = promoID.Int64
	}
	if idemKey.Valid {
		r.IdempotencyKey = idemKey.String
	}
	return &r, nil
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx,
		"SELECT"+reservationColumns+" FROM reservations WHERE id = ?", id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrReservationNotFound
	}
	if err != nil {
		return nil, wrapErr("get reservation", err)
	}
	return r, nil
}

// HasConflict reports whether an active reservation overlaps the half-open
// interval [startTime, endTime) on (courtID, date). Touching endpoints do not
// conflict. excludeID lets a rescheduled reservation ignore itself.
// Zero-padded HH:MM strings compare correctly as text.
func (db *DB) HasConflict(ctx context.Context, courtID int64, date, startTime, endTime, excludeID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE court_id = ? AND date = ?
		AND start_time < ? AND end_time > ?
		AND status IN ('pending', 'confirmed')
		AND id != ?`,
		courtID, date, endTime, startTime, excludeID,
	).Scan(&count)
	if err != nil {
		return false, wrapErr("conflict check", err)
	}
	return count > 0, nil
}

// CreateReservation inserts the reservation with the conflict check inside a
// single write transaction, so two racing creates cannot both pass the check.
// If the idempotency key already exists the stored reservation is returned
// with replayed = true and nothing is inserted.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) (replayed bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, wrapErr("begin create reservation", err)
	}
	defer tx.Rollback()

	if r.IdempotencyKey != "" {
		row := tx.QueryRowContext(ctx,
			"SELECT"+reservationColumns+" FROM reservations WHERE idempotency_key = ?",
			r.IdempotencyKey)
		existing, scanErr := scanReservation(row)
		if scanErr == nil {
			*r = *existing
			return true, nil
		}
		if scanErr != sql.ErrNoRows {
			return false, wrapErr("idempotency lookup", scanErr)
		}
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE court_id = ? AND date = ?
		AND start_time < ? AND end_time > ?
		AND status IN ('pending', 'confirmed')`,
		r.CourtID, r.Date, r.EndTime, r.StartTime,
	).Scan(&count)
	if err != nil {
		return false, wrapErr("conflict check", err)
	}
	if count > 0 {
		return false, &models.ConflictError{
			CourtID: r.CourtID, Date: r.Date, StartTime: r.StartTime, EndTime: r.EndTime,
		}
	}

	now := time.Now()
	var idemKey any
	if r.IdempotencyKey != "" {
		idemKey = r.IdempotencyKey
	}
	var promoID any
	if r.AppliedPromotionID != 0 {
		promoID = r.AppliedPromotionID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (
			id, court_id, date, start_time, end_time, status, total_price,
			client_name, client_phone, notes, applied_promotion_id, idempotency_key,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CourtID, r.Date, r.StartTime, r.EndTime, r.Status, r.TotalPrice,
		r.ClientName, r.ClientPhone, r.Notes, promoID, idemKey, now, now,
	)
	if err != nil {
		return false, wrapErr("insert reservation", err)
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	return false, wrapErr("commit create reservation", tx.Commit())
}

// TransitionReservation updates the status only if the reservation is still in
// the expected state, returning the updated row. A stale expectation means the
// caller lost a race and gets InvalidStateError with the current state.
func (db *DB) TransitionReservation(ctx context.Context, id string, from, to models.ReservationStatus) (*models.Reservation, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, time.Now(), id, from,
	)
	if err != nil {
		return nil, wrapErr("transition reservation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, getErr := db.GetReservation(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &models.InvalidStateError{
			Entity: "reservation " + id,
			From:   string(current.Status),
			To:     string(to),
		}
	}
	return db.GetReservation(ctx, id)
}

// ListReservations returns reservations for a court and date, every status,
// ordered by start time.
func (db *DB) ListReservations(ctx context.Context, courtID int64, date string) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT`+reservationColumns+`
		FROM reservations
		WHERE court_id = ? AND date = ?
		ORDER BY start_time`,
		courtID, date,
	)
	if err != nil {
		return nil, wrapErr("list reservations", err)
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, wrapErr("scan reservation", err)
		}
		reservations = append(reservations, *r)
	}
	return reservations, wrapErr("list reservations", rows.Err())
}

// ListReservationsByDateRange returns all reservations with date in [from, to],
// used by the report exporter and the sheet sync.
func (db *DB) ListReservationsByDateRange(ctx context.Context, from, to string) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT`+reservationColumns+`
		FROM reservations
		WHERE date >= ? AND date <= ?
		ORDER BY date, start_time`,
		from, to,
	)
	if err != nil {
		return nil, wrapErr("list reservations by range", err)
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, wrapErr("scan reservation", err)
		}
		reservations = append(reservations, *r)
	}
	return reservations, wrapErr("list reservations by range", rows.Err())
}

// DeleteOldReservations hard-deletes reservations whose date is older than the
// retention horizon. The daily report job runs this after exporting.
func (db *DB) DeleteOldReservations(ctx context.Context, before string) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM reservations WHERE date < ?", before)
	if err != nil {
		return 0, wrapErr("delete old reservations", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
