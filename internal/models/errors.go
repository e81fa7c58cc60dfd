package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for missing or stale entities.
var (
	ErrCourtNotFound       = errors.New("court not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrBattleNotFound      = errors.New("battle not found")
	ErrPromotionNotFound   = errors.New("promotion not found")
	ErrTimeout             = errors.New("store operation timed out")
)

// ConflictError means the requested interval overlaps an active reservation.
type ConflictError struct {
	CourtID   int64
	Date      string
	StartTime string
	EndTime   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("court %d already reserved on %s within [%s, %s)",
		e.CourtID, e.Date, e.StartTime, e.EndTime)
}

// SlotUnavailableError means the requested interval is outside the court's
// open slots for that date (closed day, block, or off-schedule time).
type SlotUnavailableError struct {
	CourtID   int64
	Date      string
	StartTime string
	EndTime   string
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("court %d has no open slot on %s covering [%s, %s)",
		e.CourtID, e.Date, e.StartTime, e.EndTime)
}

// InvalidStateError is a lifecycle transition attempted from an illegal state.
type InvalidStateError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Entity, e.From, e.To)
}

// InvalidScheduleError is malformed schedule or block data (start >= end).
type InvalidScheduleError struct {
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return "invalid schedule: " + e.Reason
}

// StoreError wraps an unexpected persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
