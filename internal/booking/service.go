// Package booking orchestrates reservation creation and lifecycle transitions.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quadra/internal/events"
	"quadra/internal/metrics"
	"quadra/internal/models"
	"quadra/internal/pricing"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetCourt(ctx context.Context, id int64) (*models.Court, error)
	CreateReservation(ctx context.Context, r *models.Reservation) (replayed bool, err error)
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	TransitionReservation(ctx context.Context, id string, from, to models.ReservationStatus) (*models.Reservation, error)
	HasConflict(ctx context.Context, courtID int64, date, startTime, endTime, excludeID string) (bool, error)
	ListReservations(ctx context.Context, courtID int64, date string) ([]models.Reservation, error)
}

// SlotCalendar validates that a requested interval is open.
type SlotCalendar interface {
	Covers(ctx context.Context, courtID int64, date, startTime, endTime string) (bool, error)
}

// Pricer resolves the slot price.
type Pricer interface {
	Price(ctx context.Context, courtID int64, date, startTime, endTime string) (pricing.Quote, error)
}

// EventBus publishes domain events, fire-and-forget.
type EventBus interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Rules are the booking policy knobs.
type Rules struct {
	// AutoConfirm creates reservations as confirmed instead of pending.
	// Default is pending: an administrator approves each booking.
	AutoConfirm bool
	MinAdvance  time.Duration
	MaxAdvance  time.Duration
}

// Service is the reservation lifecycle manager.
type Service struct {
	store        Store
	calendar     SlotCalendar
	pricer       Pricer
	bus          EventBus
	rules        Rules
	storeTimeout time.Duration
	logger       *zerolog.Logger
}

// NewService wires the reservation service.
func NewService(store Store, calendar SlotCalendar, pricer Pricer, bus EventBus, rules Rules, storeTimeout time.Duration, logger *zerolog.Logger) *Service {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{
		store:        store,
		calendar:     calendar,
		pricer:       pricer,
		bus:          bus,
		rules:        rules,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// CreateRequest carries everything needed to book a slot. IdempotencyKey is
// optional; retried requests with the same key return the original
// reservation instead of double-booking.
type CreateRequest struct {
	CourtID        int64  `json:"court_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
	Notes          string `json:"notes,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (req *CreateRequest) validate() error {
	if req.CourtID == 0 {
		return fmt.Errorf("court_id is required")
	}
	if req.ClientName == "" || req.ClientPhone == "" {
		return fmt.Errorf("client_name and client_phone are required")
	}
	start, err := models.ParseClock(req.StartTime)
	if err != nil {
		return err
	}
	end, err := models.ParseClock(req.EndTime)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("start_time must be before end_time")
	}
	if _, err := models.ParseDate(req.Date); err != nil {
		return fmt.Errorf("invalid date %q", req.Date)
	}
	return nil
}

// ValidateDate rejects slots outside the booking window.
func (s *Service) ValidateDate(date string, startTime string) error {
	day, err := models.ParseDate(date)
	if err != nil {
		return fmt.Errorf("invalid date %q", date)
	}
	start, err := models.ParseClock(startTime)
	if err != nil {
		return err
	}
	// Clients book in wall-clock time, so the window is measured in the
	// server's local zone, not the UTC midnight ParseDate yields.
	slotStart := time.Date(day.Year(), day.Month(), day.Day(), 0, start, 0, 0, time.Local)

	now := time.Now()
	if s.rules.MinAdvance > 0 && slotStart.Before(now.Add(s.rules.MinAdvance)) {
		return fmt.Errorf("slot starts too soon; book at least %s in advance", s.rules.MinAdvance)
	}
	if s.rules.MaxAdvance > 0 && slotStart.After(now.Add(s.rules.MaxAdvance)) {
		return fmt.Errorf("slot is too far ahead; bookings open %s in advance", s.rules.MaxAdvance)
	}
	return nil
}

// Create books a slot. The slot must be exactly a run of open calendar slots
// (SlotUnavailableError otherwise); the overlap check and the insert run in
// one store transaction (ConflictError when the slot was taken in between).
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Reservation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := s.ValidateDate(req.Date, req.StartTime); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	court, err := s.store.GetCourt(ctx, req.CourtID)
	if err != nil {
		return nil, err
	}
	if !court.Bookable() {
		return nil, models.ErrCourtNotFound
	}

	covered, err := s.calendar.Covers(ctx, req.CourtID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if !covered {
		return nil, &models.SlotUnavailableError{
			CourtID: req.CourtID, Date: req.Date, StartTime: req.StartTime, EndTime: req.EndTime,
		}
	}

	quote, err := s.pricer.Price(ctx, req.CourtID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	status := models.ReservationPending
	if s.rules.AutoConfirm {
		status = models.ReservationConfirmed
	}
	reservation := &models.Reservation{
		ID:                 uuid.NewString(),
		CourtID:            req.CourtID,
		Date:               req.Date,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		Status:             status,
		TotalPrice:         quote.Amount,
		ClientName:         req.ClientName,
		ClientPhone:        req.ClientPhone,
		Notes:              req.Notes,
		AppliedPromotionID: quote.PromotionID,
		IdempotencyKey:     req.IdempotencyKey,
	}

	replayed, err := s.store.CreateReservation(ctx, reservation)
	if err != nil {
		if _, ok := err.(*models.ConflictError); ok {
			metrics.IncReservationConflict()
		}
		return nil, err
	}
	if replayed {
		s.logger.Info().Str("reservation_id", reservation.ID).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("reservation create replayed by idempotency key")
		return reservation, nil
	}

	metrics.IncReservationCreated(string(reservation.Status))
	if err := s.bus.PublishJSON(events.ReservationCreated, reservation); err != nil {
		s.logger.Warn().Err(err).Msg("publish reservation.created failed")
	}
	s.logger.Info().
		Str("reservation_id", reservation.ID).
		Int64("court_id", reservation.CourtID).
		Str("date", reservation.Date).
		Str("slot", reservation.StartTime+"-"+reservation.EndTime).
		Float64("total_price", reservation.TotalPrice).
		Msg("reservation created")
	return reservation, nil
}

// Confirm moves a pending reservation to confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	reservation, err := s.store.TransitionReservation(ctx, id,
		models.ReservationPending, models.ReservationConfirmed)
	if err != nil {
		return nil, err
	}

	if err := s.bus.PublishJSON(events.ReservationConfirmed, reservation); err != nil {
		s.logger.Warn().Err(err).Msg("publish reservation.confirmed failed")
	}
	s.logger.Info().Str("reservation_id", id).Msg("reservation confirmed")
	return reservation, nil
}

// Cancel releases the slot. Valid from pending or confirmed; cancelling an
// already-cancelled reservation returns InvalidStateError without a second
// state change.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(models.ReservationCancelled) {
		return nil, &models.InvalidStateError{
			Entity: "reservation " + id,
			From:   string(current.Status),
			To:     string(models.ReservationCancelled),
		}
	}

	reservation, err := s.store.TransitionReservation(ctx, id,
		current.Status, models.ReservationCancelled)
	if err != nil {
		return nil, err
	}

	metrics.IncReservationCancelled()
	if err := s.bus.PublishJSON(events.ReservationCancelled, reservation); err != nil {
		s.logger.Warn().Err(err).Msg("publish reservation.cancelled failed")
	}
	s.logger.Info().Str("reservation_id", id).Msg("reservation cancelled")
	return reservation, nil
}

// Get returns a reservation by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.GetReservation(ctx, id)
}

// List returns reservations for a court and date.
func (s *Service) List(ctx context.Context, courtID int64, date string) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.ListReservations(ctx, courtID, date)
}

// HasConflict is the pure overlap query behind the conflict-preview endpoint.
// excludeID lets a reservation being rescheduled ignore its own slot.
func (s *Service) HasConflict(ctx context.Context, courtID int64, date, startTime, endTime, excludeID string) (bool, error) {
	start, err := models.ParseClock(startTime)
	if err != nil {
		return false, err
	}
	end, err := models.ParseClock(endTime)
	if err != nil {
		return false, err
	}
	if start >= end {
		return false, fmt.Errorf("start_time must be before end_time")
	}
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.HasConflict(ctx, courtID, date, startTime, endTime, excludeID)
}
