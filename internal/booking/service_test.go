package booking

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"quadra/internal/models"
	"quadra/internal/pricing"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetCourt(ctx context.Context, id int64) (*models.Court, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Court), args.Error(1)
}

func (m *mockStore) CreateReservation(ctx context.Context, r *models.Reservation) (bool, error) {
	args := m.Called(ctx, r)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockStore) TransitionReservation(ctx context.Context, id string, from, to models.ReservationStatus) (*models.Reservation, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockStore) HasConflict(ctx context.Context, courtID int64, date, startTime, endTime, excludeID string) (bool, error) {
	args := m.Called(ctx, courtID, date, startTime, endTime, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListReservations(ctx context.Context, courtID int64, date string) ([]models.Reservation, error) {
	args := m.Called(ctx, courtID, date)
	return args.Get(0).([]models.Reservation), args.Error(1)
}

type mockCalendar struct {
	mock.Mock
}

func (m *mockCalendar) Covers(ctx context.Context, courtID int64, date, startTime, endTime string) (bool, error) {
	args := m.Called(ctx, courtID, date, startTime, endTime)
	return args.Bool(0), args.Error(1)
}

type mockPricer struct {
	mock.Mock
}

func (m *mockPricer) Price(ctx context.Context, courtID int64, date, startTime, endTime string) (pricing.Quote, error) {
	args := m.Called(ctx, courtID, date, startTime, endTime)
	return args.Get(0).(pricing.Quote), args.Error(1)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

func newTestService(store *mockStore, cal *mockCalendar, pricer *mockPricer, bus *mockBus, rules Rules) *Service {
	logger := zerolog.New(io.Discard)
	return NewService(store, cal, pricer, bus, rules, 5*time.Second, &logger)
}

func futureDate() string {
	return time.Now().AddDate(0, 0, 5).Format("2006-01-02")
}

func validRequest() CreateRequest {
	return CreateRequest{
		CourtID:     1,
		Date:        futureDate(),
		StartTime:   "10:00",
		EndTime:     "11:00",
		ClientName:  "Ana",
		ClientPhone: "11999990000",
	}
}

func availableCourt() *models.Court {
	return &models.Court{ID: 1, Name: "Quadra 1", PricePerHour: 50, Status: models.CourtAvailable}
}

func TestCreateReservation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{})
		req := validRequest()

		store.On("GetCourt", mock.Anything, int64(1)).Return(availableCourt(), nil).Once()
		cal.On("Covers", mock.Anything, int64(1), req.Date, "10:00", "11:00").Return(true, nil).Once()
		pricer.On("Price", mock.Anything, int64(1), req.Date, "10:00", "11:00").
			Return(pricing.Quote{Amount: 45, PromotionID: 7}, nil).Once()
		store.On("CreateReservation", mock.Anything, mock.Anything).Return(false, nil).Once()
		bus.On("PublishJSON", "reservation.created", mock.Anything).Return(nil).Once()

		reservation, err := svc.Create(context.Background(), req)
		assert.NoError(t, err)
		assert.NotEmpty(t, reservation.ID)
		assert.Equal(t, models.ReservationPending, reservation.Status)
		assert.Equal(t, 45.0, reservation.TotalPrice)
		assert.Equal(t, int64(7), reservation.AppliedPromotionID)
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("AutoConfirm", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{AutoConfirm: true})
		req := validRequest()

		store.On("GetCourt", mock.Anything, int64(1)).Return(availableCourt(), nil).Once()
		cal.On("Covers", mock.Anything, int64(1), req.Date, "10:00", "11:00").Return(true, nil).Once()
		pricer.On("Price", mock.Anything, int64(1), req.Date, "10:00", "11:00").
			Return(pricing.Quote{Amount: 50}, nil).Once()
		store.On("CreateReservation", mock.Anything, mock.Anything).Return(false, nil).Once()
		bus.On("PublishJSON", "reservation.created", mock.Anything).Return(nil).Once()

		reservation, err := svc.Create(context.Background(), req)
		assert.NoError(t, err)
		assert.Equal(t, models.ReservationConfirmed, reservation.Status)
	})

	t.Run("SlotNotOpen", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{})
		req := validRequest()

		store.On("GetCourt", mock.Anything, int64(1)).Return(availableCourt(), nil).Once()
		cal.On("Covers", mock.Anything, int64(1), req.Date, "10:00", "11:00").Return(false, nil).Once()

		_, err := svc.Create(context.Background(), req)
		var unavailable *models.SlotUnavailableError
		assert.ErrorAs(t, err, &unavailable)
		pricer.AssertNotCalled(t, "Price")
		store.AssertNotCalled(t, "CreateReservation")
	})

	t.Run("ConflictFromStore", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{})
		req := validRequest()

		store.On("GetCourt", mock.Anything, int64(1)).Return(availableCourt(), nil).Once()
		cal.On("Covers", mock.Anything, int64(1), req.Date, "10:00", "11:00").Return(true, nil).Once()
		pricer.On("Price", mock.Anything, int64(1), req.Date, "10:00", "11:00").
			Return(pricing.Quote{Amount: 50}, nil).Once()
		store.On("CreateReservation", mock.Anything, mock.Anything).
			Return(false, &models.ConflictError{CourtID: 1, Date: req.Date}).Once()

		_, err := svc.Create(context.Background(), req)
		var conflict *models.ConflictError
		assert.ErrorAs(t, err, &conflict)
		bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})

	t.Run("IdempotentReplaySkipsEvents", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{})
		req := validRequest()
		req.IdempotencyKey = "retry-123"

		store.On("GetCourt", mock.Anything, int64(1)).Return(availableCourt(), nil).Once()
		cal.On("Covers", mock.Anything, int64(1), req.Date, "10:00", "11:00").Return(true, nil).Once()
		pricer.On("Price", mock.Anything, int64(1), req.Date, "10:00", "11:00").
			Return(pricing.Quote{Amount: 50}, nil).Once()
		store.On("CreateReservation", mock.Anything, mock.Anything).Return(true, nil).Once()

		_, err := svc.Create(context.Background(), req)
		assert.NoError(t, err)
		bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})

	t.Run("ClosedCourtRejected", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{})
		req := validRequest()

		closed := availableCourt()
		closed.Status = models.CourtMaintenance
		store.On("GetCourt", mock.Anything, int64(1)).Return(closed, nil).Once()

		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrCourtNotFound)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		svc := newTestService(new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus), Rules{})
		ctx := context.Background()

		req := validRequest()
		req.EndTime = "10:00"
		_, err := svc.Create(ctx, req)
		assert.Error(t, err)

		req = validRequest()
		req.StartTime = "25:00"
		_, err = svc.Create(ctx, req)
		assert.Error(t, err)

		req = validRequest()
		req.ClientName = ""
		_, err = svc.Create(ctx, req)
		assert.Error(t, err)
	})

	t.Run("BookingWindow", func(t *testing.T) {
		svc := newTestService(new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus),
			Rules{MinAdvance: time.Hour, MaxAdvance: 30 * 24 * time.Hour})

		req := validRequest()
		req.Date = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
		_, err := svc.Create(context.Background(), req)
		assert.Error(t, err)

		req = validRequest()
		req.Date = time.Now().AddDate(0, 0, 45).Format("2006-01-02")
		_, err = svc.Create(context.Background(), req)
		assert.Error(t, err)
	})

	// The window is measured against local wall-clock time, so slots that
	// straddle the advance bound by less than the UTC offset still resolve
	// correctly on non-UTC hosts.
	t.Run("BookingWindowIsLocalTime", func(t *testing.T) {
		svc := newTestService(new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus),
			Rules{MinAdvance: 30 * time.Minute})

		slot := time.Now().Add(2 * time.Hour)
		err := svc.ValidateDate(slot.Format("2006-01-02"), slot.Format("15:04"))
		assert.NoError(t, err)

		slot = time.Now().Add(10 * time.Minute)
		err = svc.ValidateDate(slot.Format("2006-01-02"), slot.Format("15:04"))
		assert.Error(t, err)
	})
}

func TestHasConflict(t *testing.T) {
	store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
	svc := newTestService(store, cal, pricer, bus, Rules{})

	store.On("HasConflict", mock.Anything, int64(1), "2025-03-03", "10:00", "11:00", "r1").
		Return(true, nil).Once()

	conflict, err := svc.HasConflict(context.Background(), 1, "2025-03-03", "10:00", "11:00", "r1")
	assert.NoError(t, err)
	assert.True(t, conflict)
	store.AssertExpectations(t)

	// Malformed intervals never reach the store.
	_, err = svc.HasConflict(context.Background(), 1, "2025-03-03", "11:00", "10:00", "")
	assert.Error(t, err)
	_, err = svc.HasConflict(context.Background(), 1, "2025-03-03", "bad", "11:00", "")
	assert.Error(t, err)
}

func TestConfirmReservation(t *testing.T) {
	store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
	svc := newTestService(store, cal, pricer, bus, Rules{})

	confirmed := &models.Reservation{ID: "r1", Status: models.ReservationConfirmed}
	store.On("TransitionReservation", mock.Anything, "r1",
		models.ReservationPending, models.ReservationConfirmed).Return(confirmed, nil).Once()
	bus.On("PublishJSON", "reservation.confirmed", confirmed).Return(nil).Once()

	reservation, err := svc.Confirm(context.Background(), "r1")
	assert.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, reservation.Status)
	store.AssertExpectations(t)
}

func TestCancelReservation(t *testing.T) {
	t.Run("FromConfirmed", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{})

		current := &models.Reservation{ID: "r1", Status: models.ReservationConfirmed}
		cancelled := &models.Reservation{ID: "r1", Status: models.ReservationCancelled}
		store.On("GetReservation", mock.Anything, "r1").Return(current, nil).Once()
		store.On("TransitionReservation", mock.Anything, "r1",
			models.ReservationConfirmed, models.ReservationCancelled).Return(cancelled, nil).Once()
		bus.On("PublishJSON", "reservation.cancelled", cancelled).Return(nil).Once()

		reservation, err := svc.Cancel(context.Background(), "r1")
		assert.NoError(t, err)
		assert.Equal(t, models.ReservationCancelled, reservation.Status)
	})

	t.Run("AlreadyCancelled", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{})

		current := &models.Reservation{ID: "r1", Status: models.ReservationCancelled}
		store.On("GetReservation", mock.Anything, "r1").Return(current, nil).Once()

		_, err := svc.Cancel(context.Background(), "r1")
		var invalid *models.InvalidStateError
		assert.ErrorAs(t, err, &invalid)
		store.AssertNotCalled(t, "TransitionReservation",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NotFound", func(t *testing.T) {
		store, cal, pricer, bus := new(mockStore), new(mockCalendar), new(mockPricer), new(mockBus)
		svc := newTestService(store, cal, pricer, bus, Rules{})

		store.On("GetReservation", mock.Anything, "missing").
			Return(nil, models.ErrReservationNotFound).Once()

		_, err := svc.Cancel(context.Background(), "missing")
		assert.ErrorIs(t, err, models.ErrReservationNotFound)
	})
}
