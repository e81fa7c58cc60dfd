package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadra/internal/availability"
	"quadra/internal/battle"
	"quadra/internal/booking"
	"quadra/internal/database"
	"quadra/internal/events"
	"quadra/internal/models"
	"quadra/internal/pricing"
	"quadra/internal/report"
)

const testAPIKey = "test-key"

type testEnv struct {
	server *httptest.Server
	db     *database.DB
	court  *models.Court
	date   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zerolog.New(io.Discard)
	bus := events.NewEventBus()
	calendar := availability.NewCalendar(db, 60)
	resolver := pricing.NewResolver(db)
	reservations := booking.NewService(db, calendar, resolver, bus, booking.Rules{}, 5*time.Second, &logger)
	battles := battle.NewService(db, bus, 5*time.Second, &logger)
	reporter := report.NewReporter(db)

	srv := NewHTTPServer(db, reservations, battles, calendar, reporter, testAPIKey, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	court := &models.Court{Name: "Quadra 1", Category: "beach tennis", PricePerHour: 50, Status: models.CourtAvailable}
	require.NoError(t, db.CreateCourt(ctx, court))

	// Open the court next week 08:00-18:00 on the test date's weekday.
	date := time.Now().AddDate(0, 0, 7)
	require.NoError(t, db.CreateSchedule(ctx, &models.CourtSchedule{
		CourtID: court.ID, DayOfWeek: int(date.Weekday()),
		StartTime: "08:00", EndTime: "18:00", IsAvailable: true,
	}))

	return &testEnv{server: ts, db: db, court: court, date: date.Format("2006-01-02")}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("x-api-key", testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name           string
		apiKey         string
		expectedStatus int
	}{
		{name: "valid api key", apiKey: testAPIKey, expectedStatus: http.StatusOK},
		{name: "missing api key", apiKey: "", expectedStatus: http.StatusUnauthorized},
		{name: "invalid api key", apiKey: "wrong", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/courts", http.NoBody)
			if tt.apiKey != "" {
				req.Header.Set("x-api-key", tt.apiKey)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestReservationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	createBody := func() map[string]any {
		return map[string]any{
			"court_id":     env.court.ID,
			"date":         env.date,
			"start_time":   "10:00",
			"end_time":     "11:00",
			"client_name":  "Ana",
			"client_phone": "11999990000",
		}
	}

	t.Run("CreateReturns201", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/reservations", createBody())
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		reservation := decode[models.Reservation](t, resp)
		assert.NotEmpty(t, reservation.ID)
		assert.Equal(t, models.ReservationPending, reservation.Status)
		assert.Equal(t, 50.0, reservation.TotalPrice)
	})

	t.Run("OverlapReturns409", func(t *testing.T) {
		body := createBody()
		body["start_time"] = "10:00"
		body["end_time"] = "12:00"
		resp := env.do(t, http.MethodPost, "/api/reservations", body)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("OutsideScheduleReturns422", func(t *testing.T) {
		body := createBody()
		body["start_time"] = "19:00"
		body["end_time"] = "20:00"
		resp := env.do(t, http.MethodPost, "/api/reservations", body)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("UnknownCourtReturns404", func(t *testing.T) {
		body := createBody()
		body["court_id"] = 9999
		body["start_time"] = "14:00"
		body["end_time"] = "15:00"
		resp := env.do(t, http.MethodPost, "/api/reservations", body)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("UnknownFieldReturns400", func(t *testing.T) {
		body := createBody()
		body["surprise"] = true
		resp := env.do(t, http.MethodPost, "/api/reservations", body)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ConfirmThenCancel", func(t *testing.T) {
		body := createBody()
		body["start_time"] = "15:00"
		body["end_time"] = "16:00"
		resp := env.do(t, http.MethodPost, "/api/reservations", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		reservation := decode[models.Reservation](t, resp)

		resp = env.do(t, http.MethodPost, "/api/reservations/"+reservation.ID+"/confirm", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		confirmed := decode[models.Reservation](t, resp)
		assert.Equal(t, models.ReservationConfirmed, confirmed.Status)

		resp = env.do(t, http.MethodPost, "/api/reservations/"+reservation.ID+"/cancel", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		cancelled := decode[models.Reservation](t, resp)
		assert.Equal(t, models.ReservationCancelled, cancelled.Status)

		// Cancelling again conflicts with the terminal state.
		resp = env.do(t, http.MethodPost, "/api/reservations/"+reservation.ID+"/cancel", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("ConflictPreview", func(t *testing.T) {
		body := createBody()
		body["start_time"] = "12:00"
		body["end_time"] = "13:00"
		resp := env.do(t, http.MethodPost, "/api/reservations", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		reservation := decode[models.Reservation](t, resp)

		check := func(start, end, exclude string) bool {
			path := fmt.Sprintf("/api/reservations/conflict?court_id=%d&date=%s&start_time=%s&end_time=%s&exclude=%s",
				env.court.ID, env.date, start, end, exclude)
			resp := env.do(t, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			payload := decode[struct {
				Conflict bool `json:"conflict"`
			}](t, resp)
			return payload.Conflict
		}

		assert.True(t, check("12:30", "13:30", ""))
		assert.False(t, check("13:00", "14:00", ""))
		// A reschedule preview ignores the reservation being moved.
		assert.False(t, check("12:00", "13:00", reservation.ID))

		resp = env.do(t, http.MethodGet, fmt.Sprintf(
			"/api/reservations/conflict?court_id=%d&date=%s&start_time=13:00&end_time=12:00",
			env.court.ID, env.date), nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("OpenSlotsExcludeBooked", func(t *testing.T) {
		path := fmt.Sprintf("/api/courts/%d/slots?date=%s", env.court.ID, env.date)
		resp := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		payload := decode[struct {
			Slots []availability.Slot `json:"slots"`
		}](t, resp)
		for _, s := range payload.Slots {
			assert.NotEqual(t, "10:00", s.StartTime)
		}
	})
}

func TestBattleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/battles", map[string]any{
		"name": "sexta 1x1", "modality": "beach tennis", "format": "1x1", "best_of": 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Battle](t, resp)
	require.Equal(t, models.BattleWaiting, created.Status)

	join := func(user string, team int) *http.Response {
		return env.do(t, http.MethodPost, "/api/battles/"+created.ID+"/join", map[string]any{
			"user_id": user, "team": team, "player_name": user,
		})
	}
	score := func(team, t1, t2 int) scoreResponse {
		resp := env.do(t, http.MethodPost, "/api/battles/"+created.ID+"/score", map[string]any{
			"team": team, "team1_score": t1, "team2_score": t2,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return decode[scoreResponse](t, resp)
	}

	t.Run("JoinUntilStart", func(t *testing.T) {
		r := join("u1", 1)
		require.Equal(t, http.StatusOK, r.StatusCode)
		b := decode[models.Battle](t, r)
		assert.Equal(t, models.BattleWaiting, b.Status)

		r = join("u2", 2)
		require.Equal(t, http.StatusOK, r.StatusCode)
		b = decode[models.Battle](t, r)
		assert.Equal(t, models.BattleInProgress, b.Status)
	})

	t.Run("ScoreHandshake", func(t *testing.T) {
		res := score(1, 1, 0)
		assert.Equal(t, models.ScorePending, res.Outcome)

		res = score(2, 0, 1)
		assert.Equal(t, models.ScoreMismatch, res.Outcome)

		res = score(1, 1, 0)
		assert.Equal(t, models.ScorePending, res.Outcome)

		res = score(2, 1, 0)
		assert.Equal(t, models.ScoreCommitted, res.Outcome)
		assert.Equal(t, 1, res.Battle.Team1Score)
		assert.Equal(t, 2, res.Battle.CurrentSet)

		res = score(1, 2, 0)
		assert.Equal(t, models.ScorePending, res.Outcome)
		res = score(2, 2, 0)
		assert.Equal(t, models.ScoreFinished, res.Outcome)
		assert.Equal(t, models.BattleFinished, res.Battle.Status)
	})

	t.Run("ScoreAfterFinishReturns409", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/battles/"+created.ID+"/score", map[string]any{
			"team": 1, "team1_score": 3, "team2_score": 0,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("UnknownBattleReturns404", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/battles/nope", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUpdateCourt(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"name":           "Quadra Central",
		"category":       "beach tennis",
		"price_per_hour": 80.0,
		"status":         "maintenance",
	}
	resp := env.do(t, http.MethodPut, fmt.Sprintf("/api/courts/%d", env.court.ID), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Court](t, resp)
	assert.Equal(t, "Quadra Central", updated.Name)
	assert.Equal(t, 80.0, updated.PricePerHour)
	assert.Equal(t, models.CourtMaintenance, updated.Status)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/courts/%d", env.court.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[models.Court](t, resp)
	assert.Equal(t, "Quadra Central", fetched.Name)

	t.Run("UnknownCourtReturns404", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, "/api/courts/9999", body)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("MissingNameReturns400", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, fmt.Sprintf("/api/courts/%d", env.court.ID),
			map[string]any{"price_per_hour": 80.0})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
