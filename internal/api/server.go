// Package api exposes the reservation and battle core over HTTP JSON.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"quadra/internal/availability"
	"quadra/internal/battle"
	"quadra/internal/booking"
	"quadra/internal/database"
	"quadra/internal/models"
	"quadra/internal/report"
)

// HTTPServer routes API requests to the domain services.
type HTTPServer struct {
	db           *database.DB
	reservations *booking.Service
	battles      *battle.Service
	calendar     *availability.Calendar
	reporter     *report.Reporter
	apiKey       string
	log          *zerolog.Logger
}

// NewHTTPServer wires the API against the services. apiKey may be empty, in
// which case authentication is disabled (local development).
func NewHTTPServer(db *database.DB, reservations *booking.Service, battles *battle.Service,
	calendar *availability.Calendar, reporter *report.Reporter, apiKey string, log *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		db:           db,
		reservations: reservations,
		battles:      battles,
		calendar:     calendar,
		reporter:     reporter,
		apiKey:       apiKey,
		log:          log,
	}
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/courts", s.handleListCourts)
	mux.HandleFunc("POST /api/courts", s.handleCreateCourt)
	mux.HandleFunc("GET /api/courts/{id}", s.handleGetCourt)
	mux.HandleFunc("PUT /api/courts/{id}", s.handleUpdateCourt)
	mux.HandleFunc("PATCH /api/courts/{id}/status", s.handleCourtStatus)
	mux.HandleFunc("GET /api/courts/{id}/slots", s.handleOpenSlots)

	mux.HandleFunc("POST /api/courts/{id}/schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /api/courts/{id}/schedules", s.handleListSchedules)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.handleDeleteSchedule)
	mux.HandleFunc("POST /api/courts/{id}/blocks", s.handleCreateBlock)
	mux.HandleFunc("DELETE /api/blocks/{id}", s.handleDeleteBlock)

	mux.HandleFunc("GET /api/promotions", s.handleListPromotions)
	mux.HandleFunc("POST /api/promotions", s.handleCreatePromotion)
	mux.HandleFunc("PATCH /api/promotions/{id}/active", s.handlePromotionActive)
	mux.HandleFunc("DELETE /api/promotions/{id}", s.handleDeletePromotion)

	mux.HandleFunc("POST /api/reservations", s.handleCreateReservation)
	mux.HandleFunc("GET /api/reservations", s.handleListReservations)
	mux.HandleFunc("GET /api/reservations/conflict", s.handleConflictPreview)
	mux.HandleFunc("GET /api/reservations/{id}", s.handleGetReservation)
	mux.HandleFunc("POST /api/reservations/{id}/confirm", s.handleConfirmReservation)
	mux.HandleFunc("POST /api/reservations/{id}/cancel", s.handleCancelReservation)

	mux.HandleFunc("POST /api/battles", s.handleCreateBattle)
	mux.HandleFunc("GET /api/battles", s.handleListBattles)
	mux.HandleFunc("GET /api/battles/{id}", s.handleGetBattle)
	mux.HandleFunc("GET /api/battles/{id}/participants", s.handleListParticipants)
	mux.HandleFunc("POST /api/battles/{id}/join", s.handleJoinBattle)
	mux.HandleFunc("POST /api/battles/{id}/leave", s.handleLeaveBattle)
	mux.HandleFunc("POST /api/battles/{id}/score", s.handleSubmitScore)
	mux.HandleFunc("POST /api/battles/{id}/cancel", s.handleCancelBattle)

	mux.HandleFunc("GET /api/reports/reservations", s.handleReservationsReport)

	return s.authMiddleware(mux)
}

// authMiddleware requires the configured x-api-key header on every request.
func (s *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("x-api-key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeDomainError maps the domain error taxonomy to HTTP status codes.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	var conflict *models.ConflictError
	var unavailable *models.SlotUnavailableError
	var invalidState *models.InvalidStateError
	var invalidSchedule *models.InvalidScheduleError
	var storeErr *models.StoreError

	switch {
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invalidSchedule):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrCourtNotFound),
		errors.Is(err, models.ErrReservationNotFound),
		errors.Is(err, models.ErrBattleNotFound),
		errors.Is(err, models.ErrPromotionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "store timeout")
	case errors.As(err, &storeErr):
		s.log.Error().Err(err).Msg("store error")
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseDateParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return "", fmt.Errorf("invalid %s; expected YYYY-MM-DD", name)
	}
	return v, nil
}
