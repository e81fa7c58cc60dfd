package api

import (
	"net/http"
	"strconv"

	"quadra/internal/booking"
	"quadra/internal/metrics"
)

// handleCreateReservation books a slot.
// POST /api/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")

	var req booking.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	reservation, err := s.reservations.Create(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

// handleListReservations lists reservations for a court and date.
// GET /api/reservations?court_id=1&date=YYYY-MM-DD
func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_reservations")

	courtID, err := strconv.ParseInt(r.URL.Query().Get("court_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "court_id is required")
		return
	}
	date, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservations, err := s.reservations.List(r.Context(), courtID, date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

// handleConflictPreview reports whether a slot collides with an active
// reservation, without booking anything. exclude skips one reservation id so
// a reschedule can be checked against everything but itself.
// GET /api/reservations/conflict?court_id=1&date=YYYY-MM-DD&start_time=HH:MM&end_time=HH:MM&exclude=
func (s *HTTPServer) handleConflictPreview(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("conflict_preview")

	courtID, err := strconv.ParseInt(r.URL.Query().Get("court_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "court_id is required")
		return
	}
	date, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conflict, err := s.reservations.HasConflict(r.Context(), courtID, date,
		r.URL.Query().Get("start_time"), r.URL.Query().Get("end_time"),
		r.URL.Query().Get("exclude"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflict": conflict})
}

// handleGetReservation returns one reservation.
// GET /api/reservations/{id}
func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_reservation")

	reservation, err := s.reservations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// handleConfirmReservation confirms a pending reservation.
// POST /api/reservations/{id}/confirm
func (s *HTTPServer) handleConfirmReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("confirm_reservation")

	reservation, err := s.reservations.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// handleCancelReservation cancels a pending or confirmed reservation.
// POST /api/reservations/{id}/cancel
func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_reservation")

	reservation, err := s.reservations.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}
