package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"quadra/internal/metrics"
	"quadra/internal/models"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

// handleListCourts lists courts, optionally filtered by status.
// GET /api/courts?status=available
func (s *HTTPServer) handleListCourts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_courts")

	status := models.CourtStatus(r.URL.Query().Get("status"))
	courts, err := s.db.ListCourts(r.Context(), status)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courts": courts})
}

// handleGetCourt returns one court.
// GET /api/courts/{id}
func (s *HTTPServer) handleGetCourt(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_court")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	court, err := s.db.GetCourt(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, court)
}

// handleCreateCourt registers a court.
// POST /api/courts
func (s *HTTPServer) handleCreateCourt(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_court")

	var court models.Court
	if err := decodeBody(r, &court); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if court.Name == "" || court.PricePerHour <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive price_per_hour are required")
		return
	}
	if court.Status == "" {
		court.Status = models.CourtAvailable
	}

	if err := s.db.CreateCourt(r.Context(), &court); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, court)
}

// handleUpdateCourt replaces a court's mutable fields.
// PUT /api/courts/{id}
func (s *HTTPServer) handleUpdateCourt(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_court")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var court models.Court
	if err := decodeBody(r, &court); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if court.Name == "" || court.PricePerHour <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive price_per_hour are required")
		return
	}
	switch court.Status {
	case "":
		court.Status = models.CourtAvailable
	case models.CourtAvailable, models.CourtClosed, models.CourtMaintenance:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	court.ID = id

	if err := s.db.UpdateCourt(r.Context(), &court); err != nil {
		s.writeDomainError(w, err)
		return
	}
	updated, err := s.db.GetCourt(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type courtStatusRequest struct {
	Status models.CourtStatus `json:"status"`
}

// handleCourtStatus flips a court between available, closed and maintenance.
// PATCH /api/courts/{id}/status
func (s *HTTPServer) handleCourtStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("court_status")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req courtStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Status {
	case models.CourtAvailable, models.CourtClosed, models.CourtMaintenance:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if err := s.db.SetCourtStatus(r.Context(), id, req.Status); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleOpenSlots returns the bookable slots for a court on a date.
// GET /api/courts/{id}/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleOpenSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("open_slots")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, err := s.calendar.OpenSlots(r.Context(), id, date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// Drop slots already taken by active reservations.
	reservations, err := s.reservations.List(r.Context(), id, date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	open := slots[:0]
	for _, slot := range slots {
		taken := false
		for _, res := range reservations {
			if !res.Status.Active() {
				continue
			}
			if slot.StartTime < res.EndTime && res.StartTime < slot.EndTime {
				taken = true
				break
			}
		}
		if !taken {
			open = append(open, slot)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": open})
}

// handleCreateSchedule adds a weekly opening segment.
// POST /api/courts/{id}/schedules
func (s *HTTPServer) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_schedule")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var schedule models.CourtSchedule
	if err := decodeBody(r, &schedule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	schedule.CourtID = id
	schedule.IsAvailable = true

	if err := s.db.CreateSchedule(r.Context(), &schedule); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

// handleListSchedules lists a court's weekly segments.
// GET /api/courts/{id}/schedules
func (s *HTTPServer) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_schedules")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	schedules, err := s.db.ListSchedules(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

// handleDeleteSchedule removes a weekly segment.
// DELETE /api/schedules/{id}
func (s *HTTPServer) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_schedule")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.DeleteSchedule(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleCreateBlock blocks a date (or part of it) for a court.
// POST /api/courts/{id}/blocks
func (s *HTTPServer) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_block")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var block models.ScheduleBlock
	if err := decodeBody(r, &block); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	block.CourtID = id
	if _, err := time.Parse("2006-01-02", block.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}

	if err := s.db.CreateBlock(r.Context(), &block); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// handleDeleteBlock removes a block.
// DELETE /api/blocks/{id}
func (s *HTTPServer) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_block")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.DeleteBlock(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleListPromotions lists all promotions.
// GET /api/promotions
func (s *HTTPServer) handleListPromotions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_promotions")

	promotions, err := s.db.ListPromotions(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": promotions})
}

// handleCreatePromotion registers a promotion.
// POST /api/promotions
func (s *HTTPServer) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_promotion")

	var promo models.Promotion
	if err := decodeBody(r, &promo); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.CreatePromotion(r.Context(), &promo); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, promo)
}

type promotionActiveRequest struct {
	Active bool `json:"active"`
}

// handlePromotionActive toggles a promotion.
// PATCH /api/promotions/{id}/active
func (s *HTTPServer) handlePromotionActive(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("promotion_active")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req promotionActiveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.SetPromotionActive(r.Context(), id, req.Active); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleDeletePromotion removes a promotion.
// DELETE /api/promotions/{id}
func (s *HTTPServer) handleDeletePromotion(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_promotion")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.DeletePromotion(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleReservationsReport streams an Excel export of reservations.
// GET /api/reports/reservations?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleReservationsReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_report")

	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if from > to {
		writeError(w, http.StatusBadRequest, "from must be before or equal to to")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=reservas_%s_%s.xlsx", from, to))
	if err := s.reporter.Reservations(r.Context(), from, to, w); err != nil {
		s.log.Error().Err(err).Msg("report export failed")
	}
}
