package api

import (
	"net/http"

	"quadra/internal/battle"
	"quadra/internal/metrics"
	"quadra/internal/models"
)

// handleCreateBattle opens a battle in the waiting state.
// POST /api/battles
func (s *HTTPServer) handleCreateBattle(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_battle")

	var req battle.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.battles.Create(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleListBattles lists battles, optionally by status.
// GET /api/battles?status=waiting
func (s *HTTPServer) handleListBattles(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_battles")

	status := models.BattleStatus(r.URL.Query().Get("status"))
	battles, err := s.battles.List(r.Context(), status)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"battles": battles})
}

// handleGetBattle returns one battle.
// GET /api/battles/{id}
func (s *HTTPServer) handleGetBattle(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_battle")

	b, err := s.battles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleListParticipants returns a battle's players in join order.
// GET /api/battles/{id}/participants
func (s *HTTPServer) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_participants")

	participants, err := s.battles.Participants(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

type joinRequest struct {
	UserID     string `json:"user_id"`
	Team       int    `json:"team"`
	PlayerName string `json:"player_name,omitempty"`
}

// handleJoinBattle enrolls a player.
// POST /api/battles/{id}/join
func (s *HTTPServer) handleJoinBattle(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("join_battle")

	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.battles.Join(r.Context(), r.PathValue("id"), req.UserID, req.Team, req.PlayerName)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type leaveRequest struct {
	UserID string `json:"user_id"`
}

// handleLeaveBattle removes a player from a battle that has not started.
// POST /api/battles/{id}/leave
func (s *HTTPServer) handleLeaveBattle(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("leave_battle")

	var req leaveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.battles.Leave(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type scoreRequest struct {
	Team       int `json:"team"`
	Team1Score int `json:"team1_score"`
	Team2Score int `json:"team2_score"`
}

type scoreResponse struct {
	Outcome models.ScoreOutcome `json:"outcome"`
	Battle  *models.Battle      `json:"battle"`
}

// handleSubmitScore records one team's claimed set score. The set commits
// only when both teams submit matching totals.
// POST /api/battles/{id}/score
func (s *HTTPServer) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("submit_score")

	var req scoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, b, err := s.battles.SubmitScore(r.Context(), r.PathValue("id"), req.Team, req.Team1Score, req.Team2Score)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Outcome: outcome, Battle: b})
}

// handleCancelBattle aborts a battle.
// POST /api/battles/{id}/cancel
func (s *HTTPServer) handleCancelBattle(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_battle")

	b, err := s.battles.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
