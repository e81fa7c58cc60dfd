// Package battle manages team battles and the two-sided score handshake.
package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quadra/internal/events"
	"quadra/internal/metrics"
	"quadra/internal/models"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetBattle(ctx context.Context, id string) (*models.Battle, error)
	ListBattles(ctx context.Context, status models.BattleStatus) ([]models.Battle, error)
	CreateBattle(ctx context.Context, b *models.Battle) error
	ListParticipants(ctx context.Context, battleID string) ([]models.BattleParticipant, error)
	JoinBattle(ctx context.Context, battleID, userID string, team int, playerName string) (*models.Battle, error)
	LeaveBattle(ctx context.Context, battleID, userID string) (*models.Battle, error)
	SubmitScore(ctx context.Context, battleID string, team, team1Score, team2Score int) (models.ScoreOutcome, *models.Battle, error)
	TransitionBattle(ctx context.Context, id string, to models.BattleStatus) (*models.Battle, error)
}

// EventBus publishes domain events, fire-and-forget.
type EventBus interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Service runs the battle lifecycle.
type Service struct {
	store        Store
	bus          EventBus
	storeTimeout time.Duration
	logger       *zerolog.Logger
}

// NewService wires the battle service.
func NewService(store Store, bus EventBus, storeTimeout time.Duration, logger *zerolog.Logger) *Service {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{store: store, bus: bus, storeTimeout: storeTimeout, logger: logger}
}

// CreateRequest describes a new battle. MaxParticipants is derived from
// Format when zero ("2x2" means 4 players).
type CreateRequest struct {
	Name            string    `json:"name"`
	Modality        string    `json:"modality"`
	Format          string    `json:"format"`
	Rules           string    `json:"rules,omitempty"`
	CourtID         int64     `json:"court_id,omitempty"`
	ScheduledTime   time.Time `json:"scheduled_time,omitempty"`
	MaxParticipants int       `json:"max_participants,omitempty"`
	BestOf          int       `json:"best_of,omitempty"`
}

var formatSizes = map[string]int{"1x1": 2, "2x2": 4, "3x3": 6}

func (req *CreateRequest) validate() error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	size, ok := formatSizes[req.Format]
	if !ok {
		return fmt.Errorf("unknown format %q", req.Format)
	}
	if req.MaxParticipants == 0 {
		req.MaxParticipants = size
	}
	if req.MaxParticipants%2 != 0 {
		return fmt.Errorf("max_participants must be even")
	}
	if req.BestOf == 0 {
		req.BestOf = 1
	}
	if req.BestOf%2 == 0 {
		return fmt.Errorf("best_of must be odd")
	}
	return nil
}

// Create opens a battle in the waiting state.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Battle, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	battle := &models.Battle{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Modality:        req.Modality,
		Format:          req.Format,
		Rules:           req.Rules,
		CourtID:         req.CourtID,
		ScheduledTime:   req.ScheduledTime,
		Status:          models.BattleWaiting,
		MaxParticipants: req.MaxParticipants,
		CurrentSet:      1,
		BestOf:          req.BestOf,
	}
	if err := s.store.CreateBattle(ctx, battle); err != nil {
		return nil, err
	}
	s.logger.Info().Str("battle_id", battle.ID).Str("format", battle.Format).
		Int("best_of", battle.BestOf).Msg("battle created")
	return battle, nil
}

// Get returns a battle by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Battle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.GetBattle(ctx, id)
}

// List returns battles, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.BattleStatus) ([]models.Battle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.ListBattles(ctx, status)
}

// Participants returns the enrolled players in join order.
func (s *Service) Participants(ctx context.Context, battleID string) ([]models.BattleParticipant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.ListParticipants(ctx, battleID)
}

// Join enrolls a player on team 1 or 2. The battle flips to in_progress when
// the last open spot fills.
func (s *Service) Join(ctx context.Context, battleID, userID string, team int, playerName string) (*models.Battle, error) {
	if team != 1 && team != 2 {
		return nil, fmt.Errorf("team must be 1 or 2")
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	battle, err := s.store.JoinBattle(ctx, battleID, userID, team, playerName)
	if err != nil {
		return nil, err
	}

	if err := s.bus.PublishJSON(events.BattleJoined, battle); err != nil {
		s.logger.Warn().Err(err).Msg("publish battle.joined failed")
	}
	if battle.Status == models.BattleInProgress {
		if err := s.bus.PublishJSON(events.BattleStarted, battle); err != nil {
			s.logger.Warn().Err(err).Msg("publish battle.started failed")
		}
		s.logger.Info().Str("battle_id", battleID).Msg("battle started")
	}
	return battle, nil
}

// Leave removes a player from a battle that has not started.
func (s *Service) Leave(ctx context.Context, battleID, userID string) (*models.Battle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	battle, err := s.store.LeaveBattle(ctx, battleID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.bus.PublishJSON(events.BattleLeft, battle); err != nil {
		s.logger.Warn().Err(err).Msg("publish battle.left failed")
	}
	return battle, nil
}

// SubmitScore records one team's claimed cumulative set score. A set commits
// only when both teams submit identical totals for the current set; a
// disagreement clears both claims and the teams resubmit from scratch.
func (s *Service) SubmitScore(ctx context.Context, battleID string, team, team1Score, team2Score int) (models.ScoreOutcome, *models.Battle, error) {
	if team != 1 && team != 2 {
		return "", nil, fmt.Errorf("team must be 1 or 2")
	}
	if team1Score < 0 || team2Score < 0 {
		return "", nil, fmt.Errorf("scores must be non-negative")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	outcome, battle, err := s.store.SubmitScore(ctx, battleID, team, team1Score, team2Score)
	if err != nil {
		return "", nil, err
	}

	metrics.IncBattleScore(string(outcome))
	switch outcome {
	case models.ScoreCommitted:
		if err := s.bus.PublishJSON(events.BattleSetCommitted, battle); err != nil {
			s.logger.Warn().Err(err).Msg("publish battle.set_committed failed")
		}
	case models.ScoreMismatch:
		if err := s.bus.PublishJSON(events.BattleScoreMismatch, battle); err != nil {
			s.logger.Warn().Err(err).Msg("publish battle.score_mismatch failed")
		}
		s.logger.Warn().Str("battle_id", battleID).Int("team", team).
			Msg("score claims disagreed; both cleared")
	case models.ScoreFinished:
		if err := s.bus.PublishJSON(events.BattleFinished, battle); err != nil {
			s.logger.Warn().Err(err).Msg("publish battle.finished failed")
		}
		s.logger.Info().Str("battle_id", battleID).Int("winner", battle.Winner()).
			Msg("battle finished")
	}
	return outcome, battle, nil
}

// Cancel aborts a battle that has not finished.
func (s *Service) Cancel(ctx context.Context, battleID string) (*models.Battle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	battle, err := s.store.TransitionBattle(ctx, battleID, models.BattleCancelled)
	if err != nil {
		return nil, err
	}
	if err := s.bus.PublishJSON(events.BattleCancelled, battle); err != nil {
		s.logger.Warn().Err(err).Msg("publish battle.cancelled failed")
	}
	s.logger.Info().Str("battle_id", battleID).Msg("battle cancelled")
	return battle, nil
}
