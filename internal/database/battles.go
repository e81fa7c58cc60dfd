package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quadra/internal/models"
)

const battleColumns = `
	id, name, modality, format, rules, court_id, scheduled_time, status,
	max_participants, current_participants, team1_score, team2_score,
	current_set, best_of, created_at, updated_at`

func scanBattle(row interface{ Scan(...any) error }) (*models.Battle, error) {
	var b models.Battle
	var rules sql.NullString
	var courtID sql.NullInt64
	var scheduled sql.NullTime
	err := row.Scan(&b.ID, &b.Name, &b.Modality, &b.Format, &rules, &courtID, &scheduled,
		&b.Status, &b.MaxParticipants, &b.CurrentParticipants, &b.Team1Score, &b.Team2Score,
		&b.CurrentSet, &b.BestOf, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rules.Valid {
		b.Rules = rules.String
	}
	if courtID.Valid {
		b.CourtID = courtID.Int64
	}
	if scheduled.Valid {
		b.ScheduledTime = scheduled.Time
	}
	return &b, nil
}

// GetBattle returns a battle by id.
func (db *DB) GetBattle(ctx context.Context, id string) (*models.Battle, error) {
	row := db.QueryRowContext(ctx, "SELECT"+battleColumns+" FROM battles WHERE id = ?", id)
	b, err := scanBattle(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrBattleNotFound
	}
	if err != nil {
		return nil, wrapErr("get battle", err)
	}
	return b, nil
}

// ListBattles returns battles, optionally filtered by status.
func (db *DB) ListBattles(ctx context.Context, status models.BattleStatus) ([]models.Battle, error) {
	query := "SELECT" + battleColumns + " FROM battles"
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list battles", err)
	}
	defer rows.Close()

	var battles []models.Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, wrapErr("scan battle", err)
		}
		battles = append(battles, *b)
	}
	return battles, wrapErr("list battles", rows.Err())
}

// CreateBattle inserts a new battle in the waiting state.
func (db *DB) CreateBattle(ctx context.Context, b *models.Battle) error {
	if b.Status == "" {
		b.Status = models.BattleWaiting
	}
	if b.CurrentSet == 0 {
		b.CurrentSet = 1
	}
	if b.BestOf == 0 {
		b.BestOf = 1
	}
	var courtID, scheduled any
	if b.CourtID != 0 {
		courtID = b.CourtID
	}
	if !b.ScheduledTime.IsZero() {
		scheduled = b.ScheduledTime
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO battles (
			id, name, modality, format, rules, court_id, scheduled_time, status,
			max_participants, current_participants, team1_score, team2_score,
			current_set, best_of, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Modality, b.Format, b.Rules, courtID, scheduled, b.Status,
		b.MaxParticipants, b.CurrentSet, b.BestOf, now, now,
	)
	if err != nil {
		return wrapErr("create battle", err)
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// ListParticipants returns the players enrolled in a battle in join order.
func (db *DB) ListParticipants(ctx context.Context, battleID string) ([]models.BattleParticipant, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, battle_id, user_id, team, player_name, joined_at
		FROM battle_participants
		WHERE battle_id = ?
		ORDER BY joined_at`,
		battleID,
	)
	if err != nil {
		return nil, wrapErr("list participants", err)
	}
	defer rows.Close()

	var participants []models.BattleParticipant
	for rows.Next() {
		var p models.BattleParticipant
		if err := rows.Scan(&p.ID, &p.BattleID, &p.UserID, &p.Team, &p.PlayerName, &p.JoinedAt); err != nil {
			return nil, wrapErr("scan participant", err)
		}
		participants = append(participants, p)
	}
	return participants, wrapErr("list participants", rows.Err())
}

// JoinBattle enrolls a player in one transaction: the participant insert, the
// counter increment and the waiting -> in_progress flip at capacity all commit
// together, so two racing joins cannot overfill the battle.
func (db *DB) JoinBattle(ctx context.Context, battleID, userID string, team int, playerName string) (*models.Battle, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin join battle", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT"+battleColumns+" FROM battles WHERE id = ?", battleID)
	b, err := scanBattle(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrBattleNotFound
	}
	if err != nil {
		return nil, wrapErr("get battle", err)
	}
	if b.Status != models.BattleWaiting {
		return nil, &models.InvalidStateError{
			Entity: "battle " + battleID, From: string(b.Status), To: "join",
		}
	}
	if b.CurrentParticipants >= b.MaxParticipants {
		return nil, &models.InvalidStateError{
			Entity: "battle " + battleID, From: "full", To: "join",
		}
	}

	var teamCount int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM battle_participants WHERE battle_id = ? AND team = ?",
		battleID, team,
	).Scan(&teamCount)
	if err != nil {
		return nil, wrapErr("count team", err)
	}
	if teamCount >= b.MaxParticipants/2 {
		return nil, &models.InvalidStateError{
			Entity: fmt.Sprintf("battle %s team %d", battleID, team), From: "full", To: "join",
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO battle_participants (battle_id, user_id, team, player_name, joined_at)
		VALUES (?, ?, ?, ?, ?)`,
		battleID, userID, team, playerName, time.Now(),
	)
	if err != nil {
		// UNIQUE(battle_id, user_id) trips on a duplicate join.
		return nil, wrapErr("insert participant", err)
	}

	b.CurrentParticipants++
	if b.CurrentParticipants == b.MaxParticipants {
		b.Status = models.BattleInProgress
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE battles SET current_participants = ?, status = ?, updated_at = ? WHERE id = ?",
		b.CurrentParticipants, b.Status, time.Now(), battleID,
	)
	if err != nil {
		return nil, wrapErr("update battle", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapErr("commit join battle", err)
	}
	return b, nil
}

// LeaveBattle removes a player while the battle is still waiting.
func (db *DB) LeaveBattle(ctx context.Context, battleID, userID string) (*models.Battle, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin leave battle", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT"+battleColumns+" FROM battles WHERE id = ?", battleID)
	b, err := scanBattle(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrBattleNotFound
	}
	if err != nil {
		return nil, wrapErr("get battle", err)
	}
	if b.Status != models.BattleWaiting {
		return nil, &models.InvalidStateError{
			Entity: "battle " + battleID, From: string(b.Status), To: "leave",
		}
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM battle_participants WHERE battle_id = ? AND user_id = ?",
		battleID, userID,
	)
	if err != nil {
		return nil, wrapErr("delete participant", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &models.InvalidStateError{
			Entity: "battle " + battleID, From: "not joined", To: "leave",
		}
	}

	if b.CurrentParticipants > 0 {
		b.CurrentParticipants--
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE battles SET current_participants = ?, updated_at = ? WHERE id = ?",
		b.CurrentParticipants, time.Now(), battleID,
	)
	if err != nil {
		return nil, wrapErr("update battle", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapErr("commit leave battle", err)
	}
	return b, nil
}

// SubmitScore records one team's claimed cumulative set score and, when both
// teams have claimed, commits or resets in the same transaction. The
// check-and-clear is atomic so near-simultaneous submissions cannot
// double-commit a set.
func (db *DB) SubmitScore(ctx context.Context, battleID string, team, team1Score, team2Score int) (models.ScoreOutcome, *models.Battle, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, wrapErr("begin submit score", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT"+battleColumns+" FROM battles WHERE id = ?", battleID)
	b, err := scanBattle(row)
	if err == sql.ErrNoRows {
		return "", nil, models.ErrBattleNotFound
	}
	if err != nil {
		return "", nil, wrapErr("get battle", err)
	}
	if b.Status != models.BattleInProgress {
		return "", nil, &models.InvalidStateError{
			Entity: "battle " + battleID, From: string(b.Status), To: "submit_score",
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO battle_score_claims (battle_id, team, set_number, team1_score, team2_score, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(battle_id, team) DO UPDATE SET
			set_number = excluded.set_number,
			team1_score = excluded.team1_score,
			team2_score = excluded.team2_score,
			submitted_at = excluded.submitted_at`,
		battleID, team, b.CurrentSet, team1Score, team2Score, time.Now(),
	)
	if err != nil {
		return "", nil, wrapErr("upsert score claim", err)
	}

	otherTeam := 3 - team
	var otherSet, other1, other2 int
	err = tx.QueryRowContext(ctx, `
		SELECT set_number, team1_score, team2_score
		FROM battle_score_claims
		WHERE battle_id = ? AND team = ?`,
		battleID, otherTeam,
	).Scan(&otherSet, &other1, &other2)
	if err == sql.ErrNoRows || (err == nil && otherSet != b.CurrentSet) {
		if err := tx.Commit(); err != nil {
			return "", nil, wrapErr("commit score claim", err)
		}
		return models.ScorePending, b, nil
	}
	if err != nil {
		return "", nil, wrapErr("read other claim", err)
	}

	// Both teams have claimed for the current set; either way the claims are
	// consumed now.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM battle_score_claims WHERE battle_id = ?", battleID); err != nil {
		return "", nil, wrapErr("clear score claims", err)
	}

	if other1 != team1Score || other2 != team2Score {
		if err := tx.Commit(); err != nil {
			return "", nil, wrapErr("commit score mismatch", err)
		}
		return models.ScoreMismatch, b, nil
	}

	b.Team1Score = team1Score
	b.Team2Score = team2Score
	b.CurrentSet++
	outcome := models.ScoreCommitted
	if b.Winner() != 0 {
		b.Status = models.BattleFinished
		outcome = models.ScoreFinished
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE battles
		SET team1_score = ?, team2_score = ?, current_set = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		b.Team1Score, b.Team2Score, b.CurrentSet, b.Status, time.Now(), battleID,
	)
	if err != nil {
		return "", nil, wrapErr("update battle score", err)
	}
	if err := tx.Commit(); err != nil {
		return "", nil, wrapErr("commit score", err)
	}
	return outcome, b, nil
}

// TransitionBattle updates the battle status if the change is legal.
func (db *DB) TransitionBattle(ctx context.Context, id string, to models.BattleStatus) (*models.Battle, error) {
	b, err := db.GetBattle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransition(to) {
		return nil, &models.InvalidStateError{
			Entity: "battle " + id, From: string(b.Status), To: string(to),
		}
	}
	res, err := db.ExecContext(ctx,
		"UPDATE battles SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, time.Now(), id, b.Status,
	)
	if err != nil {
		return nil, wrapErr("transition battle", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost a race; report the now-current state.
		current, getErr := db.GetBattle(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &models.InvalidStateError{
			Entity: "battle " + id, From: string(current.Status), To: string(to),
		}
	}
	b.Status = to
	return b, nil
}
