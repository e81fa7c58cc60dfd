// Package models defines the core entities of the court booking domain.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CourtStatus gates whether a court can be booked at all.
type CourtStatus string

const (
	CourtAvailable   CourtStatus = "available"
	CourtClosed      CourtStatus = "closed"
	CourtMaintenance CourtStatus = "maintenance"
)

// Court is a bookable resource.
type Court struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Category     string      `json:"category"`
	PricePerHour float64     `json:"price_per_hour"`
	Status       CourtStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Bookable reports whether the court accepts new reservations.
func (c *Court) Bookable() bool {
	return c.Status == CourtAvailable
}

// CourtSchedule is a recurring weekly opening segment for a court.
// Times are "HH:MM" strings; DayOfWeek follows time.Weekday (Sunday = 0).
type CourtSchedule struct {
	ID          int64     `json:"id"`
	CourtID     int64     `json:"court_id"`
	DayOfWeek   int       `json:"day_of_week"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScheduleBlock removes capacity from the weekly schedule on a single date.
// Empty StartTime/EndTime means the whole day is blocked.
type ScheduleBlock struct {
	ID        int64     `json:"id"`
	CourtID   int64     `json:"court_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FullDay reports whether the block covers the entire date.
func (b *ScheduleBlock) FullDay() bool {
	return b.StartTime == "" && b.EndTime == ""
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// reservationTransitions is the closed transition table. Cancelled is terminal.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCancelled},
	ReservationCancelled: {},
}

// CanTransition checks whether a reservation status change is allowed.
func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	for _, next := range reservationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Active reports whether the reservation still occupies its slot.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// Reservation books a court for a half-open [StartTime, EndTime) interval on Date.
type Reservation struct {
	ID                 string            `json:"id"`
	CourtID            int64             `json:"court_id"`
	Date               string            `json:"date"` // YYYY-MM-DD
	StartTime          string            `json:"start_time"`
	EndTime            string            `json:"end_time"`
	Status             ReservationStatus `json:"status"`
	TotalPrice         float64           `json:"total_price"`
	ClientName         string            `json:"client_name"`
	ClientPhone        string            `json:"client_phone"`
	Notes              string            `json:"notes,omitempty"`
	AppliedPromotionID int64             `json:"applied_promotion_id,omitempty"`
	IdempotencyKey     string            `json:"idempotency_key,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Promotion adjusts the price of matching slots. Exactly one of
// DiscountPercentage or FixedPrice is set. Empty CourtID means global.
type Promotion struct {
	ID                 int64     `json:"id"`
	CourtID            int64     `json:"court_id,omitempty"` // 0 = all courts
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	DiscountPercentage float64   `json:"discount_percentage,omitempty"`
	FixedPrice         float64   `json:"fixed_price,omitempty"`
	StartDate          string    `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate            string    `json:"end_date,omitempty"`
	StartTime          string    `json:"start_time,omitempty"` // HH:MM
	EndTime            string    `json:"end_time,omitempty"`
	DaysOfWeek         []int     `json:"days_of_week,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}

// Validate enforces the mutual exclusion of the two discount forms.
func (p *Promotion) Validate() error {
	hasPct := p.DiscountPercentage > 0
	hasFixed := p.FixedPrice > 0
	if hasPct == hasFixed {
		return fmt.Errorf("promotion %q: exactly one of discount_percentage or fixed_price must be set", p.Title)
	}
	if p.DiscountPercentage < 0 || p.DiscountPercentage > 100 {
		return fmt.Errorf("promotion %q: discount_percentage out of range", p.Title)
	}
	for _, d := range p.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("promotion %q: day_of_week %d out of range", p.Title, d)
		}
	}
	return nil
}

// CourtSpecific reports whether the promotion targets a single court.
func (p *Promotion) CourtSpecific() bool {
	return p.CourtID != 0
}

// BattleStatus is the lifecycle state of a battle.
type BattleStatus string

const (
	BattleWaiting    BattleStatus = "waiting"
	BattleInProgress BattleStatus = "in_progress"
	BattleFinished   BattleStatus = "finished"
	BattleCancelled  BattleStatus = "cancelled"
)

var battleTransitions = map[BattleStatus][]BattleStatus{
	BattleWaiting:    {BattleInProgress, BattleCancelled},
	BattleInProgress: {BattleFinished, BattleCancelled},
	BattleFinished:   {},
	BattleCancelled:  {},
}

// CanTransition checks whether a battle status change is allowed.
func (s BattleStatus) CanTransition(to BattleStatus) bool {
	for _, next := range battleTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Battle is a best-of-N contest between two teams on a court.
// Team scores are cumulative set wins.
type Battle struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Modality            string       `json:"modality"`
	Format              string       `json:"format"` // "1x1", "2x2", "3x3"
	Rules               string       `json:"rules,omitempty"`
	CourtID             int64        `json:"court_id,omitempty"`
	ScheduledTime       time.Time    `json:"scheduled_time,omitempty"`
	Status              BattleStatus `json:"status"`
	MaxParticipants     int          `json:"max_participants"`
	CurrentParticipants int          `json:"current_participants"`
	Team1Score          int          `json:"team1_score"`
	Team2Score          int          `json:"team2_score"`
	CurrentSet          int          `json:"current_set"`
	BestOf              int          `json:"best_of"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// SetsToWin returns the set wins needed to finish the battle.
func (b *Battle) SetsToWin() int {
	return (b.BestOf + 1) / 2
}

// Winner returns 1 or 2 when a team has reached the required set wins, else 0.
func (b *Battle) Winner() int {
	need := b.SetsToWin()
	switch {
	case b.Team1Score >= need:
		return 1
	case b.Team2Score >= need:
		return 2
	default:
		return 0
	}
}

// ScoreOutcome is the result of one team submitting a set score.
type ScoreOutcome string

const (
	// ScorePending means the other team has not submitted yet.
	ScorePending ScoreOutcome = "pending"
	// ScoreCommitted means both teams agreed and the set was recorded.
	ScoreCommitted ScoreOutcome = "committed"
	// ScoreMismatch means the submissions disagreed; both were cleared and
	// the teams must resubmit.
	ScoreMismatch ScoreOutcome = "mismatch"
	// ScoreFinished means the committed set decided the battle.
	ScoreFinished ScoreOutcome = "finished"
)

// BattleParticipant is a player enrolled in a battle on team 1 or 2.
type BattleParticipant struct {
	ID         int64     `json:"id"`
	BattleID   string    `json:"battle_id"`
	UserID     string    `json:"user_id"`
	Team       int       `json:"team"`
	PlayerName string    `json:"player_name"`
	JoinedAt   time.Time `json:"joined_at"`
}

// ParseClock parses an "HH:MM" wall-clock string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
// Zero-padded clock strings compare correctly as plain strings, which the
// store relies on for interval queries.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a "YYYY-MM-DD" date string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// Overlaps reports whether two half-open minute intervals intersect.
// Touching endpoints do not overlap, so back-to-back bookings are fine.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
