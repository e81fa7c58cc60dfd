package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservationTransitions(t *testing.T) {
	t.Run("PendingCanConfirmOrCancel", func(t *testing.T) {
		assert.True(t, ReservationPending.CanTransition(ReservationConfirmed))
		assert.True(t, ReservationPending.CanTransition(ReservationCancelled))
	})

	t.Run("ConfirmedOnlyCancels", func(t *testing.T) {
		assert.True(t, ReservationConfirmed.CanTransition(ReservationCancelled))
		assert.False(t, ReservationConfirmed.CanTransition(ReservationPending))
	})

	t.Run("CancelledIsTerminal", func(t *testing.T) {
		assert.False(t, ReservationCancelled.CanTransition(ReservationPending))
		assert.False(t, ReservationCancelled.CanTransition(ReservationConfirmed))
		assert.False(t, ReservationCancelled.CanTransition(ReservationCancelled))
	})

	t.Run("Active", func(t *testing.T) {
		assert.True(t, ReservationPending.Active())
		assert.True(t, ReservationConfirmed.Active())
		assert.False(t, ReservationCancelled.Active())
	})
}

func TestBattleTransitions(t *testing.T) {
	assert.True(t, BattleWaiting.CanTransition(BattleInProgress))
	assert.True(t, BattleWaiting.CanTransition(BattleCancelled))
	assert.False(t, BattleWaiting.CanTransition(BattleFinished))

	assert.True(t, BattleInProgress.CanTransition(BattleFinished))
	assert.True(t, BattleInProgress.CanTransition(BattleCancelled))
	assert.False(t, BattleInProgress.CanTransition(BattleWaiting))

	assert.False(t, BattleFinished.CanTransition(BattleCancelled))
	assert.False(t, BattleCancelled.CanTransition(BattleInProgress))
}

func TestParseClock(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		m, err := ParseClock("08:30")
		assert.NoError(t, err)
		assert.Equal(t, 510, m)

		m, err = ParseClock("00:00")
		assert.NoError(t, err)
		assert.Equal(t, 0, m)

		m, err = ParseClock("23:59")
		assert.NoError(t, err)
		assert.Equal(t, 1439, m)
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, s := range []string{"24:00", "12:60", "noon", "8", "08:30:00", ""} {
			_, err := ParseClock(s)
			assert.Error(t, err, s)
		}
	})

	t.Run("FormatRoundTrip", func(t *testing.T) {
		assert.Equal(t, "08:30", FormatClock(510))
		assert.Equal(t, "00:05", FormatClock(5))
		assert.Equal(t, "23:00", FormatClock(1380))
	})
}

func TestOverlaps(t *testing.T) {
	// Half-open intervals: touching endpoints do not overlap.
	assert.False(t, Overlaps(600, 660, 660, 720))
	assert.False(t, Overlaps(660, 720, 600, 660))
	assert.True(t, Overlaps(600, 720, 660, 680))
	assert.True(t, Overlaps(660, 680, 600, 720))
	assert.True(t, Overlaps(600, 670, 660, 720))
	assert.False(t, Overlaps(600, 660, 720, 780))
}

func TestPromotionValidate(t *testing.T) {
	t.Run("PercentageOnly", func(t *testing.T) {
		p := Promotion{Title: "happy hour", DiscountPercentage: 20}
		assert.NoError(t, p.Validate())
	})

	t.Run("FixedOnly", func(t *testing.T) {
		p := Promotion{Title: "flat", FixedPrice: 40}
		assert.NoError(t, p.Validate())
	})

	t.Run("BothRejected", func(t *testing.T) {
		p := Promotion{Title: "both", DiscountPercentage: 20, FixedPrice: 40}
		assert.Error(t, p.Validate())
	})

	t.Run("NeitherRejected", func(t *testing.T) {
		p := Promotion{Title: "neither"}
		assert.Error(t, p.Validate())
	})

	t.Run("BadWeekday", func(t *testing.T) {
		p := Promotion{Title: "bad day", DiscountPercentage: 10, DaysOfWeek: []int{7}}
		assert.Error(t, p.Validate())
	})
}

func TestBattleWinner(t *testing.T) {
	t.Run("BestOfThree", func(t *testing.T) {
		b := Battle{BestOf: 3}
		assert.Equal(t, 2, b.SetsToWin())

		b.Team1Score, b.Team2Score = 1, 1
		assert.Equal(t, 0, b.Winner())

		b.Team1Score = 2
		assert.Equal(t, 1, b.Winner())
	})

	t.Run("BestOfOne", func(t *testing.T) {
		b := Battle{BestOf: 1, Team2Score: 1}
		assert.Equal(t, 1, b.SetsToWin())
		assert.Equal(t, 2, b.Winner())
	})
}
