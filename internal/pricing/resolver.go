// Package pricing computes the effective price of a slot, applying the best
// matching promotion.
package pricing

import (
	"context"
	"math"

	"quadra/internal/models"
)

// Quote is the resolved price for a slot.
type Quote struct {
	Amount      float64 `json:"amount"`
	PromotionID int64   `json:"promotion_id,omitempty"`
}

// Store provides the court and promotion reads the resolver needs.
type Store interface {
	GetCourt(ctx context.Context, id int64) (*models.Court, error)
	ListActivePromotions(ctx context.Context, courtID int64) ([]models.Promotion, error)
}

// Resolver prices slots. Price resolution is a pure function of the court,
// the interval and the active promotions at call time.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Price resolves the total for [startTime, endTime) on (courtID, date).
// Base price is price_per_hour x duration; the winning promotion then applies.
// Rounding to 2 decimals (half-up) happens once, on the final amount.
func (r *Resolver) Price(ctx context.Context, courtID int64, date, startTime, endTime string) (Quote, error) {
	court, err := r.store.GetCourt(ctx, courtID)
	if err != nil {
		return Quote{}, err
	}

	start, err := models.ParseClock(startTime)
	if err != nil {
		return Quote{}, &models.InvalidScheduleError{Reason: err.Error()}
	}
	end, err := models.ParseClock(endTime)
	if err != nil {
		return Quote{}, &models.InvalidScheduleError{Reason: err.Error()}
	}
	if start >= end {
		return Quote{}, &models.InvalidScheduleError{Reason: "start_time must be before end_time"}
	}

	hours := float64(end-start) / 60.0
	base := court.PricePerHour * hours

	promotions, err := r.store.ListActivePromotions(ctx, courtID)
	if err != nil {
		return Quote{}, err
	}

	best, ok := pickPromotion(promotions, courtID, date, start, end, base)
	if !ok {
		return Quote{Amount: round2(base)}, nil
	}
	return Quote{Amount: round2(apply(best, base)), PromotionID: best.ID}, nil
}

// pickPromotion returns the winning promotion among those matching the slot.
// Court-specific beats global; among equal specificity the lowest final price
// wins; remaining ties go to the most recently created.
func pickPromotion(promotions []models.Promotion, courtID int64, date string, start, end int, base float64) (models.Promotion, bool) {
	var best models.Promotion
	found := false
	for _, p := range promotions {
		if !matches(p, courtID, date, start, end) {
			continue
		}
		if !found {
			best = p
			found = true
			continue
		}
		if better(p, best, base) {
			best = p
		}
	}
	return best, found
}

func better(a, b models.Promotion, base float64) bool {
	if a.CourtSpecific() != b.CourtSpecific() {
		return a.CourtSpecific()
	}
	priceA, priceB := apply(a, base), apply(b, base)
	if priceA != priceB {
		return priceA < priceB
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func matches(p models.Promotion, courtID int64, date string, start, end int) bool {
	if !p.IsActive {
		return false
	}
	if p.CourtID != 0 && p.CourtID != courtID {
		return false
	}
	if p.StartDate != "" && date < p.StartDate {
		return false
	}
	if p.EndDate != "" && date > p.EndDate {
		return false
	}
	if p.StartTime != "" && p.EndTime != "" {
		ws, err1 := models.ParseClock(p.StartTime)
		we, err2 := models.ParseClock(p.EndTime)
		if err1 != nil || err2 != nil {
			return false
		}
		// The whole slot must fall inside the promotion's time window.
		if start < ws || end > we {
			return false
		}
	}
	if len(p.DaysOfWeek) > 0 {
		day, err := models.ParseDate(date)
		if err != nil {
			return false
		}
		weekday := int(day.Weekday())
		ok := false
		for _, d := range p.DaysOfWeek {
			if d == weekday {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// apply computes the discounted total. A fixed price replaces the total
// outright; a percentage discounts it.
func apply(p models.Promotion, base float64) float64 {
	if p.FixedPrice > 0 {
		return p.FixedPrice
	}
	return base * (1 - p.DiscountPercentage/100)
}

// round2 rounds half-up to 2 decimals.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
