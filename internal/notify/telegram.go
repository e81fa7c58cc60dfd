// Package notify pushes booking and battle events to the managers' Telegram
// chat and reminds clients about next-day reservations.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"quadra/internal/events"
	"quadra/internal/models"
)

// Sender is the Telegram client surface used by the notifier.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ReservationLister loads the reservations the reminder loop announces.
type ReservationLister interface {
	ListReservationsByDateRange(ctx context.Context, from, to string) ([]models.Reservation, error)
}

// Notifier forwards domain events to a manager chat. Sends go through a token
// bucket so a burst of bookings cannot trip Telegram's flood limits.
type Notifier struct {
	bot         Sender
	store       ReservationLister
	managerChat int64
	limiter     *rate.Limiter
	logger      *zerolog.Logger
}

// NewNotifier builds a notifier. ratePerSec and burst fall back to Telegram's
// documented bot limits when zero.
func NewNotifier(bot Sender, store ReservationLister, managerChat int64, ratePerSec float64, burst int, logger *zerolog.Logger) *Notifier {
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	if burst <= 0 {
		burst = 30
	}
	return &Notifier{
		bot:         bot,
		store:       store,
		managerChat: managerChat,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), burst),
		logger:      logger,
	}
}

// Attach subscribes the notifier to the events managers care about.
func (n *Notifier) Attach(bus *events.EventBus) {
	bus.Subscribe(events.ReservationCreated, n.onReservation("Nova reserva"))
	bus.Subscribe(events.ReservationCancelled, n.onReservation("Reserva cancelada"))
	bus.Subscribe(events.BattleStarted, n.onBattle("Batalha iniciada"))
	bus.Subscribe(events.BattleFinished, n.onBattle("Batalha encerrada"))
}

func (n *Notifier) onReservation(title string) events.EventHandler {
	return func(event events.Event) error {
		var r models.Reservation
		if err := json.Unmarshal(event.Payload, &r); err != nil {
			return err
		}
		text := fmt.Sprintf("%s: quadra %d, %s %s-%s, %s (R$ %.2f)",
			title, r.CourtID, r.Date, r.StartTime, r.EndTime, r.ClientName, r.TotalPrice)
		return n.send(text)
	}
}

func (n *Notifier) onBattle(title string) events.EventHandler {
	return func(event events.Event) error {
		var b models.Battle
		if err := json.Unmarshal(event.Payload, &b); err != nil {
			return err
		}
		text := fmt.Sprintf("%s: %s (%s), sets %d x %d",
			title, b.Name, b.Format, b.Team1Score, b.Team2Score)
		return n.send(text)
	}
}

func (n *Notifier) send(text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.managerChat, text)); err != nil {
		n.logger.Warn().Err(err).Msg("telegram send failed")
		return err
	}
	return nil
}

// StartReminders announces next-day reservations once a day. It waits until
// the next 09:00 local time, then ticks every 24 hours until ctx ends.
func (n *Notifier) StartReminders(ctx context.Context) {
	go func() {
		timer := time.NewTimer(timeUntilNextHour(9))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				n.sendTomorrowReminders(ctx)
				timer.Reset(24 * time.Hour)
			}
		}
	}()
}

func (n *Notifier) sendTomorrowReminders(ctx context.Context) {
	tomorrow := time.Now().Add(24 * time.Hour).Format("2006-01-02")

	reservations, err := n.store.ListReservationsByDateRange(ctx, tomorrow, tomorrow)
	if err != nil {
		n.logger.Error().Err(err).Msg("reminder: list reservations")
		return
	}

	for _, r := range reservations {
		if !r.Status.Active() {
			continue
		}
		text := fmt.Sprintf("Lembrete: amanhã %s tem reserva na quadra %d, %s-%s (%s).",
			r.ClientName, r.CourtID, r.StartTime, r.EndTime, r.Status)
		if err := n.send(text); err != nil {
			n.logger.Warn().Err(err).Str("reservation_id", r.ID).Msg("reminder send failed")
		}
	}
}

func timeUntilNextHour(hour int) time.Duration {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
