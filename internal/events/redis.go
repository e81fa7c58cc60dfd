package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisSink republishes domain events to a Redis channel so external viewers
// (live court and battle screens) can follow along. Delivery is best-effort;
// the core never blocks on it.
type RedisSink struct {
	client  *redis.Client
	channel string
	logger  *zerolog.Logger
}

// NewRedisSink creates a sink publishing to the given channel.
func NewRedisSink(client *redis.Client, channel string, logger *zerolog.Logger) *RedisSink {
	if channel == "" {
		channel = "quadra.events"
	}
	return &RedisSink{client: client, channel: channel, logger: logger}
}

// Attach subscribes the sink to every domain event type on the bus.
func (s *RedisSink) Attach(bus *EventBus) {
	types := []string{
		ReservationCreated, ReservationConfirmed, ReservationCancelled,
		BattleJoined, BattleLeft, BattleStarted,
		BattleSetCommitted, BattleScoreMismatch, BattleFinished, BattleCancelled,
	}
	for _, t := range types {
		bus.Subscribe(t, s.handle)
	}
}

type wireEvent struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *RedisSink) handle(event Event) error {
	data, err := json.Marshal(wireEvent{
		Type:      event.Type,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Msg("redis event publish failed")
		return err
	}
	return nil
}
