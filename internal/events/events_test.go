package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	t.Run("DeliversToSubscribers", func(t *testing.T) {
		bus := NewEventBus()
		var got []Event
		bus.Subscribe(ReservationCreated, func(e Event) error {
			got = append(got, e)
			return nil
		})

		err := bus.PublishJSON(ReservationCreated, map[string]string{"id": "r1"})
		assert.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, ReservationCreated, got[0].Type)
		assert.False(t, got[0].CreatedAt.IsZero())

		var payload map[string]string
		assert.NoError(t, json.Unmarshal(got[0].Payload, &payload))
		assert.Equal(t, "r1", payload["id"])
	})

	t.Run("OtherTypesNotDelivered", func(t *testing.T) {
		bus := NewEventBus()
		calls := 0
		bus.Subscribe(BattleFinished, func(Event) error {
			calls++
			return nil
		})

		bus.Publish(Event{Type: ReservationCancelled})
		assert.Zero(t, calls)
	})

	t.Run("AllSubscribersRunDespiteErrors", func(t *testing.T) {
		bus := NewEventBus()
		calls := 0
		bus.Subscribe(BattleJoined, func(Event) error {
			calls++
			return assert.AnError
		})
		bus.Subscribe(BattleJoined, func(Event) error {
			calls++
			return nil
		})

		bus.Publish(Event{Type: BattleJoined})
		assert.Equal(t, 2, calls)
	})

	t.Run("UnmarshalablePayloadFails", func(t *testing.T) {
		bus := NewEventBus()
		err := bus.PublishJSON(BattleStarted, make(chan int))
		assert.Error(t, err)
	})
}
