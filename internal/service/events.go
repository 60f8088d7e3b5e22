package service

import (
	"encoding/json"
	"time"

	"sitegen/internal/model"
)

// EventTopics names the Kafka topics domain events go to. An empty topic
// disables that event.
type EventTopics struct {
	WebsiteGenerated string
	Settlement       string
}

// NewOutboxMessage serialises ev for topic. It returns nil when topic is
// empty.
func NewOutboxMessage(topic string, ev model.Event) *model.OutboxMessage {
	if topic == "" {
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	key := ev.WebsiteID
	if key == "" {
		key = ev.UserID
	}
	return &model.OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
}
