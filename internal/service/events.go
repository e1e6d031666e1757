package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/tasktracker/pkg/logging"
)

const (
	TopicUserEvents = "user_events"
	TopicTaskEvents = "task_events"
)

const publishTimeout = 5 * time.Second

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, any) error { return nil }

type Event struct {
	Type     string    `json:"type"`
	UserID   uint      `json:"user_id"`
	Username string    `json:"username,omitempty"`
	TaskID   uint      `json:"task_id,omitempty"`
	ActorID  uint      `json:"actor_id,omitempty"`
	At       time.Time `json:"at"`
}

// publish is best effort: a broker outage is logged and never fails the caller.
func publish(ctx context.Context, p Publisher, topic string, ev Event) {
	if p == nil {
		return
	}
	ev.At = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.PublishEvent(ctx, topic, fmt.Sprint(ev.UserID), ev); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "topic", topic, "type", ev.Type, "error", err)
	}
}
