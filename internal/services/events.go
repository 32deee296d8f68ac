package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// EventQueue is the Redis list that downstream consumers (notifications,
// payouts to external rails) read engine events from.
const EventQueue = "submission_events"

const (
	EventTaskLocked         = "task.locked"
	EventTaskReleased       = "task.released"
	EventSubmissionApproved = "submission.approved"
	EventSubmissionRejected = "submission.rejected"
	EventAccountPromoted    = "account.promoted"
	EventWithdrawal         = "wallet.withdrawal"
)

type Event struct {
	Type         string    `json:"type"`
	AccountID    string    `json:"account_id"`
	TaskID       int64     `json:"task_id,omitempty"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers events after the unit of work that produced them has
// committed. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type RedisPublisher struct {
	redis *redis.Client
	queue string
	log   logrus.FieldLogger
}

// NewRedisPublisher returns a publisher backed by client, or a no-op one
// when client is nil.
func NewRedisPublisher(client *redis.Client, log logrus.FieldLogger) Publisher {
	if client == nil {
		return NopPublisher{}
	}
	return &RedisPublisher{redis: client, queue: EventQueue, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Error("[EVENTS] encode failed")
		return
	}
	if err := p.redis.RPush(ctx, p.queue, data).Err(); err != nil {
		p.log.WithError(err).WithField("type", event.Type).Warn("[EVENTS] publish failed")
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
