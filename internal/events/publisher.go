package events

import (
	"context"

	"autopilot/internal/adapters/kafka"
	"autopilot/internal/domain/action"
	"autopilot/pkg/logger"
)

// ActionRecordedEvent is the analytics envelope for one persisted ledger row
type ActionRecordedEvent struct {
	ActionID     string   `json:"actionId"`
	InvestmentID string   `json:"investmentId"`
	UserID       string   `json:"userId"`
	ActionType   string   `json:"actionType"`
	Pool         string   `json:"pool"`
	Amount       string   `json:"amount"`
	Status       string   `json:"status"`
	TxHash       *string  `json:"txHash,omitempty"`
	ExpectedApy  *float64 `json:"expectedApy,omitempty"`
}

// Publisher publishes ledger events to Kafka. Publication is best effort:
// a broker failure is logged and never fails the write path.
type Publisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

// NewPublisher creates a new ledger event publisher.
// A nil producer disables publication entirely.
func NewPublisher(producer *kafka.Producer, topic string, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		log:      log,
	}
}

// PublishActionRecorded publishes a persisted agent action
func (p *Publisher) PublishActionRecorded(ctx context.Context, a *action.Action) {
	if p == nil || p.producer == nil {
		return
	}

	event := ActionRecordedEvent{
		ActionID:     a.ID.String(),
		InvestmentID: a.InvestmentID.String(),
		UserID:       a.UserID,
		ActionType:   a.Type,
		Pool:         a.PoolKey(),
		Amount:       a.Amount,
		Status:       a.Status,
		TxHash:       a.TxHash,
		ExpectedApy:  a.ExpectedApyAfter,
	}

	if err := p.producer.Publish(ctx, p.topic, a.InvestmentID.String(), event); err != nil {
		p.log.Warnw("Failed to publish action event",
			"action_id", a.ID,
			"error", err,
		)
	}
}
