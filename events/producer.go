package events

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TopicEstimates carries one event per completed cost comparison, for
// analytics consumers. Nothing in the request path depends on it.
const TopicEstimates = "tripgenie.estimates"

const publishTimeout = 5 * time.Second

// EstimateCompletedEvent is the payload published after a comparison run.
type EstimateCompletedEvent struct {
	SearchID     string    `json:"search_id"`
	Destinations int       `json:"destinations"`
	Travelers    int       `json:"travelers"`
	Days         int       `json:"days"`
	Cheapest     string    `json:"cheapest"`
	CheapestCost float64   `json:"cheapest_cost"`
	Source       string    `json:"source"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Producer publishes estimate events to Kafka. A nil Producer is a valid
// no-op, used when no brokers are configured.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a producer for the given brokers. Returns nil when
// brokers is empty.
func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        TopicEstimates,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		logger: logger,
	}
}

// PublishEstimateCompleted sends the event in a background goroutine. The
// caller has already responded to the user; a failed publish is only
// logged.
func (p *Producer) PublishEstimateCompleted(evt EstimateCompletedEvent) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		value, err := json.Marshal(evt)
		if err != nil {
			p.logger.Error("failed to marshal estimate event", zap.Error(err))
			return
		}

		msg := kafka.Message{
			Key:   []byte(evt.SearchID),
			Value: value,
		}
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.logger.Warn("failed to publish estimate event",
				zap.String("search_id", evt.SearchID),
				zap.Error(err))
			return
		}
		p.logger.Debug("published estimate event", zap.String("search_id", evt.SearchID))
	}()
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
