package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/config"
	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// LoadEvent is the notification published for one loaded table.
type LoadEvent struct {
	RunID string    `json:"run_id"`
	Table string    `json:"table"`
	Rows  int       `json:"rows"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Publisher announces finished loads on a Kafka topic.
// It implements pipeline.Notifier.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured notification topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish sends one message per table load in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, runID string, w domain.Window, loads []domain.TableLoad) error {
	if len(loads) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(loads))
	for i, l := range loads {
		msg, err := serializeToMessage(LoadEvent{RunID: runID, Table: l.Table, Rows: l.Rows, Start: w.Start, End: w.End})
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish load events: %w", err)
	}
	p.logger.Info("load events published", "run_id", runID, "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a LoadEvent into a Kafka message keyed by table.
func serializeToMessage(event LoadEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize load event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Table),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(event.RunID)},
			{Key: "window_end", Value: []byte(event.End.Format(time.RFC3339))},
		},
	}, nil
}
