// Package kafka publishes quality-flagged observations to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/config"
	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

const defaultBatchSize = 500

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces flag messages to the configured topic.
// It implements pipeline.FlagPublisher.
type Writer struct {
	writer    messageWriter
	batchSize int
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// FlagMessage is the JSON value of a published message.
type FlagMessage struct {
	RunID       string             `json:"run_id"`
	CheckedAt   time.Time          `json:"checked_at"`
	Flags       []string           `json:"flags"`
	Observation domain.Observation `json:"observation"`
}

// NewWriter creates a Kafka producer for the configured flags topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaFlagsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, batchSize: defaultBatchSize, metrics: metrics, logger: logger}
}

// PublishFlags writes every observation carrying at least one flag, in
// batches. Clean observations are not published. It returns the number of
// messages written before any error.
func (w *Writer) PublishFlags(ctx context.Context, runID string, flagged []domain.Flagged) (int, error) {
	checkedAt := domain.Now()
	batch := make([]kafkago.Message, 0, w.batchSize)
	written := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.writer.WriteMessages(ctx, batch...); err != nil {
			w.metrics.FlagPublishErrors.Inc()
			return fmt.Errorf("write flag batch: %w", err)
		}
		written += len(batch)
		w.metrics.FlagsPublished.Add(float64(len(batch)))
		batch = batch[:0]
		return nil
	}

	for _, f := range flagged {
		if len(f.Flags) == 0 {
			continue
		}
		msg, err := serializeToMessage(runID, checkedAt, f)
		if err != nil {
			return written, err
		}
		batch = append(batch, msg)
		if len(batch) == w.batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}

	w.logger.Info("published quality flags", "run_id", runID, "messages", written)
	return written, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Flagged observation into a Kafka message
// keyed by observation ID.
func serializeToMessage(runID string, checkedAt time.Time, f domain.Flagged) (kafkago.Message, error) {
	data, err := json.Marshal(FlagMessage{
		RunID:       runID,
		CheckedAt:   checkedAt,
		Flags:       f.Flags,
		Observation: f.Observation,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize flagged observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(f.Observation.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "protocol", Value: []byte(f.Observation.Protocol)},
			{Key: "flags", Value: []byte(strings.Join(f.Flags, ","))},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
