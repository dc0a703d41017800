// Package dispatch consumes notarization jobs from Kafka and hands them to
// the orchestrator. Delivery is at-least-once: an offset is committed only
// after its job was handled, so a crash mid-job leads to a redelivery, never
// to a silently dropped job.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/dmitrijs2005/absnotary/internal/logging"
	"github.com/dmitrijs2005/absnotary/internal/worker/metrics"
)

// Job is one notarization request on the wire. Kind is advisory; the
// orchestrator reads the authoritative kind from the document record.
type Job struct {
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind,omitempty"`
}

// Processor is the orchestration entry point the consumer drives.
type Processor interface {
	Process(ctx context.Context, docID string) error
}

// Consumer reads jobs from one topic and processes them sequentially.
type Consumer struct {
	reader    *kafka.Reader
	processor Processor
	metrics   *metrics.Metrics
	logger    logging.Logger
}

func NewConsumer(brokers []string, topic, group string, processor Processor, m *metrics.Metrics, logger logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1e3,
		MaxBytes:    1e6,
		StartOffset: kafka.LastOffset,
	})

	return &Consumer{
		reader:    r,
		processor: processor,
		metrics:   m,
		logger:    logger.With("component", "dispatch", "topic", topic),
	}
}

// Start enters the consume loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info(ctx, "consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info(ctx, "consumer stopping", "reason", ctx.Err().Error())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Error(ctx, "failed to fetch message", "error", err.Error())
			continue
		}

		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error(ctx, "failed to commit message", "offset", msg.Offset, "error", err.Error())
		}
	}
}

// handle processes one message. Every handled outcome is committed by the
// caller: a failed job has already been recorded as ERROR on the document
// by the orchestrator, and re-triggering it is an explicit user action, not
// a broker redelivery.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil || job.DocumentID == "" {
		c.logger.Error(ctx, "invalid job message", "offset", msg.Offset, "error", decodeErr(err))
		c.count("invalid")
		return
	}

	log := c.logger.With("doc_id", job.DocumentID)
	if err := c.processor.Process(ctx, job.DocumentID); err != nil {
		log.Error(ctx, "notarization job failed", "error", err.Error())
		c.count("failed")
		return
	}

	c.count("ok")
}

func (c *Consumer) count(result string) {
	if c.metrics != nil {
		c.metrics.JobsConsumedTotal.WithLabelValues(result).Inc()
	}
}

func decodeErr(err error) string {
	if err == nil {
		return "missing document_id"
	}
	return fmt.Sprintf("decode: %v", err)
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
