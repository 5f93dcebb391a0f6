// Package kafka consumes the edge telemetry stream and feeds it into the
// pipeline. Delivery from the brokers is best-effort for our purposes: a
// message that fails to decode or validate is dropped and counted, never
// retried.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"fleet-monitor/realtime/internal/config"
	"fleet-monitor/realtime/internal/domain"
	"fleet-monitor/realtime/internal/metrics"
)

type Ingestor interface {
	Ingest(u *domain.TelemetryUpdate) error
}

type Consumer struct {
	reader *kafkago.Reader
	ingest Ingestor
	log    *logrus.Logger
}

func NewConsumer(cfg *config.Config, ingest Ingestor, log *logrus.Logger) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		GroupID:     cfg.KafkaConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafkago.LastOffset,
	})

	return &Consumer{reader: reader, ingest: ingest, log: log}
}

// Run reads until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.log.WithFields(logrus.Fields{
		"topic": c.reader.Config().Topic,
		"group": c.reader.Config().GroupID,
	}).Info("kafka consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			c.log.WithError(err).Error("kafka read failed")
			time.Sleep(time.Second)
			continue
		}

		var update domain.TelemetryUpdate
		if err := json.Unmarshal(msg.Value, &update); err != nil {
			metrics.TelemetryRejected.Add(1)
			c.log.WithError(err).Warn("dropping unparsable telemetry message")
			continue
		}

		if err := c.ingest.Ingest(&update); err != nil {
			c.log.WithError(err).Warn("dropping invalid telemetry message")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
