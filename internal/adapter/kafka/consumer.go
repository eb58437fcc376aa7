// Package kafka ingests measurement row batches from a Kafka topic into the
// row store. Each message carries one batch for a single dataset.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ocean-map-engine/internal/config"
	"github.com/couchcryptid/ocean-map-engine/internal/domain"
	"github.com/couchcryptid/ocean-map-engine/internal/observability"
	"github.com/couchcryptid/ocean-map-engine/internal/rowset"
)

// rowBatch is the wire format of an ingest message.
type rowBatch struct {
	Area       string       `json:"area"`
	Model      string       `json:"model"`
	SourceFile string       `json:"source_file"`
	Rows       []domain.Row `json:"rows"`
}

// messageReader abstracts the kafka-go reader for testing.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads row batches from the ingest topic and appends them to the
// store. Malformed messages are counted, committed, and skipped so one bad
// producer cannot stall the partition.
type Consumer struct {
	reader  messageReader
	store   *rowset.Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewConsumer creates a Consumer for the configured ingest topic.
func NewConsumer(cfg *config.Config, store *rowset.Store, logger *slog.Logger, metrics *observability.Metrics) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
	})
	return &Consumer{reader: r, store: store, logger: logger, metrics: metrics}
}

// Run consumes messages until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("kafka consumer stopping")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) {
	key, rows, err := decodeBatch(msg.Value)
	if err != nil {
		c.logger.Warn("skipping malformed ingest message",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		c.metrics.IngestErrors.Inc()
		c.commit(ctx, msg)
		return
	}

	version := c.store.Append(key, rows)
	c.metrics.RowsIngested.Add(float64(len(rows)))
	c.logger.Debug("ingested row batch",
		"area", key.Area, "model", key.Model, "rows", len(rows), "version", version)
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Warn("commit offset failed", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// decodeBatch parses an ingest message and tags every row with its dataset
// identity and source file so downstream products can report provenance.
func decodeBatch(value []byte) (rowset.Key, []domain.Row, error) {
	var batch rowBatch
	if err := json.Unmarshal(value, &batch); err != nil {
		return rowset.Key{}, nil, fmt.Errorf("decode row batch: %w", err)
	}
	if batch.Area == "" || batch.Model == "" {
		return rowset.Key{}, nil, errors.New("row batch missing area or model")
	}
	if len(batch.Rows) == 0 {
		return rowset.Key{}, nil, errors.New("row batch has no rows")
	}

	key := rowset.Key{Area: batch.Area, Model: batch.Model}
	for _, row := range batch.Rows {
		row[domain.KeyArea] = batch.Area
		row[domain.KeyModel] = batch.Model
		if batch.SourceFile != "" {
			row[domain.KeySourceFile] = batch.SourceFile
		}
	}
	return key, batch.Rows, nil
}
