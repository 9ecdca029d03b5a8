// Package ingest consumes document events from Kafka, applies them to
// the document store and marks the engine's index stale.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/resilience"
)

// Action names what a DocumentEvent does to the store.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// DocumentEvent is the wire format of the document-ingest topic.
type DocumentEvent struct {
	Action    Action         `json:"action"`
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields,omitempty"`
	Boost     float64        `json:"boost,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Consumer applies document events from Kafka.
type Consumer struct {
	consumer *kafka.Consumer
	store    *docstore.Store
	engine   *engine.Engine
	logger   *slog.Logger
}

// New creates a Consumer reading the document-ingest topic.
func New(cfg config.KafkaConfig, store *docstore.Store, eng *engine.Engine) *Consumer {
	c := &Consumer{
		store:  store,
		engine: eng,
		logger: slog.Default().With("component", "ingest"),
	}
	c.consumer = kafka.NewConsumer(cfg, cfg.Topics.DocumentIngest, c.handle)
	return c
}

// Start runs the consume loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

func (c *Consumer) handle(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[DocumentEvent](value)
	if err != nil {
		// A malformed event will never decode; log and move on rather
		// than wedging the partition.
		c.logger.Error("dropping undecodable document event", "key", string(key), "error", err)
		return nil
	}

	// Store writes are retried: a transient database blip should not
	// surface as a processing failure for an otherwise valid event.
	switch event.Action {
	case ActionUpsert:
		doc := docstore.Document{ID: event.ID, Fields: event.Fields, Boost: event.Boost}
		err := resilience.Retry(ctx, "ingest-upsert", resilience.RetryConfig{}, func() error {
			return c.store.Put(ctx, doc)
		})
		if err != nil {
			return fmt.Errorf("applying upsert for %s: %w", event.ID, err)
		}
	case ActionDelete:
		err := resilience.Retry(ctx, "ingest-delete", resilience.RetryConfig{}, func() error {
			if err := c.store.Delete(ctx, event.ID); err != nil && !errors.Is(err, apperrors.ErrDocumentNotFound) {
				return err
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("applying delete for %s: %w", event.ID, err)
		}
	default:
		c.logger.Warn("unknown document event action", "action", event.Action, "id", event.ID)
		return nil
	}

	c.engine.MarkDirty()
	c.logger.Debug("document event applied", "action", event.Action, "id", event.ID)
	return nil
}
