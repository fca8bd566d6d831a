// Package fetchevents publishes a one-way notification per archived fetch
// to Kafka, per §4.N. It is deliberately write-only: nothing in this
// package ever reads from the configured topic, since distributing crawl
// work over Kafka is out of scope for this core.
package fetchevents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/thkoch2001/lara/internal/model"
	"go.uber.org/zap"
)

// Event is one published fetch-event message, per §3's ambient additions.
type Event struct {
	URL        string `json:"url"`
	Authority  string `json:"authority"`
	Status     int    `json:"status"`
	Context    string `json:"context"`
	DurationMs int64  `json:"duration_ms"`
	ArchivedAt string `json:"archived_at"`
}

// FromFetchResult builds an Event from a fetch outcome.
func FromFetchResult(target, authority string, ctx model.Context, fr model.FetchResult) Event {
	return Event{
		URL:        target,
		Authority:  authority,
		Status:     fr.Status,
		Context:    ctx.String(),
		DurationMs: fr.Duration.Milliseconds(),
		ArchivedAt: fr.Start.UTC().Format(time.RFC3339),
	}
}

// Publisher batches Event writes the way the teacher's queue writer
// batches crawl messages, repurposed here for one-way completion
// notifications instead of distributable crawl jobs.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// New constructs a Publisher for brokers/topic.
func New(brokers []string, topic string, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: time.Second,
		Compression:  kafka.Snappy,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Publisher{writer: writer, logger: logger}
}

// ParseBrokers splits a comma-separated KAFKA_BROKERS value.
func ParseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Publish writes ev to the configured topic.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("fetchevents: marshaling event for %s: %w", ev.URL, err)
	}
	msg := kafka.Message{Key: []byte(ev.URL), Value: data, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("fetchevents: publishing event for %s: %w", ev.URL, err)
	}
	return nil
}

// PublishBestEffort publishes ev and logs (without returning) any failure,
// matching the crawl loop's fire-and-forget use of the publisher.
func (p *Publisher) PublishBestEffort(ctx context.Context, ev Event) {
	if err := p.Publish(ctx, ev); err != nil {
		p.logger.Warn("failed to publish fetch event", zap.String("url", ev.URL), zap.Error(err))
	}
}
