package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/metrics"
)

// BatchPublisher writes a batch of events in one call.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers prediction events on a channel and publishes them in
// batches, when a batch fills or the flush interval passes. Track never
// blocks the request path; a full buffer drops the event.
type Collector struct {
	publisher     BatchPublisher
	eventCh       chan PredictionEvent
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewCollector creates a Collector. m may be nil.
func NewCollector(publisher BatchPublisher, bufferSize, batchSize int, flushInterval time.Duration, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan PredictionEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		metrics:       m,
		logger:        slog.Default().With("component", "audit-collector"),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. The loop outlives ctx: events tracked by
// requests still in flight during shutdown are published until Close, which
// flushes whatever is buffered. ctx only carries values to the publisher.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	base := context.WithoutCancel(ctx)
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event := <-c.eventCh:
				batch = append(batch, toKafka(event))
				if len(batch) >= c.batchSize {
					c.flushWithin(base, batch)
					batch = make([]kafka.Event, 0, c.batchSize)
				}
			case <-ticker.C:
				c.flushWithin(base, batch)
				batch = make([]kafka.Event, 0, c.batchSize)
			case <-c.stop:
				c.flushWithin(base, c.drain(batch))
				return
			}
		}
	}()
	c.logger.Info("audit collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues one event. After Close the event is dropped.
func (c *Collector) Track(event PredictionEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.count("dropped")
		c.logger.Warn("audit event dropped (collector closed)", "prediction_id", event.PredictionID)
		return
	}
	select {
	case c.eventCh <- event:
		c.count("tracked")
	default:
		c.count("dropped")
		c.logger.Warn("audit event dropped (buffer full)", "prediction_id", event.PredictionID)
	}
}

// Close stops accepting events and waits for the final flush. It is safe to
// call more than once.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	started := c.started
	close(c.stop)
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, toKafka(event))
		default:
			return batch
		}
	}
}

func (c *Collector) flushWithin(base context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(base, 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("audit batch publish failed", "batch_size", len(batch), "error", err)
		c.add("publish_failed", len(batch))
		return
	}
	c.add("published", len(batch))
	c.logger.Debug("audit batch published", "events", len(batch))
}

func (c *Collector) count(stage string) { c.add(stage, 1) }

func (c *Collector) add(stage string, n int) {
	if c.metrics != nil {
		c.metrics.AuditEventsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

func toKafka(event PredictionEvent) kafka.Event {
	return kafka.Event{Key: event.PredictionID, Type: EventPrediction, Value: event}
}
