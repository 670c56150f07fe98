package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventCircuitRejected   EventType = "circuit_rejected"
	EventResponseCompleted EventType = "response_completed"
	EventClientError       EventType = "client_error"
)

// Client error reasons.
const (
	ReasonNoRoute        = "no_route"
	ReasonBodyTooLarge   = "body_too_large"
	ReasonUnknownService = "unknown_service"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Service    string
	Reason     string
	ErrorKind  string
	Duration   time.Duration
	StatusCode int
}

// Collector funnels metric events from request handlers into the metrics
// store through a buffered channel, keeping the hot path free of the store's
// lock. Senders must never block: use a select with a default branch.
type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests(event.Service)

	case EventCircuitRejected:
		c.metrics.IncrementCircuitRejections(event.Service)

	case EventResponseCompleted:
		c.metrics.RecordOutcome(event.Service, event.Duration, event.StatusCode, event.ErrorKind)

	case EventClientError:
		c.metrics.IncrementClientErrors(event.Reason)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
