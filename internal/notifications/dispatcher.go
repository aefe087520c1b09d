package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"dailyshot/internal/middleware"
	"dailyshot/internal/observability"
)

// Event is the envelope written to the live feed and the winners queue.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Queue is a durable sink for winner announcements.
type Queue interface {
	Publish(ctx context.Context, eventType string, body []byte) error
}

// Dispatcher routes committed contest events. With Redis available events go through the
// shared channel so every instance's hub sees them; otherwise they go straight to the local
// hub. Winner events are also written to the queue when one is configured.
type Dispatcher struct {
	notifier *Notifier
	hub      *Hub
	queue    Queue
	now      func() time.Time
}

// NewDispatcher wires the sinks. Any of them may be nil.
func NewDispatcher(notifier *Notifier, hub *Hub, queue Queue) *Dispatcher {
	return &Dispatcher{notifier: notifier, hub: hub, queue: queue, now: time.Now}
}

// Publish delivers an event best-effort. Failures are logged and counted, never returned.
func (d *Dispatcher) Publish(ctx context.Context, eventType string, payload any) {
	body, err := json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: d.now().UTC()})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	d.deliverLive(ctx, eventType, body)

	if d.queue != nil && strings.HasPrefix(eventType, "winner_") {
		if err := d.queue.Publish(ctx, eventType, body); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to enqueue event",
				slog.String("event_type", eventType),
				slog.String("error", err.Error()),
			)
		} else {
			observability.EventsPublished.WithLabelValues(eventType, "queue").Inc()
		}
	}
}

func (d *Dispatcher) deliverLive(ctx context.Context, eventType string, body []byte) {
	if d.notifier.Enabled() {
		err := d.notifier.PublishEvent(ctx, string(body))
		if err == nil {
			observability.EventsPublished.WithLabelValues(eventType, "redis").Inc()
			return
		}
		middleware.Logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
	if d.hub != nil {
		d.hub.BroadcastAll(string(body))
		observability.EventsPublished.WithLabelValues(eventType, "hub").Inc()
	}
}
