package kafka

import (
	"context"

	"github.com/curatewise/platform/pkg/common/logger"
)

// Publisher is the event-publication contract satisfied by Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// EventRouter fans events out by type: batch summaries to the crawl topic,
// everything else to the content topic. When a publish fails and a DLQ is
// configured, the event is parked there for later replay.
type EventRouter struct {
	Content Publisher
	Crawl   Publisher
	DLQ     Publisher
}

func (r *EventRouter) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	target := r.Content
	if eventType == "crawl.completed" {
		target = r.Crawl
	}

	err := target.PublishEvent(ctx, eventType, source, data)
	if err == nil {
		return nil
	}

	logger.Log.WithError(err).WithField("event_type", eventType).Error("failed to publish event")
	if r.DLQ != nil {
		if dlqErr := r.DLQ.PublishEvent(ctx, eventType, source, data); dlqErr != nil {
			logger.Log.WithError(dlqErr).WithField("event_type", eventType).Error("failed to park event on DLQ")
		}
	}
	return err
}
