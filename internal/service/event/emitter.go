package event

import (
	"context"

	"github.com/jwalitptl/clinic-queue-api/pkg/logger"
	"github.com/jwalitptl/clinic-queue-api/pkg/messaging"
	"github.com/jwalitptl/clinic-queue-api/pkg/metrics"
)

// Emitter publishes domain events to scoped channels. Publishing is
// fire-and-forget: a failed or slow publish never fails the state
// transition that produced it.
type Emitter struct {
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewEmitter(broker messaging.Broker, logger *logger.Logger, metrics *metrics.Metrics) *Emitter {
	return &Emitter{
		broker:  broker,
		logger:  logger,
		metrics: metrics,
	}
}

// Emit publishes one event to one channel. Errors are logged and counted,
// never returned.
func (e *Emitter) Emit(ctx context.Context, channel, topic string, payload interface{}) {
	msg := messaging.Message{
		Type:    topic,
		Payload: payload,
	}
	if err := e.broker.Publish(ctx, channel, msg); err != nil {
		e.logger.Error(err, "failed to publish event", "topic", topic, "channel", channel)
		if e.metrics != nil {
			e.metrics.EventPublishFailures.WithLabelValues(topic).Inc()
		}
		return
	}
	if e.metrics != nil {
		e.metrics.EventsPublished.WithLabelValues(topic).Inc()
	}
}
