package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

// Publisher enqueues events for the workers so request handlers never wait on
// email or SMS providers.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Notify encodes evt and sends it to the queue.
func (p *Publisher) Notify(ctx context.Context, evt Event) error {
	evt, body, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("notify: enqueue event: %w", err)
	}
	p.logger.Debug("notification event enqueued", "event_id", evt.ID, "kind", string(evt.Kind), "tenant_id", evt.TenantID)
	return nil
}
