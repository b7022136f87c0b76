package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// Publisher hands inbound chat messages to the worker queue. Transports
// call it from their receive loops and return immediately.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Publish enqueues msg. Messages without text are dropped silently.
func (p *Publisher) Publish(ctx context.Context, msg InboundMessage) error {
	if strings.TrimSpace(msg.SessionID) == "" {
		return errors.New("conversation: inbound message needs a session id")
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	msg, body, err := encodeInbound(msg)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue message: %w", err)
	}
	p.logger.Debug("inbound message enqueued", "id", msg.ID, "session_id", msg.SessionID, "channel", string(msg.Channel))
	return nil
}
