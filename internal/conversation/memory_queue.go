package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a queueClient over a buffered channel, used when no SQS
// queue is configured and by the local chat command.
type MemoryQueue struct {
	ch chan queueMessage
}

// NewMemoryQueue creates a MemoryQueue holding up to buffer messages.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryQueue{ch: make(chan queueMessage, buffer)}
}

// Send enqueues body, blocking while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	msg := queueMessage{ID: uuid.NewString(), Body: body, ReceiptHandle: uuid.NewString()}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns up to maxMessages, waiting at most waitSeconds for the
// first one. Zero waits until a message arrives or ctx ends.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case first := <-q.ch:
		out := []queueMessage{first}
		for len(out) < maxMessages {
			select {
			case msg := <-q.ch:
				out = append(out, msg)
			default:
				return out, nil
			}
		}
		return out, nil
	}
}

// Delete is a no-op; a received message is already gone.
func (q *MemoryQueue) Delete(context.Context, string) error { return nil }

// Len reports how many messages are waiting.
func (q *MemoryQueue) Len() int { return len(q.ch) }
