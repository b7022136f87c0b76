package conversation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

func TestPublisher_PublishEncodesInbound(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, logging.Default())

	err := publisher.Publish(context.Background(), InboundMessage{
		SessionID: SessionKey(ChannelTelegram, "42"),
		MessageID: "tg-7",
		Text:      "hola",
	})
	if err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(queue.sent))
	}

	var msg InboundMessage
	if err := json.Unmarshal([]byte(queue.sent[0]), &msg); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if msg.ID == "" {
		t.Fatalf("expected generated id")
	}
	if msg.Channel != ChannelTelegram {
		t.Fatalf("expected channel derived from session id, got %s", msg.Channel)
	}
	if msg.ReceivedAt.IsZero() {
		t.Fatalf("expected received timestamp")
	}
}

func TestPublisher_SkipsBlankText(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, logging.Default())

	if err := publisher.Publish(context.Background(), InboundMessage{SessionID: "webchat:a", Text: "   "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queue.sent) != 0 {
		t.Fatalf("expected nothing enqueued, got %d", len(queue.sent))
	}
	if err := publisher.Publish(context.Background(), InboundMessage{Text: "hola"}); err == nil {
		t.Fatalf("expected error for missing session id")
	}
}

type stubQueue struct {
	sent []string
}

func (s *stubQueue) Send(ctx context.Context, body string) error {
	s.sent = append(s.sent, body)
	return nil
}

func (s *stubQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	return nil, context.Canceled
}

func (s *stubQueue) Delete(ctx context.Context, receiptHandle string) error {
	return nil
}
