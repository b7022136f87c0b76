package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is the chat network a message arrived on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
	ChannelWebchat  Channel = "webchat"
	ChannelCLI      Channel = "cli"
)

// SessionKey builds the session id for a chat on a channel, for example
// "whatsapp:573001234567".
func SessionKey(channel Channel, chatID string) string {
	return string(channel) + ":" + strings.TrimSpace(chatID)
}

// ChannelOf returns the channel prefix of a session id.
func ChannelOf(sessionID string) Channel {
	channel, _, _ := strings.Cut(sessionID, ":")
	return Channel(channel)
}

// InboundMessage is one customer message waiting to be handled.
type InboundMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Channel   Channel   `json:"channel"`
	// MessageID is the network's own id, used to drop redeliveries.
	MessageID  string    `json:"message_id,omitempty"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Queue carries inbound messages from publishers to workers. MemoryQueue and
// SQSQueue implement it.
type Queue interface {
	queueClient
}

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

func encodeInbound(msg InboundMessage) (InboundMessage, string, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Channel == "" {
		msg.Channel = ChannelOf(msg.SessionID)
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return InboundMessage{}, "", fmt.Errorf("conversation: failed to encode inbound message: %w", err)
	}
	return msg, string(body), nil
}

func decodeInbound(body string) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("conversation: failed to decode inbound message: %w", err)
	}
	if strings.TrimSpace(msg.SessionID) == "" {
		return InboundMessage{}, fmt.Errorf("conversation: inbound message %q has no session id", msg.ID)
	}
	if msg.Channel == "" {
		msg.Channel = ChannelOf(msg.SessionID)
	}
	return msg, nil
}
