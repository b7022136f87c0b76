// Package transport connects chat networks to the conversation queue and
// routes replies back to the network a session belongs to.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wolfman30/barber-booking-bot/internal/conversation"
)

// ErrNoTransport is returned when a reply targets a channel nobody registered.
var ErrNoTransport = errors.New("transport: no sender for channel")

// Publisher enqueues inbound customer messages.
type Publisher interface {
	Publish(ctx context.Context, msg conversation.InboundMessage) error
}

// Mux picks the sender for a session id by its channel prefix.
type Mux struct {
	mu      sync.RWMutex
	senders map[conversation.Channel]conversation.Sender
}

func NewMux() *Mux {
	return &Mux{senders: make(map[conversation.Channel]conversation.Sender)}
}

// Register installs sender for channel, replacing any earlier one.
func (m *Mux) Register(channel conversation.Channel, sender conversation.Sender) {
	if sender == nil {
		panic("transport: sender required")
	}
	m.mu.Lock()
	m.senders[channel] = sender
	m.mu.Unlock()
}

// Channels lists the registered channels.
func (m *Mux) Channels() []conversation.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]conversation.Channel, 0, len(m.senders))
	for ch := range m.senders {
		out = append(out, ch)
	}
	return out
}

func (m *Mux) SendText(ctx context.Context, sessionID, text string) error {
	channel := conversation.ChannelOf(sessionID)
	m.mu.RLock()
	sender, ok := m.senders[channel]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrNoTransport, channel)
	}
	return sender.SendText(ctx, sessionID, text)
}

var _ conversation.Sender = (*Mux)(nil)
