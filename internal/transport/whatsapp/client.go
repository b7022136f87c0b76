// Package whatsapp links the bot to a WhatsApp account through the
// multi-device web protocol.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/wolfman30/barber-booking-bot/internal/conversation"
	"github.com/wolfman30/barber-booking-bot/internal/transport"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// Config controls the device store and pairing output.
type Config struct {
	// DBPath is the sqlite file holding the linked device keys.
	DBPath string
	// QROut receives the pairing QR code. Defaults to stdout.
	QROut io.Writer
	Debug bool
}

// Client wraps a whatsmeow client.
type Client struct {
	wa        *whatsmeow.Client
	container *sqlstore.Container
	publisher transport.Publisher
	logger    *logging.Logger
	qrOut     io.Writer
}

// New opens the device store and prepares a client. Call Start to connect.
func New(ctx context.Context, cfg Config, publisher transport.Publisher, logger *logging.Logger) (*Client, error) {
	if publisher == nil {
		panic("whatsapp: publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "whatsapp.db"
	}
	if cfg.QROut == nil {
		cfg.QROut = os.Stdout
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", cfg.DBPath)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, newWALogger(logger, "whatsapp.store", cfg.Debug))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: open store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("whatsapp: load device: %w", err)
	}

	c := &Client{
		wa:        whatsmeow.NewClient(device, newWALogger(logger, "whatsapp.client", cfg.Debug)),
		container: container,
		publisher: publisher,
		logger:    logger,
		qrOut:     cfg.QROut,
	}
	c.wa.AddEventHandler(c.handleEvent)
	return c, nil
}

// Start connects, printing a QR code first when no device is paired yet.
func (c *Client) Start(ctx context.Context) error {
	if c.wa.Store.ID != nil {
		if err := c.wa.Connect(); err != nil {
			return fmt.Errorf("whatsapp: connect: %w", err)
		}
		return nil
	}

	qrChan, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp: qr channel: %w", err)
	}
	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connect: %w", err)
	}
	for item := range qrChan {
		switch item.Event {
		case "code":
			c.logger.Info("whatsapp: scan the QR code to link the device")
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, c.qrOut)
		case "success":
			c.logger.Info("whatsapp: device linked")
			return nil
		case "timeout":
			return errors.New("whatsapp: pairing timed out")
		default:
			if item.Error != nil {
				return fmt.Errorf("whatsapp: pairing: %w", item.Error)
			}
		}
	}
	return nil
}

// Close disconnects and releases the device store.
func (c *Client) Close() error {
	c.wa.Disconnect()
	return c.container.Close()
}

func (c *Client) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		msg, ok := inboundFromEvent(v)
		if !ok {
			return
		}
		if err := c.publisher.Publish(context.Background(), msg); err != nil {
			c.logger.Error("whatsapp: failed to enqueue message", "error", err, "session_id", msg.SessionID)
		}
	case *events.Connected:
		c.logger.Info("whatsapp: connected")
	case *events.Disconnected:
		c.logger.Warn("whatsapp: disconnected")
	case *events.LoggedOut:
		c.logger.Error("whatsapp: device logged out, pairing required", "reason", v.Reason)
	}
}

// inboundFromEvent keeps one-to-one text messages from other people.
func inboundFromEvent(evt *events.Message) (conversation.InboundMessage, bool) {
	if evt == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return conversation.InboundMessage{}, false
	}
	if evt.Info.Chat.Server == types.BroadcastServer {
		return conversation.InboundMessage{}, false
	}
	text := strings.TrimSpace(messageText(evt.Message))
	if text == "" {
		return conversation.InboundMessage{}, false
	}
	return conversation.InboundMessage{
		SessionID:  SessionID(evt.Info.Chat),
		Channel:    conversation.ChannelWhatsApp,
		MessageID:  string(evt.Info.ID),
		Text:       text,
		ReceivedAt: evt.Info.Timestamp.UTC(),
	}, true
}

func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if text := m.GetConversation(); text != "" {
		return text
	}
	return m.GetExtendedTextMessage().GetText()
}

// SessionID builds the session id for a chat JID, for example
// "whatsapp:573001112233@s.whatsapp.net".
func SessionID(chat types.JID) string {
	return conversation.SessionKey(conversation.ChannelWhatsApp, chat.ToNonAD().String())
}

func jidOf(sessionID string) (types.JID, error) {
	raw := strings.TrimPrefix(sessionID, string(conversation.ChannelWhatsApp)+":")
	if !strings.Contains(raw, "@") {
		raw = types.NewJID(raw, types.DefaultUserServer).String()
	}
	jid, err := types.ParseJID(raw)
	if err != nil {
		return types.JID{}, fmt.Errorf("whatsapp: bad session id %q: %w", sessionID, err)
	}
	return jid, nil
}

func (c *Client) SendText(ctx context.Context, sessionID, text string) error {
	jid, err := jidOf(sessionID)
	if err != nil {
		return err
	}
	if _, err := c.wa.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)}); err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	return nil
}

var _ conversation.Sender = (*Client)(nil)
