// Package telegram runs the Telegram long-polling transport.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/wolfman30/barber-booking-bot/internal/conversation"
	"github.com/wolfman30/barber-booking-bot/internal/transport"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

// Bot forwards private text messages to the queue and sends replies back.
type Bot struct {
	api       botAPI
	publisher transport.Publisher
	logger    *logging.Logger
	timeout   int
}

// New connects to the Bot API with token.
func New(token string, publisher transport.Publisher, logger *logging.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return newBot(api, publisher, logger), nil
}

func newBot(api botAPI, publisher transport.Publisher, logger *logging.Logger) *Bot {
	if api == nil {
		panic("telegram: api required")
	}
	if publisher == nil {
		panic("telegram: publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Bot{api: api, publisher: publisher, logger: logger, timeout: 60}
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := inboundFromUpdate(update)
			if !ok {
				continue
			}
			if err := b.publisher.Publish(ctx, msg); err != nil {
				b.logger.Error("telegram: failed to enqueue message", "error", err, "session_id", msg.SessionID)
			}
		}
	}
}

// inboundFromUpdate keeps private text messages. /start maps to a greeting.
func inboundFromUpdate(update tgbotapi.Update) (conversation.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.Chat == nil || !m.Chat.IsPrivate() {
		return conversation.InboundMessage{}, false
	}
	text := strings.TrimSpace(m.Text)
	if m.IsCommand() {
		switch m.Command() {
		case "start", "menu":
			text = "hola"
		default:
			return conversation.InboundMessage{}, false
		}
	}
	if text == "" {
		return conversation.InboundMessage{}, false
	}
	received := time.Unix(int64(m.Date), 0).UTC()
	return conversation.InboundMessage{
		SessionID:  SessionID(m.Chat.ID),
		Channel:    conversation.ChannelTelegram,
		MessageID:  strconv.Itoa(m.MessageID),
		Text:       text,
		ReceivedAt: received,
	}, true
}

// SessionID builds the session id for a Telegram chat.
func SessionID(chatID int64) string {
	return conversation.SessionKey(conversation.ChannelTelegram, strconv.FormatInt(chatID, 10))
}

func chatIDOf(sessionID string) (int64, error) {
	raw := strings.TrimPrefix(sessionID, string(conversation.ChannelTelegram)+":")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: bad session id %q", sessionID)
	}
	return id, nil
}

func (b *Bot) SendText(_ context.Context, sessionID, text string) error {
	chatID, err := chatIDOf(sessionID)
	if err != nil {
		return err
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

var _ conversation.Sender = (*Bot)(nil)
