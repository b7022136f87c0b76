package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/barber-booking-bot/internal/calendar"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// ChatSender pushes a text to a chat session. The transport mux satisfies it.
type ChatSender interface {
	SendText(ctx context.Context, sessionID, text string) error
}

// AuthAlerter tells the shop owner that the calendar credentials expired.
// Alerts are debounced so a burst of failing turns sends one message.
type AuthAlerter struct {
	email       EmailSender
	to          string
	chat        ChatSender
	chatSession string
	business    string
	interval    time.Duration
	logger      *logging.Logger
	now         func() time.Time

	mu   sync.Mutex
	last time.Time
}

// AlertOption configures an AuthAlerter.
type AlertOption func(*AuthAlerter)

// WithEmail sends alerts to the given address.
func WithEmail(sender EmailSender, to string) AlertOption {
	return func(a *AuthAlerter) {
		a.email = sender
		a.to = to
	}
}

// WithChat also sends alerts as a chat message to sessionID.
func WithChat(sender ChatSender, sessionID string) AlertOption {
	return func(a *AuthAlerter) {
		a.chat = sender
		a.chatSession = sessionID
	}
}

// WithInterval sets the minimum gap between two alerts.
func WithInterval(d time.Duration) AlertOption {
	return func(a *AuthAlerter) {
		if d > 0 {
			a.interval = d
		}
	}
}

func WithBusiness(name string) AlertOption {
	return func(a *AuthAlerter) {
		if name != "" {
			a.business = name
		}
	}
}

func NewAuthAlerter(logger *logging.Logger, opts ...AlertOption) *AuthAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	a := &AuthAlerter{
		business: "la barbería",
		interval: time.Hour,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuthExpired sends the alert unless one went out within the interval.
func (a *AuthAlerter) AuthExpired(ctx context.Context, cause error) {
	if a == nil {
		return
	}
	if !a.claim() {
		a.logger.Debug("auth alert suppressed", "error", cause)
		return
	}
	if err := a.send(ctx, cause); err != nil {
		a.logger.Error("auth alert failed", "error", err)
		a.release()
		return
	}
	a.logger.Warn("auth alert sent", "error", cause)
}

func (a *AuthAlerter) claim() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if !a.last.IsZero() && now.Sub(a.last) < a.interval {
		return false
	}
	a.last = now
	return true
}

// release lets the next failure retry after a send error.
func (a *AuthAlerter) release() {
	a.mu.Lock()
	a.last = time.Time{}
	a.mu.Unlock()
}

func (a *AuthAlerter) send(ctx context.Context, cause error) error {
	detail := "sin detalle"
	if cause != nil {
		detail = cause.Error()
	}
	subject := fmt.Sprintf("⚠️ %s: el acceso a Google Calendar expiró", a.business)
	body := fmt.Sprintf(`El bot de citas de %s no puede leer ni crear citas porque el token de Google Calendar expiró o fue revocado.

Error: %s
Hora: %s

Renueva la autorización con "bookingctl calendar auth" y reinicia el bot.`,
		a.business, detail, a.now().Format(time.RFC1123))
	return a.deliver(ctx, subject, body)
}

// OrphanedAppointment tells the owner that a reschedule left the original
// appointment on the calendar. Each orphan is reported; there is no debounce.
func (a *AuthAlerter) OrphanedAppointment(ctx context.Context, original calendar.Ref, client string, cause error) {
	if a == nil {
		return
	}
	detail := "sin detalle"
	if cause != nil {
		detail = cause.Error()
	}
	subject := fmt.Sprintf("⚠️ %s: cita duplicada tras reagendar", a.business)
	body := fmt.Sprintf(`Se creó la nueva cita de %s pero no se pudo eliminar la anterior. Bórrala a mano en Google Calendar.

Calendario: %s
Evento: %s
Error: %s`,
		client, original.CalendarKey, original.EventID, detail)
	if err := a.deliver(ctx, subject, body); err != nil {
		a.logger.Error("orphan alert failed", "calendar", original.CalendarKey, "event_id", original.EventID, "error", err)
		return
	}
	a.logger.Warn("orphan alert sent", "calendar", original.CalendarKey, "event_id", original.EventID)
}

func (a *AuthAlerter) deliver(ctx context.Context, subject, body string) error {
	var errs []error
	if a.email != nil && a.to != "" {
		if err := a.email.Send(ctx, EmailMessage{To: a.to, Subject: subject, Body: body}); err != nil {
			errs = append(errs, err)
		}
	}
	if a.chat != nil && a.chatSession != "" {
		if err := a.chat.SendText(ctx, a.chatSession, subject+"\n\n"+body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
