package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/barber-booking-bot/internal/calendar"
)

type recordingEmail struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type recordingChat struct {
	sessions []string
	texts    []string
}

func (r *recordingChat) SendText(_ context.Context, sessionID, text string) error {
	r.sessions = append(r.sessions, sessionID)
	r.texts = append(r.texts, text)
	return nil
}

func TestAuthAlerterDebounces(t *testing.T) {
	email := &recordingEmail{}
	chat := &recordingChat{}
	alerter := NewAuthAlerter(nil,
		WithEmail(email, "owner@example.com"),
		WithChat(chat, "whatsapp:573001112233@s.whatsapp.net"),
		WithInterval(30*time.Minute),
		WithBusiness("Caballeros"),
	)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	alerter.now = func() time.Time { return now }

	cause := errors.New("oauth2: token expired and refresh token is not set")
	alerter.AuthExpired(context.Background(), cause)
	alerter.AuthExpired(context.Background(), cause)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "owner@example.com", email.sent[0].To)
	assert.Contains(t, email.sent[0].Subject, "Caballeros")
	assert.Contains(t, email.sent[0].Body, "token expired")
	assert.Equal(t, []string{"whatsapp:573001112233@s.whatsapp.net"}, chat.sessions)

	now = now.Add(31 * time.Minute)
	alerter.AuthExpired(context.Background(), cause)
	assert.Len(t, email.sent, 2)
}

func TestAuthAlerterRetriesAfterFailedSend(t *testing.T) {
	email := &recordingEmail{err: errors.New("sendgrid down")}
	alerter := NewAuthAlerter(nil, WithEmail(email, "owner@example.com"))

	alerter.AuthExpired(context.Background(), nil)
	assert.Empty(t, email.sent)

	email.err = nil
	alerter.AuthExpired(context.Background(), nil)
	assert.Len(t, email.sent, 1)
}

func TestAuthAlerterNil(t *testing.T) {
	var alerter *AuthAlerter
	assert.NotPanics(t, func() { alerter.AuthExpired(context.Background(), errors.New("x")) })
}

func TestOrphanedAppointmentIsNotDebounced(t *testing.T) {
	email := &recordingEmail{}
	chat := &recordingChat{}
	alerter := NewAuthAlerter(nil,
		WithEmail(email, "owner@example.com"),
		WithChat(chat, "whatsapp:573001112233"),
		WithBusiness("Caballeros"),
	)
	alerter.AuthExpired(context.Background(), errors.New("invalid_grant"))

	original := calendar.Ref{CalendarKey: "Citas - Stiven", EventID: "evt-42"}
	alerter.OrphanedAppointment(context.Background(), original, "Juan Pérez", errors.New("timeout"))
	alerter.OrphanedAppointment(context.Background(), original, "Juan Pérez", errors.New("timeout"))

	require.Len(t, email.sent, 3)
	last := email.sent[2]
	assert.Contains(t, last.Subject, "cita duplicada")
	assert.Contains(t, last.Body, "Juan Pérez")
	assert.Contains(t, last.Body, "evt-42")
	assert.Contains(t, last.Body, "Citas - Stiven")
	assert.Len(t, chat.texts, 3)
}
