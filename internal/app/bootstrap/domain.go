package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/barber-booking-bot/internal/calendar"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	appconfig "github.com/wolfman30/barber-booking-bot/internal/config"
	"github.com/wolfman30/barber-booking-bot/internal/conversation"
	"github.com/wolfman30/barber-booking-bot/internal/notify"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// BuildCatalog loads CATALOG_FILE, or the built-in shop when unset.
func BuildCatalog(cfg *appconfig.Config) (*catalog.Catalog, error) {
	if strings.TrimSpace(cfg.CatalogFile) == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load catalog: %w", err)
	}
	return cat, nil
}

// BuildCalendar picks the calendar backend named by CALENDAR_BACKEND. The
// memory backend only knows the catalog's staff calendars.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, cat *catalog.Catalog, rec calendar.Recorder, logger *logging.Logger) (calendar.Repository, error) {
	switch cfg.CalendarBackend {
	case "memory":
		keys := make([]string, 0, len(cat.Staff))
		for _, m := range cat.Staff {
			keys = append(keys, m.CalendarKey)
		}
		logger.Warn("calendar backend: memory; bookings are lost on restart")
		return calendar.NewMemoryRepository(keys...), nil
	case "", "google":
		svc, err := calendar.NewGoogleService(ctx, cfg.GoogleCredentialsFile, cfg.GoogleTokenFile)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: google calendar: %w (run `bookingctl calendar auth`)", err)
		}
		opts := []calendar.GoogleOption{
			calendar.WithLocation(cfg.Location()),
			calendar.WithLogger(logger),
		}
		if rec != nil {
			opts = append(opts, calendar.WithRecorder(rec))
		}
		return calendar.NewGoogleRepository(svc, opts...), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown CALENDAR_BACKEND %q", cfg.CalendarBackend)
	}
}

// BuildEmailSender picks the alert mail provider named by EMAIL_PROVIDER.
// It returns nil when the provider has no credentials.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, loader *AWSLoader, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return nil
		}
		return sender
	case "ses":
		awsCfg, err := loader.Load(ctx)
		if err != nil {
			logger.Warn("ses unavailable", "error", err)
			return nil
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "stub", "log":
		return notify.NewStubEmailSender(logger)
	default:
		return nil
	}
}

// BuildAlerter wires the expired-credentials alert to the owner's mailbox
// and, when ADMIN_PHONE is set, to their WhatsApp chat.
func BuildAlerter(cfg *appconfig.Config, email notify.EmailSender, chat notify.ChatSender, logger *logging.Logger) *notify.AuthAlerter {
	opts := []notify.AlertOption{
		notify.WithInterval(cfg.AlertInterval),
		notify.WithBusiness(cfg.BusinessName),
	}
	if email != nil && strings.TrimSpace(cfg.AdminEmail) != "" {
		opts = append(opts, notify.WithEmail(email, cfg.AdminEmail))
	}
	if chat != nil {
		if id := AdminSessionID(cfg); id != "" {
			opts = append(opts, notify.WithChat(chat, id))
		}
	}
	return notify.NewAuthAlerter(logger, opts...)
}

// AdminSessionID is the WhatsApp session of the shop owner, or "" when
// ADMIN_PHONE is unset.
func AdminSessionID(cfg *appconfig.Config) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cfg.AdminPhone)
	if digits == "" {
		return ""
	}
	return conversation.SessionKey(conversation.ChannelWhatsApp, digits)
}
