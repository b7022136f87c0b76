package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/barber-booking-bot/internal/api/router"
	"github.com/wolfman30/barber-booking-bot/internal/appointments"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	appconfig "github.com/wolfman30/barber-booking-bot/internal/config"
	"github.com/wolfman30/barber-booking-bot/internal/conversation"
	"github.com/wolfman30/barber-booking-bot/internal/http/handlers"
	"github.com/wolfman30/barber-booking-bot/internal/notify"
	"github.com/wolfman30/barber-booking-bot/internal/observability/metrics"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
	"github.com/wolfman30/barber-booking-bot/internal/session"
	"github.com/wolfman30/barber-booking-bot/internal/transport"
	"github.com/wolfman30/barber-booking-bot/internal/transport/telegram"
	"github.com/wolfman30/barber-booking-bot/internal/transport/webchat"
	"github.com/wolfman30/barber-booking-bot/internal/transport/whatsapp"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

const (
	shutdownTimeout = 15 * time.Second
	pruneInterval   = time.Hour
)

// App is the fully wired bot: transports feed the queue, the worker runs the
// dialogue and replies go back through the transport mux.
type App struct {
	cfg    *appconfig.Config
	logger *logging.Logger

	Catalog      *catalog.Catalog
	Appointments *appointments.Service
	Machine      *conversation.Machine
	Worker       *conversation.Worker
	Mux          *transport.Mux
	Metrics      *metrics.BotMetrics

	queue      conversation.Queue
	publisher  *conversation.Publisher
	sessions   session.Store
	transcript *conversation.TranscriptStore
	processed  ProcessedStore
	redis      *redis.Client
	pool       *pgxpool.Pool
	whatsapp   *whatsapp.Client
	telegram   *telegram.Bot
	webchat    *webchat.Handler
	handler    http.Handler
	closers    []func()
}

// New builds every component named by cfg. Close releases what New opened
// when Run is never called.
func New(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	loader := NewAWSLoader(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewBotMetrics(reg)

	cat, err := BuildCatalog(cfg)
	if err != nil {
		return err
	}
	a.Catalog = cat

	a.redis = BuildRedisClient(ctx, cfg, logger, true)
	if a.redis != nil {
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
		a.transcript = conversation.NewTranscriptStore(a.redis)
	}

	if a.sessions, err = BuildSessionStore(ctx, cfg, a.redis, loader, logger); err != nil {
		return err
	}
	if a.queue, err = BuildQueue(ctx, cfg, loader); err != nil {
		return err
	}
	if a.processed, a.pool, err = BuildProcessedStore(ctx, cfg, logger); err != nil {
		return err
	}
	if a.pool != nil {
		a.closers = append(a.closers, a.pool.Close)
	}
	a.publisher = conversation.NewPublisher(a.queue, logger)

	if err := a.buildTransports(ctx); err != nil {
		return err
	}

	repo, err := BuildCalendar(ctx, cfg, cat, a.Metrics, logger)
	if err != nil {
		return err
	}
	engine := schedule.NewEngine(schedule.DefaultHours(), cfg.MinAdvanceHours, cfg.Location())
	alerter := BuildAlerter(cfg, BuildEmailSender(ctx, cfg, loader, logger), a.adminChat(), logger)
	a.Appointments = appointments.NewService(repo, cat, engine,
		appointments.WithSearchWindow(cfg.SearchWindow),
		appointments.WithLogger(logger),
		appointments.WithRecorder(a.Metrics),
		appointments.WithAuthAlerter(alerter),
		appointments.WithOrphanAlerter(alerter),
	)

	extractor, closeNLU, err := BuildExtractor(ctx, cfg, cat, loader, a.Metrics, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeNLU)

	a.Machine = conversation.NewMachine(a.sessions, a.Appointments,
		conversation.WithExtractor(extractor),
		conversation.WithGate(Gate(cfg)),
		conversation.WithBusinessName(cfg.BusinessName),
		conversation.WithMachineLogger(logger),
		conversation.WithMachineRecorder(a.Metrics),
	)
	a.Worker = conversation.NewWorker(a.Machine, a.queue, a.Mux, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithProcessedEventsStore(a.processed),
		conversation.WithTranscriptStore(a.transcript),
		conversation.WithWorkerRecorder(a.Metrics),
	)

	a.handler = a.buildRouter(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return nil
}

func (a *App) buildTransports(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	a.Mux = transport.NewMux()

	if cfg.WhatsAppEnabled {
		wa, err := whatsapp.New(ctx, whatsapp.Config{
			DBPath: cfg.WhatsAppDBPath,
			QROut:  os.Stdout,
			Debug:  strings.EqualFold(cfg.LogLevel, "debug"),
		}, a.publisher, logger)
		if err != nil {
			return err
		}
		a.whatsapp = wa
		a.closers = append(a.closers, func() { _ = wa.Close() })
		a.Mux.Register(conversation.ChannelWhatsApp, wa)
	}
	if strings.TrimSpace(cfg.TelegramBotToken) != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, a.publisher, logger)
		if err != nil {
			return err
		}
		a.telegram = bot
		a.Mux.Register(conversation.ChannelTelegram, bot)
	}
	if cfg.WebchatEnabled {
		a.webchat = webchat.NewHandler(a.publisher, a.transcript, logger)
		a.Mux.Register(conversation.ChannelWebchat, a.webchat)
	}
	if len(a.Mux.Channels()) == 0 {
		return errors.New("bootstrap: no chat transport enabled")
	}
	logger.Info("transports ready", "channels", a.Mux.Channels())
	return nil
}

// adminChat returns the sender for owner alerts when WhatsApp is up.
func (a *App) adminChat() notify.ChatSender {
	if a.whatsapp == nil {
		return nil
	}
	return a.whatsapp
}

func (a *App) buildRouter(metricsHandler http.Handler) http.Handler {
	var checks []handlers.HealthCheck
	if a.redis != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}})
	}
	if a.pool != nil {
		checks = append(checks, handlers.HealthCheck{Name: "database", Check: a.pool.Ping})
	}

	rc := &router.Config{
		Logger:             a.logger,
		Health:             handlers.Health(checks...),
		MetricsHandler:     metricsHandler,
		Webchat:            a.webchat,
		CORSAllowedOrigins: a.cfg.WebchatOrigins,
		ChatRateLimit:      a.cfg.ChatRateLimit,
		ChatBurst:          a.cfg.ChatBurst,
	}
	if strings.TrimSpace(a.cfg.AdminJWTSecret) != "" {
		rc.AdminAuthSecret = a.cfg.AdminJWTSecret
		rc.AdminSessions = handlers.NewAdminSessionsHandler(a.Machine, a.transcript, a.logger)
		rc.AdminSlots = handlers.NewAdminSlotsHandler(a.Appointments, a.logger)
	} else {
		a.logger.Warn("ADMIN_JWT_SECRET not set; admin API disabled")
	}
	return router.New(rc)
}

// Handler is the HTTP surface: health, metrics, web chat and admin.
func (a *App) Handler() http.Handler { return a.handler }

// Publisher enqueues inbound messages, for in-process callers.
func (a *App) Publisher() *conversation.Publisher { return a.publisher }

// Run starts every background loop and the HTTP server, and blocks until ctx
// is cancelled. In-flight turns finish before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if j, ok := a.sessions.(*session.MemoryStore); ok {
		go j.RunJanitor(ctx, time.Minute)
	}
	if p, ok := a.processed.(pruner); ok {
		go runPruner(ctx, p, a.cfg.ProcessedRetention, pruneInterval, a.logger)
	}

	if a.whatsapp != nil {
		if err := a.whatsapp.Start(ctx); err != nil {
			return fmt.Errorf("bootstrap: whatsapp: %w", err)
		}
	}
	a.Worker.Start(ctx)

	var wg sync.WaitGroup
	if a.telegram != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.telegram.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("telegram stopped", "error", err)
			}
		}()
	}

	// Web chat connections are hijacked, so there is no write timeout.
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("bootstrap: http server: %w", err)
	}

	a.logger.Info("shutting down")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server forced to shutdown", "error", err)
	}
	a.Worker.Wait()
	wg.Wait()
	a.logger.Info("stopped")
	return runErr
}

// Close releases clients in reverse order of creation. It is safe to call
// more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
