package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/barber-booking-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/barber-booking-bot/internal/http/middleware"
	"github.com/wolfman30/barber-booking-bot/internal/transport/webchat"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes out.
type Config struct {
	Logger          *logging.Logger
	Health          http.HandlerFunc
	MetricsHandler  http.Handler
	Webchat         *webchat.Handler
	AdminSessions   *handlers.AdminSessionsHandler
	AdminSlots      *handlers.AdminSlotsHandler
	AdminAuthSecret string

	CORSAllowedOrigins []string
	// ChatRateLimit caps chat posts per client IP per second.
	ChatRateLimit float64
	ChatBurst     int
}

// New creates the chi router.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.Health()
	}
	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Webchat != nil {
		r.Route("/chat", func(chat chi.Router) {
			if len(cfg.CORSAllowedOrigins) > 0 {
				chat.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
			}
			chat.Get("/ws", cfg.Webchat.HandleWebSocket)
			chat.Get("/history", cfg.Webchat.HandleHistory)
			limited := chat
			if cfg.ChatRateLimit > 0 {
				limited = chat.With(httpmiddleware.RateLimit(httpmiddleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatBurst)))
			}
			limited.Post("/message", cfg.Webchat.HandleMessage)
		})
	}

	if cfg.AdminAuthSecret != "" && (cfg.AdminSessions != nil || cfg.AdminSlots != nil) {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.AdminSessions != nil {
				admin.Route("/sessions/{sessionID}", func(s chi.Router) {
					s.Get("/", cfg.AdminSessions.GetSession)
					s.Delete("/", cfg.AdminSessions.ResetSession)
					s.Get("/transcript", cfg.AdminSessions.GetTranscript)
				})
			}
			if cfg.AdminSlots != nil {
				admin.Get("/slots", cfg.AdminSlots.GetSlots)
			}
		})
	}

	return r
}
