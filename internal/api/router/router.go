// Package router assembles the HTTP surface of the virtual secretary.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lmvieira/secretaria-virtual/internal/clinic"
	"github.com/lmvieira/secretaria-virtual/internal/conversation"
	httpmiddleware "github.com/lmvieira/secretaria-virtual/internal/http/middleware"
	"github.com/lmvieira/secretaria-virtual/internal/schedule"
	"github.com/lmvieira/secretaria-virtual/internal/webchat"
	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	ScheduleHandler     *schedule.Handler
	DoctorsHandler      *clinic.Handler
	WebChatHandler      *webchat.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.DoctorsHandler != nil {
		r.Get("/doctors", cfg.DoctorsHandler.List)
	}

	if cfg.ConversationHandler != nil {
		r.Route("/chat", func(r chi.Router) {
			r.Post("/message", cfg.ConversationHandler.Message)
			r.Get("/history", cfg.ConversationHandler.History)
			if cfg.WebChatHandler != nil {
				r.Get("/ws", cfg.WebChatHandler.HandleWebSocket)
			}
		})
	}

	if cfg.ScheduleHandler != nil {
		r.Get("/schedule/slots", cfg.ScheduleHandler.FreeSlots)
		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", cfg.ScheduleHandler.List)
			r.Post("/", cfg.ScheduleHandler.Create)
			r.Post("/{id}/reschedule", cfg.ScheduleHandler.Reschedule)
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
