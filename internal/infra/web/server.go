package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-campaign-bot/internal/config"
	"telegram-campaign-bot/internal/usecase"
)

type Server struct {
	broadcasts usecase.BroadcastUseCase
	campaigns  usecase.CampaignUseCase
	recipients usecase.RecipientUseCase
	texts      usecase.TextsUseCase
	stats      usecase.StatsUseCase

	auth          *AuthManager
	adminPassword string
	dispatch      usecase.DispatchConfig
	log           *zerolog.Logger
}

func NewServer(
	broadcasts usecase.BroadcastUseCase,
	campaigns usecase.CampaignUseCase,
	recipients usecase.RecipientUseCase,
	texts usecase.TextsUseCase,
	stats usecase.StatsUseCase,
	cfg *config.AdminConfig,
	dispatch usecase.DispatchConfig,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		broadcasts:    broadcasts,
		campaigns:     campaigns,
		recipients:    recipients,
		texts:         texts,
		stats:         stats,
		auth:          NewAuthManager(cfg.JWTSecret, cfg.SecureCookie, cfg.SessionTTL),
		adminPassword: cfg.Password,
		dispatch:      dispatch,
		log:           logger,
	}
}

// Routes builds the admin API router. Everything under /api/v1 except the
// login endpoint requires a valid admin session.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.loginHandler())
		r.Post("/auth/logout", s.logoutHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/stats", statsHandler(s.stats))

			r.Get("/recipients", recipientsListHandler(s.recipients))
			r.Post("/recipients/{tgID}/blocked", recipientBlockHandler(s.recipients))

			r.Get("/campaigns", campaignsListHandler(s.campaigns))
			r.Post("/campaigns", campaignsCreateHandler(s.campaigns))
			r.Get("/campaigns/{id}", campaignGetHandler(s.campaigns))
			r.Put("/campaigns/{id}", campaignUpdateHandler(s.campaigns))
			r.Delete("/campaigns/{id}", campaignDeleteHandler(s.campaigns))

			r.Post("/broadcasts", broadcastStartHandler(s.broadcasts, s.dispatch))
			r.Get("/broadcasts/{runID}/progress", broadcastProgressHandler(s.broadcasts))
			r.Post("/broadcasts/{runID}/cancel", broadcastCancelHandler(s.broadcasts))
			r.Get("/broadcasts/{runID}/report", broadcastReportHandler(s.broadcasts))

			r.Get("/texts", textsListHandler(s.texts))
			r.Put("/texts", textUpdateHandler(s.texts))
			r.Post("/texts/reload", textsReloadHandler(s.texts))
		})
	})
	return r
}

// requireAdmin rejects requests without a valid session token (cookie or
// bearer header).
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if s.adminPassword == "" ||
			subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPassword)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			s.log.Error().Err(err).Msg("mint session token")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
