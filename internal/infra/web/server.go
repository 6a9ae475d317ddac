package web

import (
	"net/http"
	"strings"
	"time"

	"tttranscribe/internal/infra/metrics"
	"tttranscribe/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Options struct {
	PublicBaseURL       string
	PollIntervalSeconds int
	RequestTimeout      time.Duration
	MetricsEnabled      bool
	MetricsPath         string
}

type Server struct {
	jobs      usecase.JobUseCase
	admission usecase.AdmissionController
	notifier  usecase.NotificationUseCase
	auth      *AuthManager
	opts      Options
	log       *zerolog.Logger
}

func NewServer(
	jobs usecase.JobUseCase,
	admission usecase.AdmissionController,
	notifier usecase.NotificationUseCase,
	auth *AuthManager,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.PollIntervalSeconds <= 0 {
		opts.PollIntervalSeconds = 3
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		jobs:      jobs,
		admission: admission,
		notifier:  notifier,
		auth:      auth,
		opts:      opts,
		log:       &l,
	}
}

// Routes builds the full HTTP surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, RequestLog(s.log), Recover(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", s.handleHealth)
	if s.opts.MetricsEnabled {
		r.Handle(s.opts.MetricsPath, metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.RequireAuth)

		if s.auth.CanMint() {
			r.Post("/auth/token", s.handleMintToken)
		}
		r.Post("/transcriptions", s.handleSubmit)
		r.Get("/transcriptions/{jobID}", s.handleGetStatus)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/jobs", s.handleJobSummary)
			r.Get("/deadletters", s.handleListDeadLetters)
			r.Post("/deadletters/{jobID}/replay", s.handleReplay)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}
