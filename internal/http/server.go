// Package http exposes the ledger over a JSON API.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"familyledger/internal/backend"
	"familyledger/internal/core"
	"familyledger/internal/log"
	"familyledger/internal/session"
)

const sessionHeader = "X-Session-ID"

// Report kinds share one supersede slot per session each.
const (
	reportAccountYear  = "account-year"
	reportAccountMonth = "account-month"
	reportAccountRange = "account-range"
	reportCreditMonth  = "credit-month"
	reportCreditYear   = "credit-year"
	reportSearch       = "search"
)

var reportKinds = []string{
	reportAccountYear, reportAccountMonth, reportAccountRange,
	reportCreditMonth, reportCreditYear, reportSearch,
}

type Options struct {
	Addr               string
	Services           *backend.Services
	Logger             *log.Logger
	RateLimitPerMinute int
	SessionIdleTimeout time.Duration
	// Ready reports whether the backing store answers. Nil means always ready.
	Ready func(context.Context) error
	Now   func() time.Time
}

type Server struct {
	http.Server
	svc       *backend.Services
	logger    *log.Logger
	validate  *validator.Validate
	sessions  *session.Manager
	supersede *session.Supersede
	ready     func(context.Context) error
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures the routes and returns a ready-to-run server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 120
	}
	if opts.SessionIdleTimeout <= 0 {
		opts.SessionIdleTimeout = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		svc:       opts.Services,
		logger:    opts.Logger.WithComponent(log.ComponentHTTP),
		validate:  newValidator(),
		supersede: session.NewSupersede(),
		ready:     opts.Ready,
		now:       opts.Now,
	}
	s.sessions = session.NewManager(opts.SessionIdleTimeout, s.sessionEnded)
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.RateLimitPerMinute),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) routes(perMinute int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.RequestLogger(s.logger, func(r *http.Request) string { return r.Header.Get(sessionHeader) }))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders().Handler)
	r.Use(rejectSuspicious)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(perMinute, time.Minute,
			httprate.WithKeyFuncs(rateLimitKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
			}),
		))

		r.Post("/sessions", s.handleOpenSession)
		r.Delete("/sessions/{id}", s.handleCloseSession)

		r.Group(func(r chi.Router) {
			r.Use(s.touchSession)

			r.Get("/selectors/months", s.handleMonthSelectors)
			r.Get("/selectors/years", s.handleYearSelectors)

			r.Route("/accounts", func(r chi.Router) {
				s.transactionRoutes(r, core.Accounts)
				r.Get("/range", s.handleAccountRange)
				r.Get("/summary/{year}", s.handleAccountYear)
				r.Get("/month", s.handleAccountMonth)
			})
			r.Route("/credit", func(r chi.Router) {
				s.transactionRoutes(r, core.Credit)
				r.Get("/summary", s.handleCreditMonth)
				r.Get("/year/{year}", s.handleCreditYear)
			})

			r.Route("/periods", func(r chi.Router) {
				r.Get("/", s.handleListPeriods)
				r.Post("/", s.handleCreatePeriod)
				r.Get("/suggest", s.handleSuggestPeriod)
				r.Get("/{id}", s.handleGetPeriod)
				r.Put("/{id}", s.handleUpdatePeriod)
				r.Delete("/{id}", s.handleDeletePeriod)
			})

			r.Route("/blood-pressure", func(r chi.Router) {
				r.Get("/", s.handleListBloodPressure)
				r.Post("/", s.handleCreateBloodPressure)
				r.Get("/range", s.handleBloodPressureRange)
				r.Get("/{id}", s.handleGetBloodPressure)
				r.Put("/{id}", s.handleUpdateBloodPressure)
				r.Delete("/{id}", s.handleDeleteBloodPressure)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown stops the HTTP server and ends every open session.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
		s.sessions.Shutdown()
	})
	return err
}
