// Package http exposes the JSON API over gorilla/mux.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/ports"
	"fintrack/internal/services"
)

type (
	// TransactionService is satisfied by services.TransactionService.
	TransactionService interface {
		ListAll(ctx context.Context) ([]core.Transaction, error)
		Add(ctx context.Context, t *core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id int64) error
		Summary(ctx context.Context) (core.Summary, error)
		SummaryByPeriod(ctx context.Context, start, end time.Time) (core.Summary, error)
		ListByPeriod(ctx context.Context, start, end time.Time) ([]core.Transaction, error)
	}

	// AccountService is satisfied by services.AccountService.
	AccountService interface {
		Register(ctx context.Context, username, password string) (core.User, error)
		Login(ctx context.Context, username, password string) (services.Session, error)
		Current(ctx context.Context) (core.User, error)
	}
)

// Options carries the collaborators of a Server.
type Options struct {
	Addr         string
	Transactions TransactionService
	Accounts     AccountService
	// Gate attaches the caller identity; it runs for every /api route.
	Gate      middleware.Interceptor
	Ready     ports.Pinger
	Metrics   *metrics.Metrics
	RateLimit ratelimit.Config
	ClientIP  *security.ClientIPResolver
	Logger    *log.Logger
}

type Server struct {
	http.Server
	transactions TransactionService
	accounts     AccountService
	ready        ports.Pinger
	metrics      *metrics.Metrics
	limiter      *ratelimit.Limiter
	logger       *log.Logger
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer builds the router and wraps it in the global middleware stack.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.ClientIP == nil {
		opts.ClientIP = security.NewClientIPResolver()
	}
	if opts.RateLimit.RequestsPerSecond <= 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		transactions: opts.Transactions,
		accounts:     opts.Accounts,
		ready:        opts.Ready,
		metrics:      opts.Metrics,
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
		logger:       logger.WithComponent(log.ComponentHTTP),
		startedAt:    time.Now(),
	}

	router := s.routes(opts.Gate)

	tracer := trace.NewMiddleware(opts.ClientIP.ClientIP, logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(opts.ClientIP.ClientIP, s.rateLimited)

	var handler http.Handler = router
	handler = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = log.Middleware(s.logger)(handler)
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:           opts.Addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

func (s *Server) routes(gate middleware.Interceptor) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(s.metrics.Instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if gate != nil {
		api.Use(middleware.Chain(gate))
	}
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Chain(middleware.InterceptorFunc(requireIdentity)))
	protected.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	protected.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	protected.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	protected.HandleFunc("/transactions/summary", s.handleSummary).Methods(http.MethodGet)
	protected.HandleFunc("/transactions/summary/period", s.handleSummaryByPeriod).Methods(http.MethodGet)
	protected.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	return r
}

// requireIdentity rejects requests the gate did not authenticate.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return r, true
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRateLimited()
	s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldPath, r.URL.Path)
	writeErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown drains connections and stops the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
