// Package api serves the records service: the durable expense store the
// dashboard refreshes from.
package api

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"despesas/internal/core"
	apphttp "despesas/internal/http"
	"despesas/internal/log"
	"despesas/internal/middleware/ratelimit"
	"despesas/internal/middleware/security"
	"despesas/internal/middleware/trace"
)

// Service is the records service as seen by the handlers.
type Service interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	CreateExpense(ctx context.Context, in core.NewExpense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	ImportCSV(ctx context.Context, r io.Reader) (int, error)
	Predict(ctx context.Context) (*core.RemoteForecast, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	Report(ctx context.Context, w io.Writer) error
}

// ReadinessCheck reports whether the backing store is reachable.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	http.Server
	svc          Service
	ready        ReadinessCheck
	logger       *log.Logger
	rateLimiter  *ratelimit.Limiter
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires the records routes behind the tracing, security and rate
// limiting middleware. ready may be nil.
func NewServer(addr string, svc Service, ready ReadinessCheck, rateLimitPerMinute int, logger *log.Logger) *Server {
	logger = logger.WithComponent(log.ComponentAPI)
	detector := security.NewDetector()

	s := &Server{
		svc:    svc,
		ready:  ready,
		logger: logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: rateLimitPerMinute,
			Methods:           []string{http.MethodPost, http.MethodDelete},
		}, logger),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/predict", s.handlePredict)
	mux.HandleFunc("POST /api/import_csv", s.handleImportCSV)
	mux.HandleFunc("GET /api/export_csv", s.handleExportCSV)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		apphttp.TooManyRequestsError().Write(w)
	})(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = trace.NewMiddleware(logger, detector.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
