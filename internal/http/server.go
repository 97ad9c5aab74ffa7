package http

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"despesas/internal/cache"
	"despesas/internal/core"
	"despesas/internal/dashboard"
	"despesas/internal/log"
	"despesas/internal/middleware/ratelimit"
	"despesas/internal/middleware/security"
	"despesas/internal/middleware/trace"
	"despesas/internal/store"
)

// Actions is the refresh pipeline as seen by the handlers.
type Actions interface {
	Refresh(ctx context.Context) error
	Create(ctx context.Context, in core.NewExpense) (core.Expense, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, filename string, r io.Reader) (int, error)
	Export(ctx context.Context, w io.Writer) error
	Report(ctx context.Context, w io.Writer) error
	OnCommit(fn func(generation uint64))
	Ready() bool
	LastSuccess() time.Time
}

// Snapshots reads the dashboard's record snapshot.
type Snapshots interface {
	Snapshot() store.Snapshot
	Generation() uint64
	Len() int
}

// Preferences persists small user settings. It may be nil.
type Preferences interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
}

// Config holds the server settings that come from the environment.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	CacheSize          int
	CacheTTL           time.Duration
}

type Server struct {
	http.Server
	actions   Actions
	snapshots Snapshots
	prefs     Preferences
	logger    *log.Logger

	viewCache    *cache.LRUCache[dashboard.ViewModel]
	cacheManager *cache.Manager

	rateLimiter     *ratelimit.Limiter
	securityDetect  *security.Detector
	traceMiddleware *trace.Middleware

	now          func() time.Time
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// Committed refreshes invalidate the view-model cache.
func NewServer(cfg Config, actions Actions, snapshots Snapshots, prefs Preferences, logger *log.Logger) *Server {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	logger = logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		actions:         actions,
		snapshots:       snapshots,
		prefs:           prefs,
		logger:          logger,
		viewCache:       cache.NewLRUCache[dashboard.ViewModel](cfg.CacheSize, cfg.CacheTTL),
		cacheManager:    cache.NewManager(logger),
		securityDetect:  detector,
		traceMiddleware: trace.NewMiddleware(logger, detector.ExtractClientIP),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Methods:           []string{http.MethodPost, http.MethodPut, http.MethodDelete},
		}, logger),
		now:     time.Now,
		started: time.Now(),
	}

	s.cacheManager.Register(s.viewCache)
	s.cacheManager.StartCleanup(cfg.CacheTTL)
	actions.OnCommit(s.invalidateViews)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/import_csv", s.handleImportCSV)
	mux.HandleFunc("GET /api/export_csv", s.handleExportCSV)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/preferences/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /api/preferences/theme", s.handlePutTheme)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = security.NoStore(handler)
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) invalidateViews(generation uint64) {
	s.viewCache.Purge()
	s.logger.Debug("View cache invalidated", log.FieldGeneration, generation)
}

// viewModel returns the view-model for c over the current snapshot, cached
// per generation.
func (s *Server) viewModel(c dashboard.Criteria) dashboard.ViewModel {
	// The current month feeds the stats, so it is part of the key.
	now := s.now()
	month := core.MonthKey(now)
	key := strconv.FormatUint(s.snapshots.Generation(), 10) + "|" + month + "|" + c.Key()
	if vm, ok := s.viewCache.Get(key); ok {
		return vm
	}

	snap := s.snapshots.Snapshot()
	vm := dashboard.Build(snap, c, now)
	s.viewCache.Set(strconv.FormatUint(snap.Generation, 10)+"|"+month+"|"+c.Key(), vm)
	return vm
}
