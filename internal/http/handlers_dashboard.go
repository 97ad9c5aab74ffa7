package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"despesas/internal/log"
	"despesas/internal/refresh"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	vm := s.viewModel(ParseCriteria(r.URL.Query()))
	NewJSONResponse().Payload(vm).Write(w)
}

// handleRefresh forces a refresh. A refresh overtaken by a newer one still
// answers with the newer snapshot.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.actions.Refresh(ctx); err != nil && !errors.Is(err, refresh.ErrSuperseded) {
		log.FromContext(ctx).WarnContext(ctx, "Manual refresh failed",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
		BadGatewayError("não foi possível atualizar os dados").Write(w)
		return
	}
	NewJSONResponse().Payload(s.viewModel(ParseCriteria(r.URL.Query()))).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Payload(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady fails until the first refresh has committed
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.actions.Ready() {
		checks["refresh"] = map[string]any{
			"status":       "ok",
			"last_success": s.actions.LastSuccess().Format(time.RFC3339),
			"generation":   s.snapshots.Generation(),
			"records":      s.snapshots.Len(),
		}
	} else {
		checks["refresh"] = map[string]any{"status": "waiting for first refresh"}
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	st := s.viewCache.Stats()
	checks["cache"] = map[string]any{
		"entries": st.Entries,
		"hits":    st.Hits,
		"misses":  st.Misses,
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}
	if s.prefs == nil {
		checks["preferences"] = "not_configured"
	} else {
		checks["preferences"] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Payload(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetect.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheStats := s.viewCache.Stats()

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("dashboard_generation", "Generation of the committed snapshot", "gauge", s.snapshots.Generation())
	metric("dashboard_records", "Records in the committed snapshot", "gauge", s.snapshots.Len())
	metric("view_cache_hits_total", "View-model cache hits", "counter", cacheStats.Hits)
	metric("view_cache_misses_total", "View-model cache misses", "counter", cacheStats.Misses)
	metric("view_cache_entries", "Current view-model cache entries", "gauge", cacheStats.Entries)
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}
