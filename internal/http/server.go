package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	Addr     string
	Services *services.Services
	Tokens   *auth.TokenManager
	Pinger   Pinger
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string
	// AuthRateLimit is the number of /auth requests one client IP may make
	// per minute. Zero uses the limiter default.
	AuthRateLimit int
	// TrustedProxies are CIDRs whose forwarding headers are believed.
	TrustedProxies []string
	Logger         *applog.Logger
}

type Server struct {
	http.Server
	svc     *services.Services
	tokens  *auth.TokenManager
	pinger  Pinger
	logger  *applog.Logger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	ip      *security.IPResolver
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	limitCfg := ratelimit.DefaultConfig()
	if opts.AuthRateLimit > 0 {
		limitCfg.RequestsPerWindow = opts.AuthRateLimit
	}

	ip := security.NewIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := ip.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, applog.FieldError, err)
		}
	}

	s := &Server{
		svc:     opts.Services,
		tokens:  opts.Tokens,
		pinger:  opts.Pinger,
		logger:  logger,
		limiter: ratelimit.NewLimiter(limitCfg),
		ip:      ip,
		started: time.Now(),
	}
	s.tracer = trace.NewMiddleware(ip.ClientIP, applog.NewStructuredLogger(logger))

	api := http.NewServeMux()
	s.routes(api)

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("/", api)

	var h http.Handler = root
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = applog.Middleware(logger)(h)
	h = security.NewCORS(opts.CORSOrigins).Middleware(h)
	h = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(h)
	h = recoverPanics(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	limited := s.limiter.Middleware(s.ip.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, please try again later").Write(w)
	})

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /auth/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /auth/me", s.requireAuth(s.handleMe))

	protected := map[string]http.HandlerFunc{
		"GET /categories":             s.handleListCategories,
		"POST /categories":            s.handleCreateCategory,
		"POST /categories/initialize": s.handleInitializeCategories,
		"GET /categories/{id}":        s.handleGetCategory,
		"PUT /categories/{id}":        s.handleUpdateCategory,
		"DELETE /categories/{id}":     s.handleDeleteCategory,

		"GET /transactions":         s.handleListTransactions,
		"POST /transactions":        s.handleCreateTransaction,
		"GET /transactions/summary": s.handleTransactionSummary,
		"GET /transactions/{id}":    s.handleGetTransaction,
		"PUT /transactions/{id}":    s.handleUpdateTransaction,
		"DELETE /transactions/{id}": s.handleDeleteTransaction,

		"GET /budgets":         s.handleListBudgets,
		"POST /budgets":        s.handleCreateBudget,
		"GET /budgets/status":  s.handleBudgetStatus,
		"GET /budgets/{id}":    s.handleGetBudget,
		"PUT /budgets/{id}":    s.handleUpdateBudget,
		"DELETE /budgets/{id}": s.handleDeleteBudget,

		"GET /recurring":                s.handleListRecurring,
		"POST /recurring":               s.handleCreateRecurring,
		"GET /recurring/upcoming":       s.handleUpcomingRecurring,
		"POST /recurring/generate":      s.handleGenerateDue,
		"GET /recurring/{id}":           s.handleGetRecurring,
		"PUT /recurring/{id}":           s.handleUpdateRecurring,
		"DELETE /recurring/{id}":        s.handleDeleteRecurring,
		"POST /recurring/{id}/generate": s.handleGenerateOne,

		"GET /analytics/summary":             s.handleAnalyticsSummary,
		"GET /analytics/category-breakdown":  s.handleCategoryBreakdown,
		"GET /analytics/monthly-trends":      s.handleMonthlyTrends,
		"GET /analytics/recent-transactions": s.handleRecentTransactions,
		"GET /analytics/top-categories":      s.handleTopCategories,
		"GET /analytics/daily-pattern":       s.handleDailyPattern,
		"GET /analytics/comparison":          s.handleComparison,

		"GET /export/pdf": s.handleExportPDF,
		"GET /export/csv": s.handleExportCSV,

		"GET /settings":            s.handleGetSettings,
		"PUT /settings":            s.handleUpdateSettings,
		"PUT /settings/password":   s.handleChangePassword,
		"GET /settings/currencies": s.handleCurrencies,
	}
	for pattern, h := range protected {
		mux.HandleFunc(pattern, s.requireAuth(h))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "Route not found").Write(w)
	})
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics is a point-in-time snapshot of server counters.
type Metrics struct {
	Uptime           string `json:"uptime"`
	Requests         int64  `json:"requests"`
	AvgResponseMicro int64  `json:"avgResponseMicros"`
	RateLimited      int64  `json:"rateLimited"`
	TrackedClients   int64  `json:"trackedClients"`
}

func (s *Server) metrics() Metrics {
	tm := s.tracer.GetMetrics()
	lm := s.limiter.GetMetrics()
	return Metrics{
		Uptime:           time.Since(s.started).Truncate(time.Second).String(),
		Requests:         tm.TotalRequests,
		AvgResponseMicro: tm.AverageResponseTime,
		RateLimited:      lm.Rejected,
		TrackedClients:   lm.ClientCount,
	}
}
