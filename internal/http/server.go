package http

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"bilans/internal/log"
	"bilans/internal/metrics"
	"bilans/internal/middleware/ratelimit"
	"bilans/internal/middleware/security"
	"bilans/internal/middleware/trace"
	"bilans/internal/services"
	appweb "bilans/web"
)

// historyLimit is how many records the page shows.
const historyLimit = 50

type Server struct {
	http.Server
	templates *template.Template
	ledger    *services.LedgerService
	metrics   *metrics.Recorder
	logger    *log.Logger
	resolver  *security.Resolver
	limiter   *ratelimit.Limiter

	shutdownOnce sync.Once
}

// ServerOption customizes NewServer.
type ServerOption func(*serverOptions)

type serverOptions struct {
	metrics   *metrics.Recorder
	logger    *log.Logger
	rateLimit ratelimit.Config
}

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *metrics.Recorder) ServerOption {
	return func(o *serverOptions) { o.metrics = m }
}

func WithLogger(l *log.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithRateLimit overrides the default POST limit.
func WithRateLimit(cfg ratelimit.Config) ServerOption {
	return func(o *serverOptions) { o.rateLimit = cfg }
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, ledger *services.LedgerService, opts ...ServerOption) *Server {
	o := serverOptions{rateLimit: ratelimit.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger:   ledger,
		metrics:  o.metrics,
		logger:   o.logger.WithComponent(log.ComponentHTTP),
		resolver: security.NewResolver(),
		limiter:  ratelimit.NewLimiter(o.rateLimit),
	}

	t, err := appweb.ParseTemplates()
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	s.handle(mux, "GET /{$}", s.handleIndex)
	s.handle(mux, "POST /expenses", s.handleCreateExpense)
	s.handle(mux, "POST /settlements", s.handleSettle)
	s.handle(mux, "GET /balances", s.handleBalances)
	s.handle(mux, "GET /transactions", s.handleTransactions)
	s.handle(mux, "GET /ui/balances", s.handleBalancePartial)
	s.handle(mux, "GET /ui/history", s.handleHistoryPartial)
	mux.HandleFunc("GET /healthz", handleHealth)
	s.handle(mux, "GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.resolver.ClientIP, s.onRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(s.logger, s.resolver.ClientIP, nil).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// handle registers h under pattern and records its metrics with the
// pattern as route label.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	route := pattern
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rw, r)
		s.metrics.HTTPRequest(r.Method, route, rw.status, time.Since(start))
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.resolver.ClientIP(r),
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").Write(w)
		return
	}
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown stops the rate limiter and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
