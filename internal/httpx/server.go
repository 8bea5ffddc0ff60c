package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/observability"
	"github.com/ariefcatur/go-realtime-stock/internal/relay"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Log     *zap.Logger
	Metrics *observability.Metrics // nil disables /metrics

	Stock *StockHandler
	Relay http.Handler // nil disables /ws

	RequestTimeout  time.Duration
	RateLimitPerMin int
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog(log), middleware.Recoverer)
	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}).Handler)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// relay channels are long-lived, so they stay outside the request timeout
	if cfg.Relay != nil {
		r.Method(http.MethodGet, relay.Path, cfg.Relay)
	}

	if cfg.Stock != nil {
		r.Route("/api", func(api chi.Router) {
			api.Use(middleware.Timeout(timeout))
			if cfg.RateLimitPerMin > 0 {
				api.Use(httprate.Limit(cfg.RateLimitPerMin, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						problem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
					}),
				))
			}
			cfg.Stock.Register(api)
		})
	}
	return r
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
