package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/config"
	"github.com/ariefcatur/go-realtime-stock/internal/httpx"
	kafkax "github.com/ariefcatur/go-realtime-stock/internal/kafka"
	"github.com/ariefcatur/go-realtime-stock/internal/logger"
	"github.com/ariefcatur/go-realtime-stock/internal/observability"
	"github.com/ariefcatur/go-realtime-stock/internal/postgres"
	"github.com/ariefcatur/go-realtime-stock/internal/redisx"
	"github.com/ariefcatur/go-realtime-stock/internal/relay"
	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	lg = lg.With(zap.String("service", cfg.ServiceName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("api exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	// Store
	var store stock.Store = stock.NewMemoryStore()
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		store = postgres.NewStore(db)
		lg.Info("using postgres store")
	} else {
		lg.Warn("POSTGRES_DSN not set, records live in memory only")
	}

	// Redis
	var idem *redisx.Idempotency
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		idem = &redisx.Idempotency{Redis: rdb, TTL: cfg.IdempotencyTTL}
	}

	metrics := observability.NewMetrics()
	hub := relay.NewHub(lg.Named("relay"), metrics)
	notifiers := stock.Notifiers{hub}

	// Kafka producer
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024, lg.Named("kafka"))
		notifiers = append(notifiers, &kafkax.EventStream{Producer: prod})
	}

	svc := &stock.Service{Store: store, Notifier: notifiers}
	router := httpx.NewRouter(httpx.RouterConfig{
		Log:     lg.Named("http"),
		Metrics: metrics,
		Stock:   httpx.NewStockHandler(svc, idem, lg.Named("http")),
		Relay: &relay.Endpoint{
			Hub:         hub,
			Snapshot:    svc.Snapshot,
			SendBuffer:  cfg.RelaySendBuffer,
			IdleTimeout: cfg.RelayIdleTimeout,
			Log:         lg.Named("relay"),
		},
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitPerMin: cfg.RateLimit,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if prod != nil {
		prod.Start(gctx)
	}
	g.Go(func() error {
		lg.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if prod != nil {
			prod.Close() // close inbox, flush and close writer
			prod.WaitClosed()
		}
		return err
	})
	return g.Wait()
}
