package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-realtime-stock/internal/audit"
	"github.com/ariefcatur/go-realtime-stock/internal/config"
	kafkax "github.com/ariefcatur/go-realtime-stock/internal/kafka"
	"github.com/ariefcatur/go-realtime-stock/internal/logger"
	"github.com/ariefcatur/go-realtime-stock/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
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
	lg = lg.With(zap.String("service", cfg.ServiceName+"-auditor"))

	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		lg.Fatal("auditor needs KAFKA_BROKERS and REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redisx.New(ctx, cfg.RedisAddr)
	if err != nil {
		lg.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	svc := &audit.Service{Tally: &redisx.AuditTally{Redis: rdb}, Log: lg}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditorGroup, cfg.KafkaTopic, cfg.AuditorWorkers, lg.Named("kafka"))

	lg.Info("auditor consumer started",
		zap.String("group", cfg.AuditorGroup),
		zap.String("topic", cfg.KafkaTopic),
		zap.Int("workers", cfg.AuditorWorkers),
	)
	if err := cons.Start(ctx, svc.HandleEvent); err != nil {
		lg.Error("consumer exit", zap.Error(err))
		return
	}
	lg.Info("auditor stopped")
}
