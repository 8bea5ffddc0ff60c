package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":8081"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	ServiceName    string        `envconfig:"SERVICE_NAME" default:"stock-api"`
	RateLimit      int           `envconfig:"RATE_LIMIT_PER_MIN" default:"300"`

	// empty DSN -> in-memory store
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	// empty addr -> idempotency keys disabled
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	// empty -> event stream disabled
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC" default:"stock.events"`
	AuditorGroup   string   `envconfig:"AUDITOR_GROUP" default:"stock-auditor"`
	AuditorWorkers int      `envconfig:"AUDITOR_WORKERS" default:"4"`

	RelaySendBuffer  int           `envconfig:"RELAY_SEND_BUFFER" default:"64"`
	RelayIdleTimeout time.Duration `envconfig:"RELAY_IDLE_TIMEOUT" default:"60s"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.KafkaBrokers = cleanList(cfg.KafkaBrokers)
	return cfg, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
