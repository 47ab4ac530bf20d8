package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string        `env:"DATABASE_DSN,required=true"`
	RabbitMQURL         string        `env:"RABBITMQ_URL,required=true"`
	RedisURL            string        `env:"REDIS_URL,required=true"`
	DeliveryGatewayURL  string        `env:"DELIVERY_GATEWAY_URL,required=true"`
	RateLimitPerSec     int           `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency   int           `env:"WORKER_CONCURRENCY,default=4"`
	BatchMaxAttempts    int           `env:"BATCH_MAX_ATTEMPTS,default=3"`
	BatchAttemptTimeout time.Duration `env:"BATCH_ATTEMPT_TIMEOUT,default=1h"`
	APIPort             int           `env:"API_PORT,default=8080"`
	LogLevel            string        `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
