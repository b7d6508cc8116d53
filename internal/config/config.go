package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	// RedisURL is optional: without it the process falls back to
	// in-memory rate limiting and locking, which only holds for a
	// single instance.
	RedisURL        string `env:"REDIS_URL"`
	RabbitMQURL     string `env:"RABBITMQ_URL"`
	ProviderURL     string `env:"SMS_PROVIDER_URL,required=true"`
	CronSecret      string `env:"CRON_SECRET,required=true"`
	DefaultSenderID string `env:"DEFAULT_SENDER_ID,default=default"`

	MessagesPerSecond int `env:"MESSAGES_PER_SEC,default=1"`
	WorkerConcurrency int `env:"WORKER_CONCURRENCY,default=8"`
	TickLimit         int `env:"TICK_LIMIT,default=200"`

	QuietStartHour   int `env:"QUIET_START_HOUR,default=21"`
	QuietEndHour     int `env:"QUIET_END_HOUR,default=8"`
	MinLeadSeconds   int `env:"MIN_LEAD_SECONDS,default=900"`
	ClaimTTLSeconds  int `env:"CLAIM_TTL_SECONDS,default=120"`
	TickBudgetSecs   int `env:"TICK_BUDGET_SECONDS,default=300"`
	TickIntervalSecs int `env:"TICK_INTERVAL_SECONDS,default=0"`
	WatchIntervalSec int `env:"WATCH_INTERVAL_SECONDS,default=0"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.QuietStartHour < 0 || c.QuietStartHour > 23 {
		return fmt.Errorf("quiet start hour %d out of range", c.QuietStartHour)
	}
	if c.QuietEndHour < 0 || c.QuietEndHour > 23 {
		return fmt.Errorf("quiet end hour %d out of range", c.QuietEndHour)
	}
	if c.MessagesPerSecond < 1 {
		return fmt.Errorf("messages per second must be at least 1")
	}
	return nil
}

func (c *Config) MinLeadTime() time.Duration {
	return time.Duration(c.MinLeadSeconds) * time.Second
}

func (c *Config) ClaimTTL() time.Duration {
	return time.Duration(c.ClaimTTLSeconds) * time.Second
}

func (c *Config) TickBudget() time.Duration {
	return time.Duration(c.TickBudgetSecs) * time.Second
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSecs) * time.Second
}

func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalSec) * time.Second
}
