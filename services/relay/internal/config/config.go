package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the explicit policy and credential surface of one relay
// deployment. Everything is read once at boot; nothing below main reaches
// into the environment.
type Config struct {
	Port string `env:"SERVICE_PORT,default=8090"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`

	RPCURL          string `env:"RPC_URL,required"`
	ChainID         int64  `env:"CHAIN_ID,required"`
	ContractAddress string `env:"CONTRACT_ADDRESS,required"`

	AppSignerKey string `env:"APP_SIGNER_KEY,required"`
	SubmitterKey string `env:"SUBMITTER_KEY,required"`

	DomainName    string `env:"PROTOCOL_DOMAIN_NAME,default=GaslessComments"`
	DomainVersion string `env:"PROTOCOL_DOMAIN_VERSION,default=1"`

	MaxContentLength     int `env:"MAX_CONTENT_LENGTH,default=10240"`
	RateLimitWindowSecs  int `env:"RATE_LIMIT_WINDOW_SEC,default=60"`
	MaxDeadlineWindowHrs int `env:"MAX_DEADLINE_WINDOW_HOURS,default=24"`
	SubmitTimeoutSecs    int `env:"SUBMIT_TIMEOUT_SEC,default=45"`
}

func Load(ctx context.Context) (Config, error) {
	cfg := Config{}
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	return cfg, nil
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSecs) * time.Second
}

func (c Config) MaxDeadlineWindow() time.Duration {
	return time.Duration(c.MaxDeadlineWindowHrs) * time.Hour
}

func (c Config) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutSecs) * time.Second
}
