package app

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"45s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	UpstreamBaseURL string        `envconfig:"UPSTREAM_BASE_URL" default:"https://pharmacy-api-webservice.onrender.com"`
	UpstreamAPIKey  string        `envconfig:"UPSTREAM_API_KEY" required:"true"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`

	RedisAddr        string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	UpstreamCacheTTL time.Duration `envconfig:"UPSTREAM_CACHE_TTL" default:"0s"`

	GroupConcurrency int           `envconfig:"GROUP_CONCURRENCY" default:"8"`
	ViewIdleTTL      time.Duration `envconfig:"VIEW_IDLE_TTL" default:"30m"`

	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:""`

	DigestUsers []string `envconfig:"DIGEST_USERS"`
	DigestCron  string   `envconfig:"DIGEST_CRON" default:"30 5 * * *"`

	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.UpstreamAPIKey) == "" {
		return errors.New("upstream api key must be provided")
	}
	u, err := url.Parse(c.UpstreamBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("upstream base url must be absolute")
	}
	if c.GroupConcurrency <= 0 {
		return errors.New("group concurrency must be positive")
	}
	if c.UpstreamCacheTTL < 0 {
		return errors.New("upstream cache ttl must not be negative")
	}
	users := c.DigestUsers[:0]
	for _, u := range c.DigestUsers {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	c.DigestUsers = users
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// CacheEnabled reports whether upstream responses are cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c != nil && c.UpstreamCacheTTL > 0 && strings.TrimSpace(c.RedisAddr) != ""
}

// QueueRedis returns the Asynq connection options for RedisAddr, which may be
// host:port or a redis:// URL.
func (c *Config) QueueRedis() (asynq.RedisConnOpt, error) {
	addr := strings.TrimSpace(c.RedisAddr)
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		return asynq.ParseRedisURI(addr)
	}
	if addr == "" {
		return nil, errors.New("redis address must be provided")
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}
