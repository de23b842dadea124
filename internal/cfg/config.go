// Package cfg provides the configuration file format.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
)

// Backends of the merge queue.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

const (
	defLogFormat         = "logfmt"
	defLogTimeKey        = "time_iso8601"
	defLogLevel          = "info"
	defBackend           = BackendMemory
	defRedisKeyPrefix    = "automerge:"
	defWorkerInterval    = "30s"
	defClaimTimeout      = "30m"
	defWorkerConcurrency = 4
)

type Config struct {
	HTTPListenAddr string     `toml:"http_server_listen_addr"`
	GithubAPIToken string     `toml:"github_api_token"`
	GithubBotLogin string     `toml:"github_bot_login"`
	LogFormat      string     `toml:"log_format"`
	LogTimeKey     string     `toml:"log_time_key"`
	LogLevel       string     `toml:"log_level"`
	MergeQueue     MergeQueue `toml:"merge_queue"`
	Rules          []*Rule    `toml:"rule"`
}

type MergeQueue struct {
	Backend           string `toml:"backend"`
	RedisAddr         string `toml:"redis_addr"`
	RedisUsername     string `toml:"redis_username"`
	RedisPassword     string `toml:"redis_password"`
	RedisDB           int    `toml:"redis_db"`
	KeyPrefix         string `toml:"key_prefix"`
	DatabaseDSN       string `toml:"database_dsn"`
	WorkerInterval    string `toml:"worker_interval"`
	ClaimTimeout      string `toml:"claim_timeout"`
	WorkerConcurrency int    `toml:"worker_concurrency"`
}

// Load reads a TOML configuration, sets defaults for unset optional
// settings and validates it.
// Unknown keys are rejected.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	if err := toml.NewDecoder(reader).Strict(true).Decode(&result); err != nil {
		return nil, err
	}

	result.setDefaults()

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) setDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = defLogFormat
	}

	if c.LogTimeKey == "" {
		c.LogTimeKey = defLogTimeKey
	}

	if c.LogLevel == "" {
		c.LogLevel = defLogLevel
	}

	q := &c.MergeQueue
	if q.Backend == "" {
		q.Backend = defBackend
	}

	if q.KeyPrefix == "" {
		q.KeyPrefix = defRedisKeyPrefix
	}

	if q.WorkerInterval == "" {
		q.WorkerInterval = defWorkerInterval
	}

	if q.ClaimTimeout == "" {
		q.ClaimTimeout = defClaimTimeout
	}

	if q.WorkerConcurrency == 0 {
		q.WorkerConcurrency = defWorkerConcurrency
	}
}

// Validate returns an error if a setting is invalid.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogFormat {
	case "logfmt", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: unsupported value: %q", c.LogFormat))
	}

	if err := c.MergeQueue.validate(); err != nil {
		errs = append(errs, fmt.Errorf("merge_queue: %w", err))
	}

	if err := validateRules(c.Rules); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (q *MergeQueue) validate() error {
	var errs []error

	switch q.Backend {
	case BackendMemory:
	case BackendRedis:
		if q.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr must be set for the redis backend"))
		}
	case BackendPostgres, BackendSQLite:
		if q.DatabaseDSN == "" {
			errs = append(errs, fmt.Errorf("database_dsn must be set for the %s backend", q.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("backend: unsupported value: %q", q.Backend))
	}

	if d, err := time.ParseDuration(q.WorkerInterval); err != nil {
		errs = append(errs, fmt.Errorf("worker_interval: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("worker_interval must be positive, is: %s", d))
	}

	if d, err := time.ParseDuration(q.ClaimTimeout); err != nil {
		errs = append(errs, fmt.Errorf("claim_timeout: %w", err))
	} else if d < time.Second {
		errs = append(errs, fmt.Errorf("claim_timeout must be >=1s, is: %s", d))
	}

	if q.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("worker_concurrency must be >=1, is: %d", q.WorkerConcurrency))
	}

	return errors.Join(errs...)
}

// WorkerIntervalDuration returns the parsed WorkerInterval.
// It must only be called on validated configurations.
func (q *MergeQueue) WorkerIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(q.WorkerInterval)
	return d
}

// ClaimTimeoutDuration returns the parsed ClaimTimeout.
// It must only be called on validated configurations.
func (q *MergeQueue) ClaimTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(q.ClaimTimeout)
	return d
}
