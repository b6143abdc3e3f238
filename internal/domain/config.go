package domain

import (
	"os"
	"strconv"
	"time"
)

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Monitor    MonitorConfig    `json:"monitor"`
	Advisory   AdvisoryConfig   `json:"advisory"`
	Notify     NotifyConfig     `json:"notify"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// MonitorConfig holds the background monitor settings.
type MonitorConfig struct {
	// PollInterval is the pause between continuous-mode cycles.
	PollInterval time.Duration `json:"pollInterval"`

	// OfferBaseURL prefixes secure offer links in notifications.
	OfferBaseURL string `json:"offerBaseUrl"`
}

// AdvisoryConfig holds settings for the external advisory service.
type AdvisoryConfig struct {
	// Endpoint is the advisory service URL. Empty selects the built-in
	// heuristic advisor.
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"-"`
	Timeout  time.Duration `json:"timeout"`
}

// NotifyConfig holds settings for the notification transport.
type NotifyConfig struct {
	// ProviderURL is the transport provider API base. Empty disables
	// real delivery (every send fails terminally with a config reason).
	ProviderURL string `json:"providerUrl"`
	AccountSID  string `json:"accountSid"`
	AuthToken   string `json:"-"`

	// From is the sender channel address (e.g. "whatsapp:+14155238886").
	From string `json:"from"`

	// RetryDelay is the fixed pause between transient-failure retries.
	RetryDelay time.Duration `json:"retryDelay"`

	// Timeout bounds a single transport call.
	Timeout time.Duration `json:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns the single-node default configuration:
// SQLite, in-memory LRU cache, channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Monitor: MonitorConfig{
			PollInterval: 60 * time.Second,
			OfferBaseURL: "http://localhost:8080",
		},
		Advisory: AdvisoryConfig{
			Timeout: 10 * time.Second,
		},
		Notify: NotifyConfig{
			RetryDelay: 2 * time.Second,
			Timeout:    15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ConfigFromEnv returns the default configuration overridden by
// HARRIER_* environment variables.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("HARRIER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HARRIER_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("HARRIER_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("HARRIER_PG_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("HARRIER_PG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Repository.PostgresPort = port
		}
	}
	if v := os.Getenv("HARRIER_PG_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("HARRIER_PG_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("HARRIER_PG_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("HARRIER_CACHE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("HARRIER_REDIS_ADDR"); v != "" {
		cfg.Cache.Type = "redis"
		cfg.Cache.RedisAddr = v
		cfg.Cache.EnableTwoPhase = true
	}
	if v := os.Getenv("HARRIER_BUS"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("HARRIER_NATS_URL"); v != "" {
		cfg.EventBus.Type = "nats"
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("HARRIER_POLL_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Monitor.PollInterval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("HARRIER_OFFER_BASE_URL"); v != "" {
		cfg.Monitor.OfferBaseURL = v
	}
	if v := os.Getenv("HARRIER_ADVISORY_ENDPOINT"); v != "" {
		cfg.Advisory.Endpoint = v
	}
	if v := os.Getenv("HARRIER_ADVISORY_API_KEY"); v != "" {
		cfg.Advisory.APIKey = v
	}
	if v := os.Getenv("HARRIER_NOTIFY_PROVIDER_URL"); v != "" {
		cfg.Notify.ProviderURL = v
	}
	if v := os.Getenv("HARRIER_NOTIFY_ACCOUNT_SID"); v != "" {
		cfg.Notify.AccountSID = v
	}
	if v := os.Getenv("HARRIER_NOTIFY_AUTH_TOKEN"); v != "" {
		cfg.Notify.AuthToken = v
	}
	if v := os.Getenv("HARRIER_NOTIFY_FROM"); v != "" {
		cfg.Notify.From = v
	}
	if os.Getenv("HARRIER_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
	if os.Getenv("HARRIER_TRACING") == "true" {
		cfg.Tracing.Enabled = true
	}

	return cfg
}
