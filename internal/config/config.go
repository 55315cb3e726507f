// Package config loads the gateway configuration from environment variables.
// Every variable is prefixed with MESHGATE_; all knobs except the engine
// endpoint have working defaults.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration of the gateway.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// TelemetryEnabled turns on the OTLP exporters; the collector endpoint
	// comes from the standard OTEL_EXPORTER_OTLP_* variables.
	TelemetryEnabled bool `envconfig:"TELEMETRY_ENABLED" default:"false"`

	// EngineRPCEndpoint is the JSON-RPC URL of the procedure engine node.
	EngineRPCEndpoint  string        `envconfig:"ENGINE_RPC_ENDPOINT" required:"true"`
	EnginePollInterval time.Duration `envconfig:"ENGINE_POLL_INTERVAL" default:"2s"`

	// SubscriptionTTL is how long a subscription stays eligible for
	// notifications after creation. Zero disables expiry.
	SubscriptionTTL time.Duration `envconfig:"SUBSCRIPTION_TTL" default:"24h"`

	HandshakeMaxAttempts   uint          `envconfig:"HANDSHAKE_MAX_ATTEMPTS" default:"5"`
	HandshakeRetryInterval time.Duration `envconfig:"HANDSHAKE_RETRY_INTERVAL" default:"1m"`

	NotificationMaxRetries      int           `envconfig:"NOTIFICATION_MAX_RETRIES" default:"4"`
	NotificationRetryWaitMin    time.Duration `envconfig:"NOTIFICATION_RETRY_WAIT_MIN" default:"1s"`
	NotificationRetryWaitMax    time.Duration `envconfig:"NOTIFICATION_RETRY_WAIT_MAX" default:"30s"`
	NotificationDeliveryTimeout time.Duration `envconfig:"NOTIFICATION_DELIVERY_TIMEOUT" default:"10s"`

	// RedisAddr selects the redis storage backend when set; otherwise state
	// is kept in memory and lost on restart.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// UsesRedis reports whether the redis storage backend is configured.
func (c Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("meshgate", &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
