package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/worknest/messaging-api/internal/utils/sanitize"
)

// Config holds all configuration for the messaging-api service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"messaging-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"MESSAGING_API_PORT" envDefault:"8190"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	LogPIILevel     string        `env:"LOG_PII_LEVEL" envDefault:"hashed"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database. An empty URL runs the service on the in-memory store.
	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DBAutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	DBCreateIfMissing bool          `env:"DB_CREATE_IF_MISSING" envDefault:"true"`
	DBSlowQuery       time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// OpenTelemetry
	EnableTracing bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint  string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TraceSampling float64 `env:"OTEL_TRACE_SAMPLE_RATIO" envDefault:"1"`

	// Auth (Keycloak). Gateway identity headers are trusted only when
	// TRUST_GATEWAY_HEADERS is set, or by default when JWT auth is off.
	// X-User-Roles is ignored unless TRUST_GATEWAY_ROLES is also set.
	AuthEnabled       bool          `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer        string        `env:"ISSUER"`
	AuthAudience      string        `env:"AUDIENCE"`
	AuthJWKSURL       string        `env:"JWKS_URL"`
	AuthJWKSRefresh   time.Duration `env:"AUTH_JWKS_REFRESH_INTERVAL" envDefault:"5m"`
	AuthClockSkew     time.Duration `env:"AUTH_CLOCK_SKEW" envDefault:"60s"`
	TrustGatewayAuth  bool          `env:"TRUST_GATEWAY_HEADERS"`
	TrustGatewayRoles bool          `env:"TRUST_GATEWAY_ROLES" envDefault:"false"`

	// HTTP edge
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitPerMinute float64  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"600"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"60"`
	RateLimitKeys      int      `env:"RATE_LIMIT_TRACKED_KEYS" envDefault:"10000"`

	// Messaging
	MessagePageSize   int `env:"MESSAGE_PAGE_SIZE" envDefault:"50"`
	MessagePageMax    int `env:"MESSAGE_PAGE_MAX" envDefault:"200"`
	MessageMaxLength  int `env:"MESSAGE_MAX_LENGTH" envDefault:"10000"`
	SearchResultLimit int `env:"SEARCH_RESULT_LIMIT" envDefault:"50"`
	SyncPageMax       int `env:"SYNC_PAGE_MAX" envDefault:"500"`
	UserCacheSize     int `env:"USER_CACHE_SIZE" envDefault:"4096"`
	AttachmentListMax int `env:"ATTACHMENT_LIST_MAX" envDefault:"500"`
	GroupMemberLimit  int `env:"GROUP_MEMBER_LIMIT" envDefault:"500"`
	AttachmentsPerMsg int `env:"MAX_ATTACHMENTS_PER_MESSAGE" envDefault:"10"`

	// SyncLag holds the poll cursor behind the server clock so writes that
	// commit late are still picked up.
	SyncLag time.Duration `env:"SYNC_LAG" envDefault:"5s"`

	// Presence
	PresenceBackend string        `env:"PRESENCE_BACKEND" envDefault:"memory"`
	PresenceTTL     time.Duration `env:"PRESENCE_TTL" envDefault:"5s"`
	PresenceShards  int           `env:"PRESENCE_SHARDS" envDefault:"32"`
	RedisURL        string        `env:"REDIS_URL"`

	// Attachments
	AttachmentStorage       string        `env:"ATTACHMENT_STORAGE" envDefault:"local"`
	AttachmentMaxBytes      int64         `env:"ATTACHMENT_MAX_BYTES" envDefault:"20971520"`
	AttachmentLocalPath     string        `env:"ATTACHMENT_LOCAL_PATH" envDefault:"./data/attachments"`
	AttachmentPublicBaseURL string        `env:"ATTACHMENT_PUBLIC_BASE_URL"`
	S3Endpoint              string        `env:"ATTACHMENT_S3_ENDPOINT"`
	S3Region                string        `env:"ATTACHMENT_S3_REGION" envDefault:"us-east-1"`
	S3Bucket                string        `env:"ATTACHMENT_S3_BUCKET"`
	S3AccessKeyID           string        `env:"ATTACHMENT_S3_ACCESS_KEY_ID"`
	S3SecretKey             string        `env:"ATTACHMENT_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle          bool          `env:"ATTACHMENT_S3_USE_PATH_STYLE" envDefault:"true"`
	S3PresignTTL            time.Duration `env:"ATTACHMENT_S3_PRESIGN_TTL" envDefault:"24h"`
}

// Load parses configuration from struct defaults, an optional YAML file named by
// CONFIG_FILE and the process environment, in increasing order of precedence.
func Load() (*Config, error) {
	environment, err := mergedEnvironment(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return LoadFrom(environment)
}

// LoadFrom parses configuration from the given key/value environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if _, set := environment["TRUST_GATEWAY_HEADERS"]; !set {
		cfg.TrustGatewayAuth = !cfg.AuthEnabled
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthAudience) == "" {
			return fmt.Errorf("AUDIENCE is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("JWKS_URL is required when AUTH_ENABLED is true")
		}
	}

	if _, err := sanitize.ParseLevel(c.LogPIILevel); err != nil {
		return fmt.Errorf("LOG_PII_LEVEL: %w", err)
	}

	switch strings.ToLower(c.PresenceBackend) {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required when PRESENCE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("unsupported PRESENCE_BACKEND %q", c.PresenceBackend)
	}
	if c.TraceSampling < 0 || c.TraceSampling > 1 {
		return fmt.Errorf("OTEL_TRACE_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.PresenceTTL <= 0 {
		return fmt.Errorf("PRESENCE_TTL must be positive")
	}
	if c.SyncLag < 0 {
		return fmt.Errorf("SYNC_LAG must not be negative")
	}

	switch strings.ToLower(c.AttachmentStorage) {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported ATTACHMENT_STORAGE %q", c.AttachmentStorage)
	}

	if c.MessagePageSize <= 0 || c.MessagePageMax < c.MessagePageSize {
		return fmt.Errorf("MESSAGE_PAGE_SIZE must be positive and not exceed MESSAGE_PAGE_MAX")
	}
	if c.SearchResultLimit <= 0 {
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be positive")
	}
	return nil
}

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UsesInMemoryStore reports whether no database is configured.
func (c *Config) UsesInMemoryStore() bool {
	return strings.TrimSpace(c.DatabaseURL) == ""
}
