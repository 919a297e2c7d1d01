package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Bootstrap    BootstrapConfig
	RateLimit    AuthRateLimitConfig
	Tax          TaxConfig
	Mpesa        MpesaConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

// Load reads SMES_* variables, derives the database DSN when only discrete
// fields are given, and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SMES_APP_ENV" required:"true"`
	Port         string   `envconfig:"SMES_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SMES_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SMES_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"SMES_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"SMES_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SMES_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SMES_DB_DSN"`
	Driver string `envconfig:"SMES_DB_DRIVER" default:"postgres"`

	// Discrete connection fields, used only when SMES_DB_DSN is unset.
	Host     string `envconfig:"SMES_DB_HOST"`
	Port     int    `envconfig:"SMES_DB_PORT" default:"5432"`
	User     string `envconfig:"SMES_DB_USER"`
	Password string `envconfig:"SMES_DB_PASSWORD"`
	Name     string `envconfig:"SMES_DB_NAME"`
	SSLMode  string `envconfig:"SMES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SMES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SMES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SMES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SMES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SMES_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SMES_REDIS_URL"`
	Address      string        `envconfig:"SMES_REDIS_ADDR"`
	Password     string        `envconfig:"SMES_REDIS_PASSWORD"`
	DB           int           `envconfig:"SMES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SMES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SMES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SMES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SMES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SMES_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SMES_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SMES_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SMES_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SMES_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL is zero when unset or negative.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return minutes(j.RefreshTokenTTLMinutes)
}

func minutes(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SMES_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SMES_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SMES_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SMES_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SMES_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"SMES_AUTO_MIGRATE" default:"false"`
	SharedMpesaTokens bool `envconfig:"SMES_FEATURE_SHARED_MPESA_TOKENS" default:"false"`
}

// BootstrapConfig seeds the first administrator on an empty user table.
type BootstrapConfig struct {
	AdminUsername string `envconfig:"SMES_BOOTSTRAP_ADMIN_USERNAME"`
	AdminPassword string `envconfig:"SMES_BOOTSTRAP_ADMIN_PASSWORD"`
}

// Enabled reports whether both bootstrap credentials are present.
func (b BootstrapConfig) Enabled() bool {
	return strings.TrimSpace(b.AdminUsername) != "" && b.AdminPassword != ""
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SMES_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"15m"`
	LoginIPLimit       int           `envconfig:"SMES_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginUsernameLimit int           `envconfig:"SMES_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
}

// TaxConfig holds the VAT rate embedded in every shelf price.
type TaxConfig struct {
	Rate float64 `envconfig:"SMES_TAX_RATE" default:"0.16"`
}

type MpesaConfig struct {
	BaseURL           string        `envconfig:"SMES_MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey       string        `envconfig:"SMES_MPESA_CONSUMER_KEY"`
	ConsumerSecret    string        `envconfig:"SMES_MPESA_CONSUMER_SECRET"`
	ShortCode         string        `envconfig:"SMES_MPESA_SHORTCODE" default:"174379"`
	Passkey           string        `envconfig:"SMES_MPESA_PASSKEY"`
	CallbackURL       string        `envconfig:"SMES_MPESA_CALLBACK_URL"`
	TransactionType   string        `envconfig:"SMES_MPESA_TRANSACTION_TYPE" default:"CustomerPayBillOnline"`
	TokenExpiryBuffer time.Duration `envconfig:"SMES_MPESA_TOKEN_EXPIRY_BUFFER" default:"5m"`
	RequestTimeout    time.Duration `envconfig:"SMES_MPESA_REQUEST_TIMEOUT" default:"15s"`
}

// Enabled reports whether credentials for the gateway are configured.
func (m MpesaConfig) Enabled() bool {
	return strings.TrimSpace(m.ConsumerKey) != "" && strings.TrimSpace(m.ConsumerSecret) != ""
}

type CronConfig struct {
	Interval               time.Duration `envconfig:"SMES_CRON_INTERVAL" default:"24h"`
	OutboxRetentionDays    int           `envconfig:"SMES_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	ExpiredRemovalDisabled bool          `envconfig:"SMES_CRON_EXPIRED_REMOVAL_DISABLED" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SMES_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SMES_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SMES_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SalesTopic     string `envconfig:"SMES_PUBSUB_SALES_TOPIC" default:"smes-sales-events"`
	InventoryTopic string `envconfig:"SMES_PUBSUB_INVENTORY_TOPIC" default:"smes-inventory-events"`
	PaymentsTopic  string `envconfig:"SMES_PUBSUB_PAYMENTS_TOPIC" default:"smes-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SMES_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SMES_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SMES_OUTBOX_MAX_ATTEMPTS" default:"10"`
}
