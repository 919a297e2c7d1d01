package config

// EnvPrefix is handed to envconfig; every field carries its full name in the tag.
const EnvPrefix = "SMES"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "SMES_APP_ENV"
	EnvPort     = "SMES_APP_PORT"
	EnvLogLevel = "SMES_LOG_LEVEL"

	EnvDBDSN  = "SMES_DB_DSN"
	EnvDBHost = "SMES_DB_HOST"
	EnvDBUser = "SMES_DB_USER"
	EnvDBName = "SMES_DB_NAME"

	EnvRedisURL  = "SMES_REDIS_URL"
	EnvRedisAddr = "SMES_REDIS_ADDR"

	EnvJWTSecret              = "SMES_JWT_SECRET"
	EnvJWTIssuer              = "SMES_JWT_ISSUER"
	EnvJWTExpMins             = "SMES_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SMES_REFRESH_TOKEN_TTL_MINUTES"

	EnvTaxRate = "SMES_TAX_RATE"

	EnvMpesaConsumerKey    = "SMES_MPESA_CONSUMER_KEY"
	EnvMpesaConsumerSecret = "SMES_MPESA_CONSUMER_SECRET"
	EnvMpesaPasskey        = "SMES_MPESA_PASSKEY"
	EnvMpesaCallbackURL    = "SMES_MPESA_CALLBACK_URL"

	EnvGCPProjectID     = "SMES_GCP_PROJECT_ID"
	EnvPubSubSalesTopic = "SMES_PUBSUB_SALES_TOPIC"
	EnvCronInterval     = "SMES_CRON_INTERVAL"
	EnvOutboxBatchSize  = "SMES_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvLoginWindow      = "SMES_AUTH_RATE_LIMIT_LOGIN_WINDOW"
)
