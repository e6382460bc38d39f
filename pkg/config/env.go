package config

// EnvPrefix is passed to envconfig; every field carries an explicit key so the
// prefix only matters for untagged fields.
const EnvPrefix = "PAYSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "PAYSYNC_APP_ENV"
	EnvPort         = "PAYSYNC_APP_PORT"
	EnvDBDSN        = "PAYSYNC_DB_DSN"
	EnvDBHost       = "PAYSYNC_DB_HOST"
	EnvDBUser       = "PAYSYNC_DB_USER"
	EnvDBName       = "PAYSYNC_DB_NAME"
	EnvDBPassword   = "PAYSYNC_DB_PASSWORD"
	EnvRedisURL     = "PAYSYNC_REDIS_URL"
	EnvStripeAPIKey = "PAYSYNC_STRIPE_API_KEY"
	EnvStripeSecret = "PAYSYNC_STRIPE_SECRET"
	EnvStripeEnv    = "PAYSYNC_STRIPE_ENV"
	EnvSyncRetries  = "PAYSYNC_SYNC_RETRIES"
	EnvSyncBackoff  = "PAYSYNC_SYNC_BACKOFF"
	EnvJWTSecret    = "PAYSYNC_JWT_SECRET"
	EnvCORSOrigins  = "PAYSYNC_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
