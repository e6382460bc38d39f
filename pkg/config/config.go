package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Sync         SyncConfig
	Webhooks     WebhooksConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYSYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PAYSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN string `envconfig:"PAYSYNC_DB_DSN"`

	LegacyHost     string `envconfig:"PAYSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYSYNC_DB_USER"`
	LegacyPassword string `envconfig:"PAYSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYSYNC_REDIS_URL"`
	Address      string        `envconfig:"PAYSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"PAYSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PAYSYNC_STRIPE_API_KEY" required:"true"`
	Secret string `envconfig:"PAYSYNC_STRIPE_SECRET" required:"true"`
	Env    string `envconfig:"PAYSYNC_STRIPE_ENV" default:"test"`
	// URL overrides the Stripe API base, used against stripe-mock.
	URL string `envconfig:"PAYSYNC_STRIPE_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// JWTConfig verifies operator bearer tokens on the charge endpoints.
type JWTConfig struct {
	Secret            string `envconfig:"PAYSYNC_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PAYSYNC_JWT_ISSUER" default:"paysync"`
	ExpirationMinutes int    `envconfig:"PAYSYNC_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PAYSYNC_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// SyncConfig tunes charge reconciliation.
type SyncConfig struct {
	Retries int           `envconfig:"PAYSYNC_SYNC_RETRIES" default:"1"`
	Backoff time.Duration `envconfig:"PAYSYNC_SYNC_BACKOFF" default:"100ms"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PAYSYNC_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"PAYSYNC_CRON_INTERVAL" default:"1h"`
	ReconcileLimit  int           `envconfig:"PAYSYNC_CRON_RECONCILE_LIMIT" default:"250"`
	ReconcileWindow time.Duration `envconfig:"PAYSYNC_CRON_RECONCILE_LOOKBACK" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PAYSYNC_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
