package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every velastore environment variable.
	EnvPrefix = "VELASTORE"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error text).
const (
	EnvAppEnv   = "VELASTORE_APP_ENV"
	EnvPort     = "VELASTORE_APP_PORT"
	EnvDBDSN    = "VELASTORE_DB_DSN"
	EnvDBHost   = "VELASTORE_DB_HOST"
	EnvDBUser   = "VELASTORE_DB_USER"
	EnvDBName   = "VELASTORE_DB_NAME"
	EnvRedisURL = "VELASTORE_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Supplier     SupplierConfig
	Sync         SyncConfig
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
	Env          string `envconfig:"VELASTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"VELASTORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VELASTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VELASTORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VELASTORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VELASTORE_DB_DSN"`
	Driver string `envconfig:"VELASTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VELASTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"VELASTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VELASTORE_DB_USER"`
	LegacyPassword string `envconfig:"VELASTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"VELASTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"VELASTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VELASTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VELASTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VELASTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VELASTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VELASTORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VELASTORE_REDIS_ADDR"`
	Password     string        `envconfig:"VELASTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"VELASTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VELASTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VELASTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VELASTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VELASTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VELASTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VELASTORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VELASTORE_AUTO_MIGRATE" default:"false"`
}

// SupplierConfig describes how to reach the dropshipping supplier API.
// The API key itself lives in the supplier_settings row so it can be rotated
// from the admin surface without a deploy; the env value only seeds it.
type SupplierConfig struct {
	BaseURL        string        `envconfig:"VELASTORE_SUPPLIER_BASE_URL" default:"https://developers.cjdropshipping.com/api2.0/v1"`
	RequestTimeout time.Duration `envconfig:"VELASTORE_SUPPLIER_REQUEST_TIMEOUT" default:"45s"`
	RatePerSecond  float64       `envconfig:"VELASTORE_SUPPLIER_RATE_PER_SECOND" default:"1"`
	RateBurst      int           `envconfig:"VELASTORE_SUPPLIER_RATE_BURST" default:"3"`
	OriginCountry  string        `envconfig:"VELASTORE_SUPPLIER_ORIGIN_COUNTRY" default:"CN"`
}

// SyncConfig tunes the catalog sync engine and its worker loop.
type SyncConfig struct {
	HomeCountry       string        `envconfig:"VELASTORE_SYNC_HOME_COUNTRY" default:"US"`
	MaxConcurrent     int           `envconfig:"VELASTORE_SYNC_MAX_CONCURRENT" default:"4"`
	ProductCooldown   time.Duration `envconfig:"VELASTORE_SYNC_PRODUCT_COOLDOWN" default:"30m"`
	IdleSleep         time.Duration `envconfig:"VELASTORE_SYNC_IDLE_SLEEP" default:"5m"`
	ProductDelay      time.Duration `envconfig:"VELASTORE_SYNC_PRODUCT_DELAY" default:"30s"`
	VariantDelay      time.Duration `envconfig:"VELASTORE_SYNC_VARIANT_DELAY" default:"5s"`
	CrashCooldown     time.Duration `envconfig:"VELASTORE_SYNC_CRASH_COOLDOWN" default:"1m"`
	ProductLockTTL    time.Duration `envconfig:"VELASTORE_SYNC_PRODUCT_LOCK_TTL" default:"10m"`
	WorkerLockTTL     time.Duration `envconfig:"VELASTORE_SYNC_WORKER_LOCK_TTL" default:"24h"`
	WebhookIdemTTL    time.Duration `envconfig:"VELASTORE_SYNC_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
	WebhookSecret     string        `envconfig:"VELASTORE_SYNC_WEBHOOK_SECRET"`
	JitterFraction    float64       `envconfig:"VELASTORE_SYNC_JITTER_FRACTION" default:"0.1"`
	TriggerRateLimit  int64         `envconfig:"VELASTORE_SYNC_TRIGGER_RATE_LIMIT" default:"30"`
	TriggerRateWindow time.Duration `envconfig:"VELASTORE_SYNC_TRIGGER_RATE_WINDOW" default:"1m"`
	StockRetries      int           `envconfig:"VELASTORE_SYNC_STOCK_RETRIES" default:"3"`
	StockRetryDelay   time.Duration `envconfig:"VELASTORE_SYNC_STOCK_RETRY_DELAY" default:"500ms"`
	FreightRetries    int           `envconfig:"VELASTORE_SYNC_FREIGHT_RETRIES" default:"3"`
	FreightRetryDelay time.Duration `envconfig:"VELASTORE_SYNC_FREIGHT_RETRY_DELAY" default:"1s"`
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
