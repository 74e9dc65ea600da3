package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LEAZR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "LEAZR_APP_ENV"
	EnvPort       = "LEAZR_APP_PORT"
	EnvDBDSN      = "LEAZR_DB_DSN"
	EnvDBHost     = "LEAZR_DB_HOST"
	EnvDBUser     = "LEAZR_DB_USER"
	EnvDBName     = "LEAZR_DB_NAME"
	EnvRedisURL   = "LEAZR_REDIS_URL"
	EnvJWTSecret  = "LEAZR_JWT_SECRET"
	EnvJWTIssuer  = "LEAZR_JWT_ISSUER"
	EnvJWTExpMins = "LEAZR_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Calculator   CalculatorConfig
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
	Env          string `envconfig:"LEAZR_APP_ENV" required:"true"`
	Port         string `envconfig:"LEAZR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEAZR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEAZR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LEAZR_DB_DSN"`
	Driver string `envconfig:"LEAZR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEAZR_DB_HOST"`
	LegacyPort     int    `envconfig:"LEAZR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEAZR_DB_USER"`
	LegacyPassword string `envconfig:"LEAZR_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEAZR_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEAZR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEAZR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEAZR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEAZR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEAZR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEAZR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEAZR_REDIS_ADDR"`
	Password     string        `envconfig:"LEAZR_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEAZR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEAZR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEAZR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEAZR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEAZR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEAZR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LEAZR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEAZR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LEAZR_JWT_EXPIRATION_MINUTES" required:"true"`
}

// CalculatorConfig carries quote defaults applied when an offer omits them.
type CalculatorConfig struct {
	DefaultDurationMonths int `envconfig:"LEAZR_CALC_DEFAULT_DURATION_MONTHS" default:"36"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEAZR_AUTO_MIGRATE" default:"false"`
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
