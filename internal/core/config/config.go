package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultPath = "./configs/config.local.yaml"

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type App struct {
	Name string
	Env  string // development / production
	HTTP HTTP
}

type Log struct {
	Level      string
	JSON       bool
	File       string // empty disables the rotated file sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
	SlowThresholdMs    int
}

type Security struct {
	BcryptCost         int
	RateLimitRPS       float64 // global token bucket
	RateLimitBurst     int
	AuthRateLimit      int // requests per AuthRateWindowSec per client IP on /auth/*
	AuthRateWindowSec  int
	MaxInFlight        int64
	MaxBodyBytes       int64
	RequestTimeoutSec  int
	CORSAllowedOrigins []string
}

// Admin is an optional account created (or promoted) at startup.
type Admin struct {
	Email    string
	Name     string
	Password string
}

type Proverb struct {
	URL                string
	TimeoutSec         int
	InsecureSkipVerify bool
}

type Tracing struct {
	Endpoint string // OTLP gRPC collector, empty disables tracing
	Insecure bool
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	DB       DB
	Redis    Redis
	Security Security
	Admin    Admin
	Proverb  Proverb
	Tracing  Tracing
}

func (c *Config) IsProduction() bool { return strings.EqualFold(c.App.Env, "production") }

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenTTLMin) * time.Minute
}

// Validate reports settings the process cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not supported", c.DB.Driver))
	}
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	} else if c.IsProduction() && len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("jwt.secret must be at least 32 bytes in production"))
	}
	if c.JWT.AccessTokenTTLMin <= 0 {
		errs = append(errs, errors.New("jwt.accessTokenTTLMin must be positive"))
	}
	if c.App.HTTP.Port <= 0 || c.App.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.http.port %d out of range", c.App.HTTP.Port))
	}
	if c.Proverb.URL == "" {
		errs = append(errs, errors.New("proverb.url is required"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "user-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 3000)
	v.SetDefault("app.http.readTimeoutSec", 10)
	v.SetDefault("app.http.writeTimeoutSec", 15)
	v.SetDefault("app.http.idleTimeoutSec", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", 100)
	v.SetDefault("log.maxBackups", 7)
	v.SetDefault("log.maxAgeDays", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "user-api")
	v.SetDefault("jwt.accessTokenTTLMin", 60)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:user-api.db?_foreign_keys=on")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("db.logLevel", "warn")
	v.SetDefault("db.slowThresholdMs", 200)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.bcryptCost", 10)
	v.SetDefault("security.rateLimitRPS", 200)
	v.SetDefault("security.rateLimitBurst", 400)
	v.SetDefault("security.authRateLimit", 10)
	v.SetDefault("security.authRateWindowSec", 60)
	v.SetDefault("security.maxInFlight", 300)
	v.SetDefault("security.maxBodyBytes", 1<<20)
	v.SetDefault("security.requestTimeoutSec", 10)
	v.SetDefault("security.corsAllowedOrigins", []string{})

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.name", "Administrator")
	v.SetDefault("admin.password", "")

	v.SetDefault("proverb.url", "https://api.quotable.io/random?tags=wisdom")
	v.SetDefault("proverb.timeoutSec", 5)
	v.SetDefault("proverb.insecureSkipVerify", false)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
}

// Read loads YAML from path (or CONFIG_PATH, or the local default) and
// overlays APP_* environment variables, e.g. APP_JWT_SECRET for jwt.secret.
// A missing file is only tolerated when no path was given explicitly.
func Read(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = defaultPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Load is Read for process startup: any error is fatal.
func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}
