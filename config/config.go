// Package config loads the service configuration from YAML and the
// environment with a fixed priority order.
package config

import (
	"fmt"
	"os"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/ilyakaznacheev/cleanenv"
)

// devJWTSecret is only accepted when env is "local".
const devJWTSecret = "your_secret_key_please_change_in_production"

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	App      AppConfig      `yaml:"app"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	S3       S3Config       `yaml:"s3"`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	CORSOrigins       []string      `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://127.0.0.1:5173,http://localhost:3001,http://127.0.0.1:3001"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// AppConfig holds the matching defaults. DefaultMaxDistanceKm < 0 means no
// distance limit.
type AppConfig struct {
	Namespace            string  `yaml:"namespace" env:"APP_NAMESPACE" env-default:"vibetribe"`
	DefaultMinAge        int     `yaml:"default_min_age" env:"APP_DEFAULT_MIN_AGE" env-default:"18"`
	DefaultMaxAge        int     `yaml:"default_max_age" env:"APP_DEFAULT_MAX_AGE" env-default:"99"`
	DefaultMaxDistanceKm float64 `yaml:"default_max_distance_km" env:"APP_DEFAULT_MAX_DISTANCE_KM" env-default:"-1"`
}

type StoreConfig struct {
	Driver     string        `yaml:"driver" env:"STORE_DRIVER" env-default:"postgres"`
	Timeout    time.Duration `yaml:"timeout" env:"STORE_TIMEOUT" env-default:"3s"`
	MaxRetries uint64        `yaml:"max_retries" env:"STORE_MAX_RETRIES" env-default:"2"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
	// SkipMigrate leaves the schema alone on start. cleanenv would override
	// an explicit false with a true default, so the flag is negative.
	SkipMigrate bool `yaml:"skip_migrate" env:"POSTGRES_SKIP_MIGRATE"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"vibetribe"`
}

type CacheConfig struct {
	Driver string        `yaml:"driver" env:"CACHE_DRIVER" env-default:"memory"`
	TTL    time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"30s"`
	Size   int           `yaml:"size" env:"CACHE_SIZE" env-default:"1024"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// RabbitMQConfig with an empty URL disables profile events.
type RabbitMQConfig struct {
	URL string `yaml:"url" env:"RABBITMQ_URL"`
}

// S3Config with an empty endpoint disables presigned avatars.
type S3Config struct {
	Endpoint      string        `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey     string        `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey     string        `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Bucket        string        `yaml:"bucket" env:"S3_BUCKET" env-default:"avatars"`
	PresignTTL    time.Duration `yaml:"presign_ttl" env:"S3_PRESIGN_TTL" env-default:"10m"`
	PublicBaseURL string        `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

// DefaultFilters are applied when a request carries no filters and the user
// has none saved.
func (a AppConfig) DefaultFilters() match.Filters {
	f := match.DefaultFilters()
	f.MinAge = a.DefaultMinAge
	f.MaxAge = a.DefaultMaxAge
	f.MaxDistanceKm = a.DefaultMaxDistanceKm
	return f
}

// MustLoad panics when Load fails.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads, in priority order: 1) explicit path; 2) CONFIG_PATH;
// 3) ./local.yaml; 4) ENV only.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return &cfg, nil
	}

	var (
		c   *Config
		err error
	)
	switch envPath := os.Getenv("CONFIG_PATH"); {
	case path != "":
		c, err = tryRead(path)
	case envPath != "":
		c, err = tryRead(envPath)
	default:
		if _, statErr := os.Stat("local.yaml"); statErr == nil {
			c, err = tryRead("local.yaml")
		} else {
			if err := cleanenv.ReadEnv(&cfg); err != nil {
				return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
			}
			c = &cfg
		}
	}
	if err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case "local", "dev", "prod":
	default:
		return fmt.Errorf("env must be one of local, dev, prod")
	}

	if c.Auth.JWTSecret == "" {
		if c.Env != "local" {
			return fmt.Errorf("auth.jwt_secret is required outside local")
		}
		c.Auth.JWTSecret = devJWTSecret
	}

	if c.App.Namespace == "" {
		return fmt.Errorf("app.namespace is required")
	}
	if err := c.App.DefaultFilters().Validate(); err != nil {
		return fmt.Errorf("app default filters: %w", err)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres.url is required for the postgres store")
		}
	case "mongo":
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("mongo.uri and mongo.database are required for the mongo store")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be one of postgres, mongo, memory")
	}
	if c.Store.Timeout < 0 {
		return fmt.Errorf("store.timeout must be >= 0")
	}

	switch c.Cache.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis cache")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("cache.driver must be one of redis, memory, none")
	}
	if c.Cache.TTL <= 0 && c.Cache.Driver != "none" {
		return fmt.Errorf("cache.ttl must be > 0")
	}

	if c.S3.Endpoint != "" {
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when s3.endpoint is set")
		}
		if c.S3.PresignTTL <= 0 {
			return fmt.Errorf("s3.presign_ttl must be > 0")
		}
	}

	return nil
}
