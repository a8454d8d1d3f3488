package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Client struct {
		BaseURL        string        `envconfig:"API_BASE_URL" default:"http://localhost:3333/api/v1"`
		RefreshPath    string        `envconfig:"API_REFRESH_PATH" default:"/auth/refresh"`
		Timeout        time.Duration `envconfig:"API_TIMEOUT" default:"10s"`
		RefreshTimeout time.Duration `envconfig:"API_REFRESH_TIMEOUT" default:"10s"`
		HealthInterval time.Duration `envconfig:"API_HEALTH_INTERVAL" default:"30s"`
		HealthTimeout  time.Duration `envconfig:"API_HEALTH_TIMEOUT" default:"5s"`
	}
	Session struct {
		Backend     string `envconfig:"SESSION_BACKEND" default:"file"`
		StorageKey  string `envconfig:"SESSION_STORAGE_KEY" default:"auth-storage"`
		FilePath    string `envconfig:"SESSION_FILE_PATH" default:".budgetwise/session.json"`
		DynamoTable string `envconfig:"SESSION_DYNAMODB_TABLE" default:"BudgetWiseSessions"`
	}
	Redis struct {
		Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
		Password string `envconfig:"REDIS_PASSWORD"`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
	}
	Postgres struct {
		MaxConns          int32         `envconfig:"PGX_MAX_CONNS" default:"4"`
		MinConns          int32         `envconfig:"PGX_MIN_CONNS" default:"0"`
		MaxConnLifetime   time.Duration `envconfig:"PGX_MAX_CONN_LIFETIME" default:"30m"`
		MaxConnIdleTime   time.Duration `envconfig:"PGX_MAX_CONN_IDLE_TIME" default:"5m"`
		HealthCheckPeriod time.Duration `envconfig:"PGX_HEALTH_CHECK_PERIOD" default:"1m"`
		ConnectTimeout    time.Duration `envconfig:"PGX_CONNECT_TIMEOUT" default:"5s"`
	}
	Database struct {
		Host     string `envconfig:"DB_HOST"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER"`
		Password string `envconfig:"DB_PASSWORD"`
		Name     string `envconfig:"DB_NAME"`
		SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	}
	DynamoDB struct {
		Endpoint string `envconfig:"DYNAMODB_ENDPOINT"`
		Region   string `envconfig:"AWS_REGION" default:"us-east-1"`
	}
	Log struct {
		Level     string `envconfig:"LOG_LEVEL" default:"info"`
		Format    string `envconfig:"LOG_FORMAT" default:"text"`
		AddSource bool   `envconfig:"LOG_ADD_SOURCE" default:"false"`
	}
	Server struct {
		Port         string        `envconfig:"SERVER_PORT" default:"3333"`
		ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
		WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
		IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	}
	Auth struct {
		JWTSecret       string        `envconfig:"AUTH_JWT_SECRET" default:"budgetwise-dev-secret"`
		PasswordPepper  string        `envconfig:"AUTH_PASSWORD_PEPPER" default:"budgetwise-dev-pepper"`
		AccessTokenTTL  time.Duration `envconfig:"AUTH_ACCESS_TOKEN_TTL" default:"15m"`
		RefreshTokenTTL time.Duration `envconfig:"AUTH_REFRESH_TOKEN_TTL" default:"168h"`
		// Verification codes are logged instead of mailed by the dev server.
		VerificationTTL time.Duration `envconfig:"AUTH_VERIFICATION_TTL" default:"15m"`
		TokenStore      string        `envconfig:"AUTH_TOKEN_STORE" default:"memory"`
		DynamoTable     string        `envconfig:"AUTH_DYNAMODB_TABLE" default:"BudgetWiseAuth"`
	}
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config from environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case "memory", "file", "redis", "dynamodb":
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("postgres session backend requires DB_HOST and DB_NAME")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.StorageKey == "" {
		return errors.New("SESSION_STORAGE_KEY must not be empty")
	}
	if c.Auth.TokenStore != "memory" && c.Auth.TokenStore != "dynamodb" {
		return fmt.Errorf("unknown refresh token store %q", c.Auth.TokenStore)
	}
	if c.Client.RefreshTimeout <= 0 {
		c.Client.RefreshTimeout = c.Client.Timeout
	}
	return nil
}
