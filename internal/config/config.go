package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/khanghh/krealm/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr      = ":8080"
	DefaultHealthCheckAddr = params.HealthCheckServerAddr
	DefaultBaseURL         = "http://localhost:8080"
	DefaultDatabaseDriver  = "mysql"
	DefaultSQLitePath      = "krealm.db"
	DefaultAdminUsername   = "admin"
	DefaultAdminPassword   = "admin"
	DefaultRateLimitMax    = params.TokenEndpointRateLimit
	DefaultRateLimitWindow = params.TokenEndpointRateWindow
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	RateLimitStorageRedis  = "redis"
	RateLimitStorageMemory = "memory"
)

var (
	ErrUnsupportedDriver    = errors.New("unsupported database driver")
	ErrMissingDSN           = errors.New("missing database dsn")
	ErrUnsupportedRateStore = errors.New("unsupported rate limit storage")
)

type DatabaseConfig struct {
	Driver          string   `mapstructure:"driver"`
	Dsn             string   `mapstructure:"dsn"`
	Replicas        []string `mapstructure:"replicas"`
	TablePrefix     string   `mapstructure:"tablePrefix"`
	MaxIdleConns    int      `mapstructure:"maxIdleConns"`
	MaxOpenConns    int      `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int      `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int      `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type AuthConfig struct {
	AccessTokenTTL      time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL     time.Duration `mapstructure:"refreshTokenTTL"`
	AuthSessionTTL      time.Duration `mapstructure:"authSessionTTL"`
	RotateRefreshTokens bool          `mapstructure:"rotateRefreshTokens"`
	TOTPIssuer          string        `mapstructure:"totpIssuer"`
	HashConcurrency     int           `mapstructure:"hashConcurrency"`
}

type RateLimitConfig struct {
	Storage string        `mapstructure:"storage"`
	Max     int           `mapstructure:"max"`
	Window  time.Duration `mapstructure:"window"`
}

type WebhookConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queueSize"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	MaxRetries     int           `mapstructure:"maxRetries"`
	RateLimit      float64       `mapstructure:"rateLimit"`
	RateBurst      int           `mapstructure:"rateBurst"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Email    string `mapstructure:"email"`
}

type Config struct {
	Debug           bool            `mapstructure:"debug"`
	BaseURL         string          `mapstructure:"baseURL"`
	ListenAddr      string          `mapstructure:"listenAddr"`
	HealthCheckAddr string          `mapstructure:"healthCheckAddr"`
	AllowOrigins    []string        `mapstructure:"allowOrigins"`
	Database        DatabaseConfig  `mapstructure:"database"`
	Redis           RedisConfig     `mapstructure:"redis"`
	Auth            AuthConfig      `mapstructure:"auth"`
	RateLimit       RateLimitConfig `mapstructure:"rateLimit"`
	Webhooks        WebhookConfig   `mapstructure:"webhooks"`
	Metrics         MetricsConfig   `mapstructure:"metrics"`
	Admin           AdminConfig     `mapstructure:"admin"`
}

// normalizeMySQLDSN makes sure time columns scan into time.Time.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (c *DatabaseConfig) sanitize() error {
	if c.Driver == "" {
		c.Driver = DefaultDatabaseDriver
	}
	switch c.Driver {
	case DriverSQLite:
		if c.Dsn == "" {
			c.Dsn = DefaultSQLitePath
		}
		return nil
	case DriverMySQL:
		if c.Dsn == "" {
			return ErrMissingDSN
		}
		dsn, err := normalizeMySQLDSN(c.Dsn)
		if err != nil {
			return err
		}
		c.Dsn = dsn
		for i, replica := range c.Replicas {
			if c.Replicas[i], err = normalizeMySQLDSN(replica); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, c.Driver)
	}
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.HealthCheckAddr == "" {
		c.HealthCheckAddr = DefaultHealthCheckAddr
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if err := c.Database.sanitize(); err != nil {
		return err
	}

	if c.RateLimit.Storage == "" {
		c.RateLimit.Storage = RateLimitStorageRedis
	}
	if c.RateLimit.Storage != RateLimitStorageRedis && c.RateLimit.Storage != RateLimitStorageMemory {
		return fmt.Errorf("%w: %s", ErrUnsupportedRateStore, c.RateLimit.Storage)
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = DefaultRateLimitMax
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = DefaultRateLimitWindow
	}

	if c.Admin.Username == "" {
		c.Admin.Username = DefaultAdminUsername
	}
	if c.Admin.Password == "" {
		c.Admin.Password = DefaultAdminPassword
	}
	if c.Auth.TOTPIssuer == "" {
		c.Auth.TOTPIssuer = "krealm"
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
