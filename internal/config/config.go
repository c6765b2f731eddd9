package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/redtrack-io/redtrack/internal/cache"
	"github.com/redtrack-io/redtrack/internal/database"
	"github.com/redtrack-io/redtrack/internal/service"
)

const envPrefix = "REDTRACK"

var (
	cfg       *Config
	mu        sync.RWMutex
	listeners []func(*Config)
)

// Config represents the application configuration
type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Server   ServerConfig    `mapstructure:"server"`
	Database database.Config `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Workflow WorkflowConfig  `mapstructure:"workflow"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Addrs       []string      `mapstructure:"addrs"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type AuthConfig struct {
	JWT struct {
		Secret         string        `mapstructure:"secret"`
		AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	} `mapstructure:"jwt"`
}

// CacheConfig selects where resolved permission sets are kept: "local",
// "redis" or "none".
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type WorkflowConfig struct {
	CrossProjectRelations bool                `mapstructure:"cross_project_relations"`
	RelationRetry         service.RetryConfig `mapstructure:"relation_retry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "redtrack")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "redtrack.db")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "redtrack")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.access_token_ttl", 24*time.Hour)

	v.SetDefault("cache.backend", "local")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_size", 10000)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("workflow.cross_project_relations", false)
	v.SetDefault("workflow.relation_retry.max_retries", service.DefaultRetryConfig.MaxRetries)
	v.SetDefault("workflow.relation_retry.initial_interval", service.DefaultRetryConfig.InitialInterval)
	v.SetDefault("workflow.relation_retry.max_elapsed_time", service.DefaultRetryConfig.MaxElapsedTime)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads default.yaml and an optional config.yaml from configPath, applies
// REDTRACK_ environment overrides and watches the files for changes.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.AddConfigPath(configPath)

	v.SetConfigName("default")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read default config: %w", err)
		}
		log.Printf("config: no default.yaml in %s, using built-in defaults", configPath)
	}

	v.SetConfigName("config")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	loaded, err := decode(v)
	if err != nil {
		return nil, err
	}
	set(loaded)

	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			log.Printf("config: %s changed, reloading", e.Name)
			reloaded, err := decode(v)
			if err != nil {
				log.Printf("config: reload rejected: %v", err)
				return
			}
			set(reloaded)
		})
		v.WatchConfig()
	}
	return loaded, nil
}

// LoadFromFile loads configuration from a specific file (useful for testing)
func LoadFromFile(configFile string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	loaded, err := decode(v)
	if err != nil {
		return nil, err
	}
	set(loaded)
	return loaded, nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func set(c *Config) {
	mu.Lock()
	cfg = c
	subs := append([]func(*Config){}, listeners...)
	mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}

// Get returns the current configuration (thread-safe)
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// OnChange registers fn to run after every successful load or reload.
func OnChange(fn func(*Config)) {
	mu.Lock()
	defer mu.Unlock()
	listeners = append(listeners, fn)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if _, err := database.ParseDriver(c.Database.Driver); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Cache.Backend {
	case "local", "none":
	case "redis":
		if len(c.Redis.Addrs) == 0 {
			problems = append(problems, "cache.backend redis needs redis.addrs")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown cache.backend %q", c.Cache.Backend))
	}
	if c.App.IsProduction() && len(c.Auth.JWT.Secret) < 32 {
		problems = append(problems, "auth.jwt.secret must be at least 32 bytes in production")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RedisCacheConfig maps the redis section onto the permission cache settings.
func (c *Config) RedisCacheConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addrs:       c.Redis.Addrs,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		KeyPrefix:   c.Redis.KeyPrefix,
		TTL:         c.Cache.TTL,
		PoolSize:    c.Redis.PoolSize,
		DialTimeout: c.Redis.DialTimeout,
	}
}

// GetServerAddr returns the server listen address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
