package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"

	"github.com/shrek82/simplejorm/dialect"
	"github.com/shrek82/simplejorm/model"
	"github.com/shrek82/simplejorm/pool"
	"github.com/shrek82/simplejorm/validator"
)

// EnvPrefix prefixes every environment override, e.g. SIMPLEJORM_DSN or
// SIMPLEJORM_POOL_MAX_OPEN.
const EnvPrefix = "SIMPLEJORM"

type Config struct {
	Driver        string             `mapstructure:"driver"`
	DSN           string             `mapstructure:"dsn"`
	Pool          PoolConfig         `mapstructure:"pool"`
	Log           LogConfig          `mapstructure:"log"`
	PerPage       int                `mapstructure:"per_page"`
	SlowThreshold time.Duration      `mapstructure:"slow_threshold"`
	SlowLogPath   string             `mapstructure:"slow_log_path"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Tracing       TracingConfig      `mapstructure:"tracing"`
	Breaker       BreakerConfig      `mapstructure:"circuit_breaker"`
	Entities      []model.Definition `mapstructure:"entities"`
}

type PoolConfig struct {
	MaxOpen         int           `mapstructure:"max_open"`
	MaxIdle         int           `mapstructure:"max_idle"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig selects the result cache: "", "memory", "lru" or "redis".
// Size bounds the lru cache.
type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
	Size   int           `mapstructure:"size"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TracingConfig enables OpenTelemetry spans. With ZipkinEndpoint set the
// spans are exported to that collector, otherwise the global provider is
// used.
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ZipkinEndpoint string `mapstructure:"zipkin_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// BreakerConfig installs a circuit breaker in front of the store when
// Threshold is positive.
type BreakerConfig struct {
	Threshold    int           `mapstructure:"threshold"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// defaults are also the keys environment variables can override.
var defaults = map[string]any{
	"driver":                  "sqlite3",
	"dsn":                     "",
	"pool.max_open":           0,
	"pool.max_idle":           0,
	"pool.conn_max_lifetime":  "0s",
	"log.level":               "info",
	"log.format":              "text",
	"per_page":                model.DefaultPerPage,
	"slow_threshold":          "0s",
	"slow_log_path":           "",
	"cache.driver":            "",
	"cache.ttl":               "5m",
	"cache.size":              1024,
	"redis.addr":              "",
	"redis.password":          "",
	"redis.db":                0,
	"metrics.enabled":         false,
	"metrics.namespace":       "simplejorm",
	"tracing.enabled":         false,
	"tracing.zipkin_endpoint": "",
	"tracing.service_name":    "simplejorm",

	"circuit_breaker.threshold":     0,
	"circuit_breaker.reset_timeout": "30s",
}

// Option adjusts the viper instance before it is unmarshalled.
type Option func(v *viper.Viper)

// WithValue sets key, overriding both the file and the environment.
func WithValue(key string, value any) Option {
	return func(v *viper.Viper) {
		v.Set(key, value)
	}
}

// Load reads path (yaml, json or toml by extension) and then applies
// SIMPLEJORM_ environment overrides. With an empty path an optional
// simplejorm.{yaml,json,toml} in the working directory is used.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("simplejorm")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, opt := range opts {
		opt(v)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize rewrites a mysql DSN so that DATETIME columns scan as
// time.Time, and gives entities without a page size the configured one.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "mysql" && c.DSN != "" {
		mc, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return fmt.Errorf("invalid mysql dsn: %w", err)
		}
		mc.ParseTime = true
		c.DSN = mc.FormatDSN()
	}
	for i := range c.Entities {
		if c.Entities[i].PerPage <= 0 {
			c.Entities[i].PerPage = c.PerPage
		}
	}
	return nil
}

var rules = validator.Rules{
	"Driver":               {validator.Required},
	"DSN":                  {validator.Required.Msg("is required (set dsn or SIMPLEJORM_DSN)")},
	"PerPage":              {validator.Range(1, 10000)},
	"Pool.MaxOpen":         {validator.Min(0)},
	"Pool.MaxIdle":         {validator.Min(0)},
	"Pool.ConnMaxLifetime": {validator.Min(0)},
	"Log.Level":            {validator.In("silent", "off", "none", "error", "warn", "warning", "info").Optional()},
	"Log.Format":           {validator.In("text", "json").Optional()},
	"SlowThreshold":        {validator.Min(0)},
	"Cache.Driver":         {validator.In("memory", "lru", "redis").Optional()},
	"Cache.TTL":            {validator.Min(0)},
	"Cache.Size":           {validator.Min(0)},
	"Redis.Addr":           {validator.HostPort.Optional()},
	"Redis.DB":             {validator.Range(0, 15)},
	"Breaker.Threshold":    {validator.Min(0)},
	"Breaker.ResetTimeout": {validator.Min(0)},
}

var entityRules = validator.Rules{
	"Name":       {validator.Required, validator.Identifier},
	"Table":      {validator.Identifier.Optional()},
	"PrimaryKey": {validator.Identifier.Optional()},
}

var relationRules = validator.Rules{
	"Name":       {validator.Required, validator.Identifier},
	"Kind":       {validator.Required},
	"Table":      {validator.Required, validator.Identifier},
	"LocalKey":   {validator.Identifier.Optional()},
	"ForeignKey": {validator.Identifier.Optional()},
	"JoinTable":  {validator.Identifier.Optional()},
	"JoinFK":     {validator.Identifier.Optional()},
	"JoinRef":    {validator.Identifier.Optional()},
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	errs := make(validator.ValidationErrors)
	errs.Merge("config", rules.Validate(c))

	if c.Driver != "" {
		if _, ok := dialect.Get(c.Driver); !ok {
			errs.Add("config.Driver", fmt.Errorf("unknown driver %s", c.Driver))
		}
	}
	if c.Cache.Driver == "redis" && c.Redis.Addr == "" {
		errs.Add("config.Redis.Addr", fmt.Errorf("is required by the redis cache"))
	}

	seen := make(map[string]bool)
	for i, e := range c.Entities {
		prefix := fmt.Sprintf("entities[%d]", i)
		errs.Merge(prefix, entityRules.Validate(e))
		if seen[e.Name] {
			errs.Add(prefix+".Name", fmt.Errorf("duplicate entity %s", e.Name))
		}
		seen[e.Name] = true
		for j, r := range e.Relations {
			errs.Merge(fmt.Sprintf("%s.relations[%d]", prefix, j), relationRules.Validate(r))
		}
	}
	return errs.Err()
}

// PoolOptions converts the pool section.
func (c *Config) PoolOptions() *pool.Options {
	return &pool.Options{
		MaxOpenConns:    c.Pool.MaxOpen,
		MaxIdleConns:    c.Pool.MaxIdle,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
	}
}
