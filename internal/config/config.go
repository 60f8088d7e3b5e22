package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SITEGEN_GENERATOR_API_KEY.
const EnvPrefix = "SITEGEN"

// Config is the process-wide configuration, loaded once at start-up.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Business  BusinessConfig  `mapstructure:"business"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig describes the ledger store. DSN wins over the discrete
// host/port fields. ReadOnlyDSN is used for user-context reads and falls
// back to the primary pool when empty.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	ReadOnlyDSN  string `mapstructure:"readonly_dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WebsiteGenerated string `mapstructure:"website_generated"`
	Settlement       string `mapstructure:"settlement"`
}

type IdentityConfig struct {
	URL           string        `mapstructure:"url"`
	AnonKey       string        `mapstructure:"anon_key"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	AdminRole     string        `mapstructure:"admin_role"`
	TokenCacheTTL time.Duration `mapstructure:"token_cache_ttl"`
}

type GeneratorConfig struct {
	Provider     string        `mapstructure:"provider"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

type BusinessConfig struct {
	SignupCredits     int64         `mapstructure:"signup_credits"`
	PricePerCredit    float64       `mapstructure:"price_per_credit"`
	Currency          string        `mapstructure:"currency"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	OutboxInterval    time.Duration `mapstructure:"outbox_interval"`
	MaxRetryCount     int           `mapstructure:"max_retry_count"`
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.readonly_dsn", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "sitegen")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic.website_generated", "sitegen.website.generated")
	v.SetDefault("kafka.topic.settlement", "sitegen.settlement")

	v.SetDefault("identity.url", "")
	v.SetDefault("identity.anon_key", "")
	v.SetDefault("identity.jwt_secret", "")
	v.SetDefault("identity.admin_role", "admin")
	v.SetDefault("identity.token_cache_ttl", time.Minute)

	v.SetDefault("generator.provider", "openai")
	v.SetDefault("generator.base_url", "https://api.openai.com/v1")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.model", "gpt-4")
	v.SetDefault("generator.temperature", 0.7)
	v.SetDefault("generator.max_tokens", 4000)
	v.SetDefault("generator.timeout", 2*time.Minute)
	v.SetDefault("generator.system_prompt", "")

	v.SetDefault("business.signup_credits", 3)
	v.SetDefault("business.price_per_credit", 0.02)
	v.SetDefault("business.currency", "GBP")
	v.SetDefault("business.reconcile_interval", 30*time.Second)
	v.SetDefault("business.outbox_interval", 500*time.Millisecond)
	v.SetDefault("business.max_retry_count", 5)
}

// LoadConfig reads .env (if present), the optional YAML file at configPath
// and SITEGEN_* environment overrides, in that order of precedence from
// lowest to highest.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		// The file is optional; environment-only deployments are common.
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Generator.Provider = strings.ToLower(strings.TrimSpace(c.Generator.Provider))
	c.Identity.URL = strings.TrimRight(c.Identity.URL, "/")
	if c.Business.SignupCredits < 0 {
		c.Business.SignupCredits = 0
	}
	if c.Business.MaxRetryCount <= 0 {
		c.Business.MaxRetryCount = 5
	}
}

// Readiness reports which external dependencies have enough configuration
// to be constructed. It never exposes configured values.
type Readiness struct {
	Storage   bool `json:"storage"`
	Identity  bool `json:"identity"`
	Generator bool `json:"generator"`
	Redis     bool `json:"redis"`
	Kafka     bool `json:"kafka"`
}

func (c *Config) Readiness() Readiness {
	return Readiness{
		Storage:   c.Database.DSN != "" || c.Database.Host != "",
		Identity:  c.Identity.JWTSecret != "" || (c.Identity.URL != "" && c.Identity.AnonKey != ""),
		Generator: c.Generator.APIKey != "",
		Redis:     c.Redis.Addr != "",
		Kafka:     len(c.Kafka.Brokers) > 0,
	}
}

// Missing lists required keys that are absent. Redis and Kafka are optional.
func (c *Config) Missing() []string {
	var missing []string
	r := c.Readiness()
	if !r.Storage {
		missing = append(missing, "database.dsn")
	}
	if !r.Identity {
		missing = append(missing, "identity.jwt_secret or identity.url+identity.anon_key")
	}
	if !r.Generator {
		missing = append(missing, "generator.api_key")
	}
	return missing
}
