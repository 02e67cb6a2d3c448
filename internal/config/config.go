package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/finsphere/finsphere/internal/intervention"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	NATS         NATSConfig         `mapstructure:"nats"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Market       MarketConfig       `mapstructure:"market"`
	Intervention InterventionConfig `mapstructure:"intervention"`
	API          APIConfig          `mapstructure:"api"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	Alerts       AlertsConfig       `mapstructure:"alerts"`
	Vault        VaultConfig        `mapstructure:"vault"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	Enabled       bool   `mapstructure:"enabled"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// LLMConfig contains language model settings. The primary model is tried
// first and the fallback models in order after it.
type LLMConfig struct {
	Endpoint       string   `mapstructure:"endpoint"`
	APIKey         string   `mapstructure:"api_key"`
	PrimaryModel   string   `mapstructure:"primary_model"`
	FallbackModels []string `mapstructure:"fallback_models"`
	Temperature    float64  `mapstructure:"temperature"`
	TopP           float64  `mapstructure:"top_p"`
	MaxTokens      int      `mapstructure:"max_tokens"`
	Timeout        int      `mapstructure:"timeout"` // ms
}

// MarketConfig contains market snapshot settings
type MarketConfig struct {
	RefreshSchedule string `mapstructure:"refresh_schedule"` // cron spec
	CacheTTL        int    `mapstructure:"cache_ttl"`        // seconds
	Timeout         int    `mapstructure:"timeout"`          // ms
	SimulatedSeed   uint64 `mapstructure:"simulated_seed"`
}

// InterventionConfig contains the intervention decision thresholds
type InterventionConfig struct {
	Thresholds intervention.Thresholds `mapstructure:"thresholds"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	RateLimit   float64  `mapstructure:"rate_limit"` // requests per second per client
	RateBurst   int      `mapstructure:"rate_burst"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// AlertsConfig controls where risk and intervention alerts are delivered
type AlertsConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	TelegramToken   string  `mapstructure:"telegram_token"`
	TelegramChatIDs []int64 `mapstructure:"telegram_chat_ids"`
	FCMCredentials  string  `mapstructure:"fcm_credentials"` // path to service account JSON
	Timeout         int     `mapstructure:"timeout"`         // ms
}

// GetTimeout returns the per-alert delivery timeout
func (c *AlertsConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// VaultConfig points at the KV v2 engine holding credentials
type VaultConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	Mount   string `mapstructure:"mount"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// FINSPHERE_DATABASE_HOST overrides database.host
	v.SetEnvPrefix("FINSPHERE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "FinSphere")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "finsphere")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.subject_prefix", "finsphere")

	v.SetDefault("llm.endpoint", "http://localhost:11434/v1/chat/completions")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.primary_model", "qwen:7b")
	v.SetDefault("llm.fallback_models", []string{"llama3.2:3b"})
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.top_p", 0.9)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.timeout", 15000)

	v.SetDefault("market.refresh_schedule", "@every 5m")
	v.SetDefault("market.cache_ttl", 300)
	v.SetDefault("market.timeout", 2000)
	v.SetDefault("market.simulated_seed", 0)

	th := intervention.DefaultThresholds()
	v.SetDefault("intervention.thresholds.shopping_stress", th.ShoppingStress)
	v.SetDefault("intervention.thresholds.high_stress", th.HighStress)
	v.SetDefault("intervention.thresholds.gig_stress", th.GigStress)
	v.SetDefault("intervention.thresholds.low_success_rate", th.LowSuccessRate)
	v.SetDefault("intervention.thresholds.escalation_delay_minutes", th.EscalationDelayMin)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.rate_limit", 20.0)
	v.SetDefault("api.rate_burst", 40)
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)

	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.telegram_token", "")
	v.SetDefault("alerts.telegram_chat_ids", []int64{})
	v.SetDefault("alerts.fcm_credentials", "")
	v.SetDefault("alerts.timeout", 10000)

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "http://localhost:8200")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.path", "finsphere")
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetURL returns the connection string in URL form, as pgxpool expects
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode, c.PoolSize)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTimeout returns the LLM timeout as time.Duration
func (c *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Models returns the primary model followed by the fallbacks, without blanks
// or duplicates.
func (c *LLMConfig) Models() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range append([]string{c.PrimaryModel}, c.FallbackModels...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// GetTimeout returns the market fetch timeout as time.Duration
func (c *MarketConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetCacheTTL returns the snapshot cache TTL as time.Duration
func (c *MarketConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}
