package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

var (
	validEnvironments = []string{"development", "staging", "production"}
	validLogFormats   = []string{"json", "console"}
	scheduleParser    = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateLLM()...)
	errors = append(errors, c.validateMarket()...)
	errors = append(errors, c.validateIntervention()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateAlerts()...)
	errors = append(errors, c.validateVault()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else if !slices.Contains(validEnvironments, c.App.Environment) {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvironments),
		})
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	if c.App.LogFormat != "" && !slices.Contains(validLogFormats, c.App.LogFormat) {
		errors = append(errors, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("Invalid log format '%s'. Must be one of: %v", c.App.LogFormat, validLogFormats),
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}

	errors = append(errors, validatePort("database.port", c.Database.Port)...)

	if c.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "Database user is required",
		})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}

	// with Vault enabled the password is loaded after validation
	if c.Database.Password == "" && c.App.Environment != "development" && !c.Vault.Enabled {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in non-development environments",
		})
	}

	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.pool_size",
			Message: "Database pool size must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		})
	}

	errors = append(errors, validatePort("redis.port", c.Redis.Port)...)

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if !c.NATS.Enabled {
		return errors
	}

	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required",
		})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL must start with 'nats://'",
		})
	}

	if c.NATS.SubjectPrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.subject_prefix",
			Message: "NATS subject prefix is required",
		})
	}

	return errors
}

func (c *Config) validateLLM() ValidationErrors {
	var errors ValidationErrors

	if c.LLM.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.endpoint",
			Message: "LLM endpoint is required",
		})
	} else if u, err := url.Parse(c.LLM.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.endpoint",
			Message: fmt.Sprintf("Invalid LLM endpoint '%s'", c.LLM.Endpoint),
		})
	}

	if c.LLM.PrimaryModel == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.primary_model",
			Message: "LLM primary model is required",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("Invalid temperature %.2f. Must be between 0-2", c.LLM.Temperature),
		})
	}

	if c.LLM.TopP <= 0 || c.LLM.TopP > 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.top_p",
			Message: fmt.Sprintf("Invalid top_p %.2f. Must be in (0, 1]", c.LLM.TopP),
		})
	}

	if c.LLM.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "LLM max_tokens must be at least 1",
		})
	}

	if c.LLM.Timeout < 1000 {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout",
			Message: "LLM timeout must be at least 1000ms",
		})
	}

	return errors
}

func (c *Config) validateMarket() ValidationErrors {
	var errors ValidationErrors

	if _, err := scheduleParser.Parse(c.Market.RefreshSchedule); err != nil {
		errors = append(errors, ValidationError{
			Field:   "market.refresh_schedule",
			Message: fmt.Sprintf("Invalid cron schedule '%s': %v", c.Market.RefreshSchedule, err),
		})
	}

	if c.Market.CacheTTL < 1 {
		errors = append(errors, ValidationError{
			Field:   "market.cache_ttl",
			Message: "Market cache TTL must be at least 1 second",
		})
	}

	if c.Market.Timeout < 100 {
		errors = append(errors, ValidationError{
			Field:   "market.timeout",
			Message: "Market fetch timeout must be at least 100ms",
		})
	}

	return errors
}

func (c *Config) validateIntervention() ValidationErrors {
	var errors ValidationErrors
	th := c.Intervention.Thresholds

	fractions := []struct {
		field string
		value float64
	}{
		{"intervention.thresholds.shopping_stress", th.ShoppingStress},
		{"intervention.thresholds.high_stress", th.HighStress},
		{"intervention.thresholds.gig_stress", th.GigStress},
		{"intervention.thresholds.low_success_rate", th.LowSuccessRate},
	}
	for _, f := range fractions {
		if f.value < 0 || f.value > 1 {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Message: fmt.Sprintf("Invalid threshold %.2f. Must be between 0-1", f.value),
			})
		}
	}

	if th.HighStress < th.ShoppingStress {
		errors = append(errors, ValidationError{
			Field:   "intervention.thresholds.high_stress",
			Message: "High stress threshold must not be below the shopping threshold",
		})
	}

	if th.EscalationDelayMin < 0 {
		errors = append(errors, ValidationError{
			Field:   "intervention.thresholds.escalation_delay_minutes",
			Message: "Escalation delay must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, validatePort("api.port", c.API.Port)...)

	if c.API.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.rate_limit",
			Message: "API rate limit must be greater than 0",
		})
	}

	if c.API.RateBurst < 1 {
		errors = append(errors, ValidationError{
			Field:   "api.rate_burst",
			Message: "API rate burst must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateAlerts() ValidationErrors {
	var errors ValidationErrors

	if !c.Alerts.Enabled {
		return errors
	}

	if c.Alerts.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "alerts.timeout",
			Message: "Alert timeout must be greater than 0",
		})
	}

	if c.Alerts.TelegramToken != "" && len(c.Alerts.TelegramChatIDs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "alerts.telegram_chat_ids",
			Message: "At least one Telegram chat ID is required when a bot token is set",
		})
	}

	return errors
}

func (c *Config) validateVault() ValidationErrors {
	var errors ValidationErrors

	if !c.Vault.Enabled {
		return errors
	}

	if u, err := url.Parse(c.Vault.Address); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "vault.address",
			Message: fmt.Sprintf("Invalid Vault address '%s'", c.Vault.Address),
		})
	}

	if c.Vault.Mount == "" {
		errors = append(errors, ValidationError{
			Field:   "vault.mount",
			Message: "Vault KV mount is required",
		})
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment != "production" {
		return errors
	}

	if c.Database.SSLMode == "disable" {
		errors = append(errors, ValidationError{
			Field:   "database.ssl_mode",
			Message: "SSL must be enabled for database in production",
		})
	}

	if slices.Contains(c.API.CORSOrigins, "*") {
		errors = append(errors, ValidationError{
			Field:   "api.cors_origins",
			Message: "Wildcard CORS origin is not allowed in production",
		})
	}

	if c.Market.SimulatedSeed != 0 {
		errors = append(errors, ValidationError{
			Field:   "market.simulated_seed",
			Message: "A fixed simulated market seed is not allowed in production",
		})
	}

	return errors
}

func validatePort(field string, port int) ValidationErrors {
	if port == 0 {
		return ValidationErrors{{Field: field, Message: "Port is required"}}
	}
	if port < 1 || port > 65535 {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", port)}}
	}
	return nil
}

// ValidateAndLoad loads and validates configuration.
// configPath can be empty to use default config locations.
func ValidateAndLoad(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
