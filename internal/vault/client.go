// Package vault loads FinSphere secrets from a HashiCorp Vault KV v2 engine.
//
// Secrets live under <mount>/data/<path>/<name>. The names read at startup
// are "database", "redis", "llm" and "alerts"; a missing secret leaves the
// file or environment value in place.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/config"
	"github.com/finsphere/finsphere/internal/metrics"
)

// Secret names read by ApplyTo
const (
	SecretDatabase = "database"
	SecretRedis    = "redis"
	SecretLLM      = "llm"
	SecretAlerts   = "alerts"
)

// ErrSecretNotFound is returned when no secret exists at the path
var ErrSecretNotFound = vaultapi.ErrSecretNotFound

var insecureDevTokens = map[string]bool{
	"finsphere-dev-token": true,
	"root":                true,
	"dev":                 true,
	"test":                true,
}

// Config holds Vault client configuration
type Config struct {
	Address  string        // default: VAULT_ADDR, then http://localhost:8200
	Token    string        // default: VAULT_TOKEN
	Mount    string        // KV v2 mount (default: "secret")
	Path     string        // path prefix under the mount (default: "finsphere")
	CacheTTL time.Duration // default: 5 minutes
	Timeout  time.Duration // default: 30 seconds
}

// Client reads and caches secrets
type Client struct {
	api      *vaultapi.Client
	kv       *vaultapi.KVv2
	path     string
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	data      map[string]any
	expiresAt time.Time
}

// NewClient creates a Vault client. A token is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		cfg.Address = os.Getenv("VAULT_ADDR")
		if cfg.Address == "" {
			cfg.Address = "http://localhost:8200"
		}
	}

	tokenSource := "config"
	if cfg.Token == "" {
		cfg.Token = os.Getenv("VAULT_TOKEN")
		tokenSource = "VAULT_TOKEN"
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token is required (set vault.token or VAULT_TOKEN)")
	}

	if insecureDevTokens[cfg.Token] {
		log.Warn().
			Str("token_source", tokenSource).
			Str("vault_addr", cfg.Address).
			Msg("SECURITY WARNING: Using known insecure development token. DO NOT use in production!")
	}
	if strings.HasPrefix(cfg.Address, "http://") && !strings.Contains(cfg.Address, "localhost") && !strings.Contains(cfg.Address, "127.0.0.1") {
		log.Warn().
			Str("vault_addr", cfg.Address).
			Msg("SECURITY WARNING: Using unencrypted HTTP connection to non-localhost Vault")
	}

	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.Path == "" {
		cfg.Path = "finsphere"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	apiCfg := vaultapi.DefaultConfig()
	apiCfg.Address = cfg.Address
	apiCfg.Timeout = cfg.Timeout
	apiCfg.MaxRetries = 0

	client, err := vaultapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	log.Info().
		Str("vault_addr", cfg.Address).
		Str("token_source", tokenSource).
		Str("mount", cfg.Mount).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Vault client initialized")

	return &Client{
		api:      client,
		kv:       client.KVv2(cfg.Mount),
		path:     strings.Trim(cfg.Path, "/"),
		cacheTTL: cfg.CacheTTL,
		now:      time.Now,
		cache:    make(map[string]cachedSecret),
	}, nil
}

// GetSecret returns the latest version of the named secret
func (c *Client) GetSecret(ctx context.Context, name string) (map[string]any, error) {
	path := c.path + "/" + name

	if data := c.getCached(path); data != nil {
		metrics.RecordVaultRequest(metrics.CacheHit, 0)
		return data, nil
	}

	start := time.Now()
	secret, err := c.kv.Get(ctx, path)
	durationMs := float64(time.Since(start).Milliseconds())

	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			metrics.RecordVaultRequest(metrics.CacheMiss, durationMs)
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		metrics.RecordVaultRequest(metrics.ErrorOther, durationMs)
		log.Warn().Err(err).Str("path", path).Msg("Failed to fetch secret from Vault")
		return nil, fmt.Errorf("failed to fetch secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		metrics.RecordVaultRequest(metrics.CacheMiss, durationMs)
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	metrics.RecordVaultRequest(metrics.CacheMiss, durationMs)
	c.setCached(path, secret.Data)

	version := 0
	if secret.VersionMetadata != nil {
		version = secret.VersionMetadata.Version
	}
	log.Debug().Str("path", path).Int("version", version).Msg("Vault secret retrieved and cached")

	return secret.Data, nil
}

// GetSecretString returns one string field of a secret
func (c *Client) GetSecretString(ctx context.Context, name, key string) (string, error) {
	data, err := c.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}

	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %s", key, name)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("key %q is not a string in secret %s", key, name)
	}
	return s, nil
}

func (c *Client) getCached(path string) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.cache[path]
	if !ok || c.now().After(cached.expiresAt) {
		return nil
	}
	return cached.data
}

func (c *Client) setCached(path string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[path] = cachedSecret{data: data, expiresAt: c.now().Add(c.cacheTTL)}
}

// ClearCache drops every cached secret
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cachedSecret)
}

// Health checks that Vault is initialized and unsealed
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.api.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !resp.Initialized {
		return fmt.Errorf("vault is not initialized")
	}
	if resp.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

// ApplyTo overwrites credentials in cfg with the values stored in Vault and
// returns how many fields were set. Missing secrets and missing keys are
// skipped; any other Vault error aborts.
func (c *Client) ApplyTo(ctx context.Context, cfg *config.Config) (int, error) {
	fields := []struct {
		secret string
		key    string
		dst    *string
	}{
		{SecretDatabase, "password", &cfg.Database.Password},
		{SecretRedis, "password", &cfg.Redis.Password},
		{SecretLLM, "api_key", &cfg.LLM.APIKey},
		{SecretAlerts, "telegram_token", &cfg.Alerts.TelegramToken},
	}

	applied := 0
	for _, f := range fields {
		data, err := c.GetSecret(ctx, f.secret)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return applied, err
		}

		value, ok := data[f.key].(string)
		if !ok || value == "" {
			continue
		}
		*f.dst = value
		applied++
	}

	log.Info().Int("fields", applied).Msg("Applied secrets from Vault")
	return applied, nil
}
