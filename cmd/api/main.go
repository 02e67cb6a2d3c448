package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/advisor"
	"github.com/finsphere/finsphere/internal/alerts"
	"github.com/finsphere/finsphere/internal/api"
	"github.com/finsphere/finsphere/internal/audit"
	"github.com/finsphere/finsphere/internal/breaker"
	"github.com/finsphere/finsphere/internal/config"
	"github.com/finsphere/finsphere/internal/db"
	"github.com/finsphere/finsphere/internal/events"
	"github.com/finsphere/finsphere/internal/intervention"
	"github.com/finsphere/finsphere/internal/llm"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/metrics"
	"github.com/finsphere/finsphere/internal/vault"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./configs/config.yaml)")
	flag.Parse()

	cfg, err := config.ValidateAndLoad(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting FinSphere API Server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cfg.Vault.Enabled {
		if err := loadSecrets(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to load secrets from Vault")
		}
	}

	breakers := breaker.NewManager()

	database, err := db.New(ctx, cfg.Database.GetURL(), breakers)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close()

	var redisClient *redis.Client
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rc.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without snapshot cache")
		_ = rc.Close()
	} else {
		redisClient = rc
		defer func() { _ = redisClient.Close() }()
	}
	pingCancel()

	provider := market.NewResilientProvider(
		market.NewSimulatedProvider(cfg.Market.SimulatedSeed),
		market.NewSnapshotCache(redisClient, cfg.Market.GetCacheTTL()),
		breakers,
		cfg.Market.GetTimeout(),
	)
	refresher := market.NewRefresher(provider, cfg.Market.RefreshSchedule, config.NewLogger("market"))
	if err := refresher.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start market refresher")
	}
	defer refresher.Stop()

	var bus *events.Bus
	if cfg.NATS.Enabled {
		bus, err = events.Connect(events.Config{
			URL:    cfg.NATS.URL,
			Prefix: cfg.NATS.SubjectPrefix,
			Name:   cfg.App.Name,
		})
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, events will not be published")
			bus = nil
		} else {
			defer func() { _ = bus.Close() }()
		}
	}

	if bus != nil && cfg.Alerts.Enabled {
		subscriber, err := startAlerts(ctx, &cfg.Alerts, bus)
		if err != nil {
			log.Warn().Err(err).Msg("Alert delivery disabled")
		} else {
			defer subscriber.Stop()
		}
	}

	auditLog := audit.NewLogger(database.Pool(), true)

	models := make([]llm.NamedCompleter, 0, len(cfg.LLM.Models()))
	for _, name := range cfg.LLM.Models() {
		models = append(models, llm.NamedCompleter{
			Name: name,
			Completer: llm.NewClient(llm.ClientConfig{
				Endpoint:    cfg.LLM.Endpoint,
				APIKey:      cfg.LLM.APIKey,
				Model:       name,
				Temperature: cfg.LLM.Temperature,
				TopP:        cfg.LLM.TopP,
				MaxTokens:   cfg.LLM.MaxTokens,
				Timeout:     cfg.LLM.GetTimeout(),
			}),
		})
	}
	explainer := llm.NewExplainer(llm.NewFallbackClient(breakers, models...), cfg.LLM.GetTimeout())

	opts := []advisor.Option{advisor.WithRecorder(auditLog)}
	if bus != nil {
		opts = append(opts, advisor.WithPublisher(bus))
	}
	recommender := advisor.NewRecommender(database, provider, nil, explainer, opts...)

	serverConfig := api.Config{
		Host:          cfg.API.Host,
		Port:          cfg.API.Port,
		Version:       cfg.App.Version,
		CORSOrigins:   cfg.API.CORSOrigins,
		RateLimit:     cfg.API.RateLimit,
		RateBurst:     cfg.API.RateBurst,
		Store:         database,
		Advisor:       recommender,
		Interventions: intervention.NewEngine(intervention.WithThresholds(cfg.Intervention.Thresholds)),
		Market:        provider,
		Explainer:     explainer,
		Audit:         auditLog,
	}
	if bus != nil {
		serverConfig.Events = bus
	}
	server := api.NewServer(serverConfig)
	server.StartCleanup(ctx, 5*time.Minute)

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start metrics server")
		}
		go reportPoolStats(ctx, database)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during metrics server shutdown")
		}
	}

	log.Info().Msg("Server stopped")
}

func loadSecrets(ctx context.Context, cfg *config.Config) error {
	client, err := vault.NewClient(vault.Config{
		Address: cfg.Vault.Address,
		Token:   cfg.Vault.Token,
		Mount:   cfg.Vault.Mount,
		Path:    cfg.Vault.Path,
	})
	if err != nil {
		return err
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Health(healthCtx); err != nil {
		return err
	}

	_, err = client.ApplyTo(ctx, cfg)
	return err
}

// startAlerts builds the alert channels from config and subscribes them to
// the risk and intervention topics.
func startAlerts(ctx context.Context, cfg *config.AlertsConfig, bus *events.Bus) (*alerts.Subscriber, error) {
	manager := alerts.NewManager(alerts.NewLogAlerter())

	if cfg.TelegramToken != "" {
		tg, err := alerts.NewTelegramAlerter(cfg.TelegramToken, cfg.TelegramChatIDs)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram alerts unavailable")
		} else {
			manager.Add(tg)
		}
	}

	push, err := alerts.NewPushAlerter(ctx, cfg.FCMCredentials)
	if err != nil {
		log.Warn().Err(err).Msg("Push alerts unavailable")
	} else {
		manager.Add(push)
	}

	subscriber := alerts.NewSubscriber(manager, cfg.GetTimeout())
	if err := subscriber.Start(bus); err != nil {
		return nil, err
	}

	log.Info().Int("channels", manager.Len()).Msg("Alert delivery started")
	return subscriber, nil
}

func reportPoolStats(ctx context.Context, database *db.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			database.Stats()
		}
	}
}
