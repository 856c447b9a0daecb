package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rzzdr/actuarial-risk-core/config"
	"github.com/rzzdr/actuarial-risk-core/internal/cache"
	"github.com/rzzdr/actuarial-risk-core/internal/kafka"
	"github.com/rzzdr/actuarial-risk-core/internal/pricing"
	"github.com/rzzdr/actuarial-risk-core/internal/risk"
	"github.com/rzzdr/actuarial-risk-core/internal/store"
	"github.com/rzzdr/actuarial-risk-core/internal/syndicate"
	"github.com/rzzdr/actuarial-risk-core/pkg/api"
	"github.com/rzzdr/actuarial-risk-core/pkg/metrics"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/circuit"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger("api.main").Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("api.main")
	defer log.Sync()

	log.Info("Starting actuarial risk API service")

	recorder := metrics.NewRecorder(nil)

	tables, err := pricing.LoadRateTables(cfg.Pricing.RateTablesPath)
	if err != nil {
		log.Fatalf("Failed to load rate tables: %v", err)
	}
	pricer := pricing.NewPricer(pricing.Config{
		ILFBaseLimit:           cfg.Pricing.ILFBaseLimit,
		ILFZ:                   cfg.Pricing.ILFZ,
		FixedFactor:            cfg.Pricing.FixedFactor,
		NoADRID:                cfg.Pricing.NoADRID,
		DefaultTargetLossRatio: cfg.Pricing.DefaultTargetLossRatio,
		TargetLossRatios:       cfg.Pricing.TargetLossRatios,
	}, tables)
	pricer.SetRecorder(recorder)

	simulator := risk.NewSimulator(risk.SimulatorConfig{
		Workers:           cfg.Simulation.Workers,
		DefaultTrials:     cfg.Simulation.DefaultTrials,
		MaxTrials:         cfg.Simulation.MaxTrials,
		CheckInterval:     cfg.Simulation.CheckInterval,
		MaxClaimsPerTrial: cfg.Simulation.MaxClaimsPerTrial,
	})
	simulator.SetRecorder(recorder)

	modelCache, closeCache := newModelCache(cfg.Cache, recorder)
	defer closeCache()

	syndicateStore := store.NewSyndicateStore()
	syndicates := syndicate.NewService(syndicate.Config{
		DefaultSimulations:  cfg.Syndicate.DefaultSimulations,
		MaxSimulations:      cfg.Syndicate.MaxSimulations,
		DefaultAlpha:        cfg.Syndicate.DefaultAlpha,
		DefaultNetThreshold: cfg.Syndicate.DefaultNetThreshold,
		DefaultLookback:     cfg.Syndicate.DefaultLookback,
		CurrentYear:         cfg.Syndicate.CurrentYear,
	}, syndicateStore, modelCache)
	syndicates.SetRecorder(recorder)

	deps := api.Dependencies{
		Pricer:     pricer,
		Simulator:  simulator,
		Syndicates: syndicates,
		Store:      syndicateStore,
		Recorder:   recorder,
	}

	if cfg.Kafka.Enabled {
		kafkaClient, err := kafka.NewClient(&kafka.Config{
			Brokers:     cfg.Kafka.Brokers,
			GroupID:     cfg.Kafka.GroupID,
			StartOffset: cfg.Kafka.StartOffset,
		})
		if err != nil {
			log.Fatalf("Failed to create Kafka client: %v", err)
		}
		quotes := kafkaClient.NewProducer(cfg.Kafka.Topics.Quotes)
		summaries := kafkaClient.NewProducer(cfg.Kafka.Topics.SimulationSummaries)
		defer quotes.Close()
		defer summaries.Close()
		deps.Quotes = quotes
		deps.Summaries = summaries
		log.Infof("Publishing quotes to %s and simulation summaries to %s", quotes.Topic(), summaries.Topic())
	}

	apiServer := api.NewServer(api.Config{
		Host:                 cfg.API.Host,
		Port:                 cfg.API.Port,
		ReadTimeout:          cfg.API.ReadTimeout,
		WriteTimeout:         cfg.API.WriteTimeout,
		AllowedOrigins:       cfg.API.AllowedOrigins,
		MaxCopulaSimulations: cfg.API.MaxCopulaSimulations,
		MaxCopulaVariables:   cfg.API.MaxCopulaVariables,
		MaxCopulaValues:      cfg.API.MaxCopulaValues,
		SimulationRate:       cfg.API.SimulationRate,
		SimulationBurst:      cfg.API.SimulationBurst,
	}, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Errorf("API server error: %v", err)
			cancel()
		}
	}()

	var promServer *metrics.PrometheusServer
	if cfg.Metrics.Prometheus.Enabled {
		promServer = metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port, recorder)
		go func() {
			if err := promServer.Start(); err != nil {
				log.Errorf("Prometheus server error: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}
	if promServer != nil {
		if err := promServer.Stop(); err != nil {
			log.Errorf("Prometheus server shutdown error: %v", err)
		}
	}

	log.Info("Shutdown complete")
}

// newModelCache builds the configured quartile model cache and its cleanup
func newModelCache(cfg config.CacheConfig, recorder *metrics.Recorder) (cache.ModelCache, func()) {
	if cfg.Backend != "redis" {
		c := cache.NewMemory(cache.MemoryConfig{TTL: cfg.TTL, MaxEntries: cfg.MaxEntries})
		c.SetRecorder(recorder)
		return c, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	c := cache.NewRedis(client, cfg.Redis.Prefix, cfg.TTL)
	c.SetRecorder(recorder)
	breaker := circuit.NewBreaker("redis-cache", circuit.Config{
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
	})
	return cache.NewGuarded(c, breaker), func() { _ = client.Close() }
}
