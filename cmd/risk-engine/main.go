package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rzzdr/actuarial-risk-core/config"
	"github.com/rzzdr/actuarial-risk-core/internal/adapters"
	"github.com/rzzdr/actuarial-risk-core/internal/kafka"
	"github.com/rzzdr/actuarial-risk-core/internal/pricing"
	"github.com/rzzdr/actuarial-risk-core/pkg/metrics"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger("risk-engine.main").Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("risk-engine.main")
	defer log.Sync()

	log.Info("Starting actuarial pricing worker")

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

	kafkaClient, err := kafka.NewClient(&kafka.Config{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID,
		StartOffset: cfg.Kafka.StartOffset,
	})
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}

	quoteProducer := kafkaClient.NewProducer(cfg.Kafka.Topics.Quotes)
	requestConsumer := kafkaClient.NewConsumer(cfg.Kafka.Topics.PricingRequests)
	requestConsumer.SetRetryPolicy(kafka.RetryPolicy{
		MaxAttempts:     cfg.Kafka.Retry.MaxAttempts,
		InitialInterval: cfg.Kafka.Retry.InitialInterval,
		MaxInterval:     cfg.Kafka.Retry.MaxInterval,
	})
	var deadLetterProducer *kafka.Producer
	if cfg.Kafka.Topics.DeadLetter != "" {
		deadLetterProducer = kafkaClient.NewProducer(cfg.Kafka.Topics.DeadLetter)
		requestConsumer.SetDeadLetter(deadLetterProducer)
	}

	handler := adapters.NewQuoteHandler(pricer, quoteProducer)
	handler.SetRecorder(recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := requestConsumer.Run(ctx, handler.Handle); err != nil {
			log.Errorf("Pricing request consumer stopped: %v", err)
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

	log.Infof("Pricing %s into %s", cfg.Kafka.Topics.PricingRequests, cfg.Kafka.Topics.Quotes)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-done:
		log.Error("Pricing request consumer exited, shutting down")
	}

	cancel()
	<-done

	if err := requestConsumer.Close(); err != nil {
		log.Errorf("Consumer shutdown error: %v", err)
	}
	if err := quoteProducer.Close(); err != nil {
		log.Errorf("Producer shutdown error: %v", err)
	}
	if deadLetterProducer != nil {
		if err := deadLetterProducer.Close(); err != nil {
			log.Errorf("Dead-letter producer shutdown error: %v", err)
		}
	}
	if promServer != nil {
		if err := promServer.Stop(); err != nil {
			log.Errorf("Prometheus server shutdown error: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
