/**
 * PDF Extraction Worker - Main Entry Point
 *
 * Hosts the PDF text extraction stage on a Redis-backed flow:
 * - records arrive on a Redis list (or as asynq tasks)
 * - each record is decoded and its text extracted as PlainText, RegionText or HtmlText
 * - derived records go to <queue>:success, rejected inputs to <queue>:failure
 * - optional PostgreSQL lineage of every delivered invocation
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/pdfextract-worker/internal/config"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
	"github.com/adverant/nexus/pdfextract-worker/internal/queue"
	"github.com/adverant/nexus/pdfextract-worker/internal/stage"
	"github.com/adverant/nexus/pdfextract-worker/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	log.Printf("PDF extraction worker starting...")
	log.Printf("Configuration loaded: Queue=%s, Transport=%s, Workers=%d, Lineage=%t",
		cfg.QueueName, cfg.Transport, cfg.WorkerConcurrency, cfg.DatabaseURL != "")

	props, err := config.LoadProperties(cfg.PropertiesFile)
	if err != nil {
		log.Fatalf("Failed to load stage properties: %v", err)
	}

	st := stage.New(props, logging.NewLogger("stage"))
	if err := st.Validate(); err != nil {
		log.Fatalf("Invalid stage properties in %s: %v", cfg.PropertiesFile, err)
	}
	log.Printf("Stage configured from %s (%d properties)", cfg.PropertiesFile, len(props))

	var lineage queue.LineageRecorder
	if cfg.DatabaseURL != "" {
		store, err := storage.NewLineageStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize lineage store: %v", err)
		}
		defer store.Close()
		lineage = store
		log.Printf("Lineage store initialized (PostgreSQL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var shutdown func() error
	switch cfg.Transport {
	case config.TransportAsynq:
		consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:            cfg.RedisURL,
			QueueName:           cfg.QueueName,
			Concurrency:         cfg.WorkerConcurrency,
			MaxDeliveryAttempts: cfg.MaxDeliveryAttempts,
			MaxRecordSize:       cfg.MaxRecordSize,
			Stage:               st,
			Lineage:             lineage,
		})
		if err != nil {
			log.Fatalf("Failed to initialize asynq consumer: %v", err)
		}
		if err := consumer.Start(); err != nil {
			log.Fatalf("Failed to start asynq consumer: %v", err)
		}
		shutdown = consumer.Stop

	default:
		consumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:            cfg.RedisURL,
			QueueName:           cfg.QueueName,
			Concurrency:         cfg.WorkerConcurrency,
			MaxDeliveryAttempts: cfg.MaxDeliveryAttempts,
			MaxRecordSize:       cfg.MaxRecordSize,
			Stage:               st,
			Lineage:             lineage,
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		consumer.Start(ctx)
		shutdown = consumer.Stop
	}

	log.Printf("===========================================")
	log.Printf("PDF extraction worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (%s)", cfg.QueueName, cfg.Transport)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Outputs: %s:success / %s:failure", cfg.QueueName, cfg.QueueName)
	log.Printf("===========================================")
	log.Printf("Waiting for records...")

	<-ctx.Done()
	log.Printf("Received shutdown signal, initiating graceful shutdown...")

	if err := shutdown(); err != nil {
		log.Printf("Error stopping consumer: %v", err)
	} else {
		log.Printf("Consumer stopped successfully")
	}

	log.Printf("Shutdown complete")
}
