package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/agent"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/auth"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/config"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/configval"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/httpserver"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/pipeline"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/reflection"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/store"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	db, recordStore := openStore(cfg)
	if db != nil {
		defer db.Close()
	}

	recorder := buildRecorder(cfg)

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.AuthDisabled)
	if err != nil {
		log.Fatalf("auth init: %v", err)
	}

	validationEngine := configval.NewEngine(configval.EngineConfig{MaxDepth: cfg.MaxConfigDepth})
	reflectionEngine := reflection.NewEngine(reflection.EngineConfig{MinBatchSize: cfg.ReflectionMinBatch})
	validationExec := agent.NewExecutor(validationEngine, recordStore, recorder)
	reflectionExec := agent.NewExecutor(reflectionEngine, recordStore, recorder)

	registry := pipeline.NewRegistry()
	mustRegister(registry, contracts.Capability{
		Domain:       "config-validation",
		AgentID:      configval.AgentID,
		AgentVersion: configval.AgentVersion,
		DecisionType: contracts.DecisionTypeConfigValidation,
		Description:  "validates configuration trees and reports findings",
	}, validationExec)
	mustRegister(registry, contracts.Capability{
		Domain:       "reflection",
		AgentID:      reflection.AgentID,
		AgentVersion: reflection.AgentVersion,
		DecisionType: contracts.DecisionTypeReflectionAnalysis,
		Description:  "meta-analysis over batches of decision records",
	}, reflectionExec)
	runner := pipeline.NewRunner(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.StreamerEnabled {
		startStreamer(ctx, cfg, recordStore)
	}

	server := httpserver.New(cfg, recordStore, validationExec, reflectionExec, registry, runner, verifier)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("copilot-agent-service listening on %s (store=%s)", cfg.Addr, cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	shutdown(httpServer, cancel)
}

func openStore(cfg config.Config) (*sql.DB, store.Store) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.Ping(); err != nil {
			log.Fatalf("db ping: %v", err)
		}
		return db, store.NewPGStore(db)
	case config.BackendFile:
		return nil, store.NewFileStore(cfg.FileStoreDir)
	default:
		return nil, store.NewMemoryStore()
	}
}

func buildRecorder(cfg config.Config) telemetry.Recorder {
	if cfg.TelemetryURL == "" {
		return telemetry.LogRecorder{}
	}
	recorder, err := telemetry.NewHTTPRecorder(telemetry.HTTPRecorderConfig{BaseURL: cfg.TelemetryURL})
	if err != nil {
		log.Fatalf("telemetry init: %v", err)
	}
	return recorder
}

func startStreamer(ctx context.Context, cfg config.Config, recordStore store.Store) {
	pg, ok := recordStore.(*store.PGStore)
	if !ok {
		log.Fatalf("streamer requires the postgres store")
	}
	publisher, err := store.NewKafkaPublisher(store.KafkaPublisherConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		log.Fatalf("kafka publisher: %v", err)
	}

	var archiver store.Archiver
	if cfg.S3Bucket != "" {
		archiver, err = store.NewS3Archiver(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			log.Fatalf("s3 archiver: %v", err)
		}
	}

	streamer := store.NewStreamer(pg, publisher, archiver, store.StreamerConfig{
		BatchSize:    cfg.StreamBatchSize,
		PollInterval: cfg.StreamPollInterval,
	})
	go func() {
		if err := streamer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("record streamer stopped: %v", err)
		}
	}()
	log.Printf("record streamer started (topic=%s, archive=%v)", cfg.KafkaTopic, cfg.S3Bucket != "")
}

func mustRegister(registry *pipeline.Registry, capability contracts.Capability, invoker pipeline.Invoker) {
	if err := registry.Register(capability, invoker); err != nil {
		log.Fatalf("register %s: %v", capability.Domain, err)
	}
}

func shutdown(s *http.Server, cancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()

	if err := s.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
