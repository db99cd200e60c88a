// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command guard starts the AleutianGuard safety-screening API server.
//
// Every POST /v1/chat request is rate-limited, authenticated against the
// client registry, normalized, classified by the configured LLM, enforced
// against the policy threshold table, audited, and only then answered.
//
// Usage:
//
//	go run ./cmd/guard
//	go run ./cmd/guard -port 9090
//
// Configuration is environment-driven (see services/guard/config.go):
//
//	OPENAI_API_KEY=sk-... GUARD_DATA_DIR=/var/lib/guard go run ./cmd/guard
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/health
//
//	# Screen a message
//	curl -X POST http://localhost:8080/v1/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"text": "hello", "apiKey": "sk-client-key", "clientId": "acme"}'
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/AleutianGuard/services/guard"
	"github.com/AleutianAI/AleutianGuard/services/guard/audit"
	"github.com/AleutianAI/AleutianGuard/services/guard/classify"
	"github.com/AleutianAI/AleutianGuard/services/guard/clients"
	"github.com/AleutianAI/AleutianGuard/services/guard/ratelimit"
	badgerstore "github.com/AleutianAI/AleutianGuard/services/guard/storage/badger"
	"github.com/AleutianAI/AleutianGuard/services/llm"
)

func main() {
	port := flag.Int("port", 0, "Port to listen on (overrides GUARD_LISTEN_ADDR)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := guard.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port != 0 {
		cfg.ListenAddr = fmt.Sprintf(":%d", *port)
	}

	// W3C TraceContext propagation for distributed tracing.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		slog.Error("Failed to configure LLM client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Storage. Graceful degradation: without a data directory the audit
	// trail and client registry run in memory and are lost on restart.
	var clientStore clients.Store
	var auditStore audit.Store
	var db *badgerstore.DB
	if cfg.DataDir != "" {
		storeCfg := badgerstore.DefaultConfig()
		storeCfg.Path = cfg.DataDir
		storeCfg.Logger = logger
		db, err = badgerstore.Open(storeCfg)
		if err != nil {
			slog.Error("Failed to open database", slog.String("path", cfg.DataDir), slog.String("error", err.Error()))
			os.Exit(1)
		}
		clientStore, err = clients.NewBadgerStore(db)
		if err == nil {
			auditStore, err = audit.NewBadgerStore(db)
		}
		if err != nil {
			slog.Error("Failed to initialize stores", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("Persistent storage opened", slog.String("path", cfg.DataDir))
	} else {
		clientStore = clients.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
		slog.Warn("No GUARD_DATA_DIR set, audit trail and client registry are in-memory only")
	}

	validator, err := clients.NewValidator(clientStore)
	if err != nil {
		slog.Error("Failed to create validator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	classifierCfg := classify.DefaultConfig()
	classifierCfg.Timeout = cfg.ClassifierTimeout
	classifier, err := classify.NewClassifier(llmClient, classifierCfg)
	if err != nil {
		slog.Error("Failed to create classifier", slog.String("error", err.Error()))
		os.Exit(1)
	}

	generator, err := guard.NewGenerator(llmClient, cfg.GeneratorTimeout, cfg.GeneratorMaxTokens)
	if err != nil {
		slog.Error("Failed to create generator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimitCapacity, cfg.RateLimitWindow)
	auditor := audit.NewAuditor(auditStore, logger)

	svc, err := guard.NewService(cfg, limiter, clientStore, validator, classifier, generator, auditor, logger)
	if err != nil {
		slog.Error("Failed to create service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-guard"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	guard.RegisterRoutes(v1, svc)
	if cfg.AdminToken != "" {
		guard.RegisterAdminRoutes(v1, svc, cfg.AdminToken)
	} else {
		slog.Warn("GUARD_ADMIN_TOKEN not set; client administration endpoints disabled")
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Graceful shutdown: flush the database before exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down AleutianGuard server")
		if db != nil {
			if err := db.Close(); err != nil {
				slog.Warn("Failed to close database", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	slog.Info("Starting AleutianGuard server",
		slog.String("address", cfg.ListenAddr),
		slog.String("model", llmClient.Model()),
	)
	if err := router.Run(cfg.ListenAddr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
