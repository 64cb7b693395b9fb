// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the Rutopia chat orchestrator HTTP server.
//
// This is the main entry point for the containerized service. It reads
// configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12210)
//   - LOG_LEVEL: Minimum log level (default: info)
//   - LOG_DIR: Optional directory for daily JSON log files
//   - OPENAI_API_KEY: Decision oracle and embeddings API key (or the
//     /run/secrets/openai_api_key mount)
//   - OPENAI_MODEL: Decision oracle model (default: gpt-4o-mini)
//   - WEAVIATE_SERVICE_URL: Experience catalog URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector
//     (default: rutopia-otel-collector:4317)
//   - SESSION_REAPER_INTERVAL: Sweep interval (default: 1h)
//   - SESSION_MAX_AGE: Session staleness threshold (default: 24h)
//   - ADMIN_TOKEN: Bearer token guarding the /v1 admin routes (optional)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
//
//	# Or via container
//	podman-compose up orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/rutopia/chat-orchestrator/pkg/logging"
	"github.com/rutopia/chat-orchestrator/services/orchestrator"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "chat-orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := orchestrator.Config{
		Port:           getEnvInt("ORCHESTRATOR_PORT", 12210),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "rutopia-otel-collector:4317"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		ReaperInterval: getEnvDuration("SESSION_REAPER_INTERVAL", time.Hour),
		ReaperMaxAge:   getEnvDuration("SESSION_MAX_AGE", 24*time.Hour),
	}

	slog.Info("Starting chat orchestrator",
		"port", cfg.Port,
		"weaviate_url", cfg.WeaviateURL,
		"reaper_interval", cfg.ReaperInterval.String(),
		"session_max_age", cfg.ReaperMaxAge.String(),
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("Invalid duration in environment, using default",
			"key", key, "value", value, "default", defaultValue.String())
	}
	return defaultValue
}
