// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the core chat orchestrator service for
// Rutopia.
//
// This package contains the Orchestrator service type that coordinates all
// components: HTTP/WebSocket routing, the decision oracle client, the
// experience catalog tools, the in-memory session store with its reaper,
// and observability infrastructure.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rutopia/chat-orchestrator/services/llm"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/agent"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/observability"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/routes"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/session"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/tools"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the chat orchestrator service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// # Description
//
// Config centralizes all configuration for the service. Values can be
// populated from environment variables, config files, or programmatically
// for testing. All fields have sensible defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// WeaviateURL is the experience catalog URL.
	// If empty, catalog tools are disabled and the oracle answers without
	// search capability.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "rutopia-otel-collector:4317"
	OTelEndpoint string

	// AdminToken guards the /v1 admin routes when set.
	// If empty, the admin surface is open (development mode).
	AdminToken string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// ReaperInterval is how often the session reaper sweeps.
	// Default: 1 hour
	ReaperInterval time.Duration

	// ReaperMaxAge is the session staleness threshold for eviction.
	// Default: 24 hours
	ReaperMaxAge time.Duration
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
type service struct {
	config         Config
	router         *gin.Engine
	store          *session.Store
	reaper         *session.Reaper
	oracle         llm.DecisionClient
	weaviateClient *weaviate.Client
	metrics        *observability.ChatMetrics
	tracerCleanup  func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Creates the OpenAI decision-oracle client
//  5. Creates the Weaviate catalog client and tools if URL provided
//  6. Creates the session store and starts the reaper
//  7. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run orchestrator service.
//   - error: Non-nil if initialization fails.
//
// # Assumptions
//
//   - OPENAI_API_KEY is set (or the container secret is mounted).
//   - Network is available for external service connections.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
		store:  session.NewStore(),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	oracle, err := llm.NewOpenAIClient()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize decision oracle: %w", err)
	}
	s.oracle = oracle

	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, running without catalog tools",
			"error", err)
		// Not fatal - the oracle still answers, it just cannot search.
	}

	invoker, err := s.buildInvoker()
	if err != nil {
		s.cleanup()
		return nil, err
	}
	loop := agent.NewLoop(s.oracle, invoker)

	s.initReaper()
	s.initRouter(loop)

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting chat orchestrator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "rutopia-otel-collector:4317"
	}
	cfg.EnableMetrics = true

	defaults := session.DefaultReaperConfig()
	if cfg.ReaperInterval == 0 {
		cfg.ReaperInterval = defaults.Interval
	}
	if cfg.ReaperMaxAge == 0 {
		cfg.ReaperMaxAge = defaults.MaxAge
	}

	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("chat-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initWeaviate initializes the experience catalog client.
//
// Returns nil without a client when no URL is configured; the catalog is an
// optional dependency.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, catalog tools disabled")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	datatypes.EnsureWeaviateSchema(s.weaviateClient)
	slog.Info("Weaviate client initialized", "url", weaviateURL)

	return nil
}

// buildInvoker wires the tool registry against available backends.
func (s *service) buildInvoker() (*tools.Invoker, error) {
	var registered []tools.Tool

	if s.weaviateClient != nil {
		apiKey, err := llm.ResolveOpenAIAPIKey()
		if err != nil {
			return nil, fmt.Errorf("failed to configure embeddings: %w", err)
		}
		embedder := tools.NewOpenAIEmbedder(apiKey)
		registered = append(registered,
			tools.NewSearchTool(s.weaviateClient, embedder),
			tools.NewDetailsTool(s.weaviateClient),
		)
	}

	var onResult func(tool string, success bool, elapsed time.Duration)
	if s.metrics != nil {
		metrics := s.metrics
		onResult = func(tool string, success bool, _ time.Duration) {
			metrics.RecordToolInvocation(tool, success)
		}
	}

	return tools.NewInvoker(tools.NewRegistry(registered...), onResult), nil
}

// initReaper starts the background session reaper.
func (s *service) initReaper() {
	var onReap func(int)
	if s.metrics != nil {
		metrics := s.metrics
		store := s.store
		onReap = func(evicted int) {
			metrics.RecordReapedSessions(evicted)
			metrics.SetStoredSessions(store.Len())
		}
	}

	s.reaper = session.NewReaper(s.store, session.ReaperConfig{
		Interval: s.config.ReaperInterval,
		MaxAge:   s.config.ReaperMaxAge,
	}, onReap)

	if err := s.reaper.Start(context.Background()); err != nil {
		slog.Warn("Failed to start session reaper", "error", err)
	}
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter(loop *agent.Loop) {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("chat-orchestrator"))

	routes.SetupRoutes(s.router, s.store, loop, s.metrics, s.config.AdminToken)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.reaper != nil {
		s.reaper.Stop()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
