// Command analystd runs the analytical chat orchestration runtime: the
// HTTP/WebSocket API, the tiered dispatcher, and the background cleanup
// sweeps, all wired against one PostgreSQL database.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dataloom/analystrt/pkg/api"
	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/capability/llmgrpc"
	"github.com/dataloom/analystrt/pkg/capability/qdrantstore"
	"github.com/dataloom/analystrt/pkg/classifier"
	"github.com/dataloom/analystrt/pkg/cleanup"
	"github.com/dataloom/analystrt/pkg/config"
	"github.com/dataloom/analystrt/pkg/database"
	"github.com/dataloom/analystrt/pkg/dispatcher"
	"github.com/dataloom/analystrt/pkg/engine"
	"github.com/dataloom/analystrt/pkg/events"
	"github.com/dataloom/analystrt/pkg/ledger"
	"github.com/dataloom/analystrt/pkg/relstore"
	"github.com/dataloom/analystrt/pkg/store"
	"github.com/dataloom/analystrt/pkg/tools"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting analystd", "http_port", httpPort, "config_dir", *configDir)

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("configuration loaded", "agents", stats.Agents, "llm_providers", stats.LLMProviders)

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("connected to postgresql", "database", dbConfig.Database)

	podID := getEnv("POD_ID", hostnameOrDefault())
	st := store.New(dbClient.Pool, podID)

	led := ledger.New(dbClient.Pool, slog.Default())

	llms, err := buildLLMClients(cfg.LLMProviderRegistry)
	if err != nil {
		slog.Error("failed to build LLM backend clients", "error", err)
		os.Exit(1)
	}
	defer func() {
		for tier, llm := range llms {
			if closer, ok := llm.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					slog.Warn("error closing llm backend connection", "tier", tier, "error", err)
				}
			}
		}
	}()

	// The "complex" tier's gRPC backend client doubles as the Embedder; fall
	// back to the stub when no "complex" tier is configured.
	var embedder capability.Embedder = capability.StubEmbedder{}
	if e, ok := llms["complex"].(capability.Embedder); ok {
		embedder = e
	}

	vectorStore, err := buildVectorStore()
	if err != nil {
		slog.Error("failed to connect to vector store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := vectorStore.Close(); err != nil {
			slog.Warn("error closing vector store connection", "error", err)
		}
	}()

	toolRegistry := tools.NewRegistry(tools.Deps{
		LLM:             llms[cfg.Defaults.LLMProvider],
		Embedder:        embedder,
		RelationalStore: relstore.New(dbClient.Pool),
		VectorStore:     vectorStore,
		Logger:          slog.Default(),
	})

	team, err := config.BuildTeam(cfg.Team)
	if err != nil {
		slog.Error("failed to build agent team", "error", err)
		os.Exit(1)
	}

	eng := &engine.Engine{
		Tools:  toolRegistry,
		LLMs:   llms,
		Ledger: led,
		Config: engine.DefaultConfig(),
		Logger: slog.Default(),
	}

	classifierLLM, ok := llms["simple"]
	if !ok {
		slog.Error("no \"simple\" tier LLM provider configured; required for the query classifier")
		os.Exit(1)
	}
	clsfr := classifier.New(classifierLLM, led, slog.Default())

	disp := dispatcher.New(dispatcher.Deps{
		Classifier: clsfr,
		Engine:     eng,
		Team:       team,
		SimpleLLM:  llms["simple"],
		MediumLLM:  llms["medium"],
		Store:      st,
		Logger:     slog.Default(),
	})

	publisher := events.NewEventPublisher(dbClient.Pool)
	connManager := events.NewConnectionManager(st, 10*time.Second)

	listener := events.NewNotifyListener(database.DSN(dbConfig), connManager)
	connManager.SetListener(listener)
	if err := listener.Start(ctx); err != nil {
		slog.Error("failed to start notify listener", "error", err)
		os.Exit(1)
	}
	defer listener.Stop(context.WithoutCancel(ctx))

	cleanupSvc := cleanup.NewService(cfg.Retention, st)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	server := api.NewServer(dbClient, st, disp, publisher, connManager)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", ":"+httpPort)
		if err := server.Start(":" + httpPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during http server shutdown", "error", err)
	}
}

// buildLLMClients constructs one gRPC-backed LLM client per configured
// provider tier. Each tier's backend address is taken from its BaseURL
// field, falling back to LLM_BACKEND_ADDR for providers that share a
// single out-of-process backend.
func buildLLMClients(registry *config.LLMProviderRegistry) (map[string]capability.LLM, error) {
	defaultAddr := getEnv("LLM_BACKEND_ADDR", "localhost:9090")

	llms := make(map[string]capability.LLM)
	for tier, provider := range registry.GetAll() {
		addr := provider.BaseURL
		if addr == "" {
			addr = defaultAddr
		}
		client, err := llmgrpc.Dial(addr, provider.Model)
		if err != nil {
			return nil, err
		}
		llms[tier] = client
	}
	return llms, nil
}

func buildVectorStore() (*qdrantstore.Store, error) {
	port := 6334
	return qdrantstore.New(qdrantstore.Config{
		Host:   getEnv("QDRANT_HOST", "localhost"),
		Port:   port,
		APIKey: os.Getenv("QDRANT_API_KEY"),
		UseTLS: getEnv("QDRANT_TLS", "false") == "true",
	})
}

func hostnameOrDefault() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "analystd"
	}
	return name
}
