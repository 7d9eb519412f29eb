package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/datascope-io/datascope-engine/pkg/analysis"
	"github.com/datascope-io/datascope-engine/pkg/config"
	"github.com/datascope-io/datascope-engine/pkg/database"
	"github.com/datascope-io/datascope-engine/pkg/logging"
	"github.com/datascope-io/datascope-engine/pkg/mcp"
	"github.com/datascope-io/datascope-engine/pkg/mcp/tools"
	"github.com/datascope-io/datascope-engine/pkg/middleware"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("transport", cfg.Server.Transport),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Int32("max_connections", cfg.Database.MaxConnections))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MinConnections: cfg.Database.MinConnections,
		MaxConnections: cfg.Database.MaxConnections,
	})
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	engine := analysis.New(db, logger, analysis.Options{
		ZScoreThreshold: cfg.Analysis.ZScoreThreshold,
	})

	srv := mcp.NewServer("datascope-engine", cfg.Version, logger)
	tools.RegisterAnalysisTools(srv.MCP(), &tools.Deps{
		Engine:      engine,
		Logger:      logger,
		SampleLimit: cfg.Analysis.SampleLimit,
		QueryRowCap: cfg.Analysis.QueryRowCap,
	})
	tools.RegisterAnalysisPrompts(srv.MCP())

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		runHTTP(cfg, srv, logger)
	default:
		logger.Info("Starting datascope-engine on stdio", zap.String("version", cfg.Version))
		if err := srv.ServeStdio(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}
}

func runHTTP(cfg *config.Config, srv *mcp.Server, logger *zap.Logger) {
	mux := http.NewServeMux()

	mcpHandler := middleware.MCPRequestLogger(logger)(srv.NewStreamableHTTPServer())
	mux.Handle("/mcp", mcpHandler)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"` + cfg.Version + `"}`))
	})

	addr := cfg.Server.BindAddr + ":" + cfg.Server.Port
	logger.Info("Starting datascope-engine on HTTP",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))

	handler := middleware.RequestLogger(logger)(mux)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
