package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/clients"
	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/database"
	"github.com/mikeboe/query-orchestrator/pkg/generator"
	"github.com/mikeboe/query-orchestrator/pkg/orchestration"
	"github.com/mikeboe/query-orchestrator/pkg/query"
	"github.com/mikeboe/query-orchestrator/pkg/server"
	"github.com/mikeboe/query-orchestrator/pkg/tools"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	cfg := config.Load()
	ctx := context.Background()

	// Backend setup. Unknown backend IDs are skipped with a warning so a
	// misconfigured list still brings up the rest.
	var adapters []backend.Adapter
	var db *database.PostgresDB
	for _, id := range cfg.EnabledBackends {
		switch id {
		case "vector":
			if cfg.DatabaseURL == "" {
				slog.Warn("vector backend requested but DATABASE_URL is not set, skipping")
				continue
			}
			var err error
			db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
			if err != nil {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			embedder, err := backend.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey)
			if err != nil {
				log.Fatalf("Failed to init embedder: %v", err)
			}
			vb, err := backend.NewVectorBackend(ctx, db, embedder, cfg.CollectionName)
			if err != nil {
				log.Fatalf("Failed to init vector backend: %v", err)
			}
			adapters = append(adapters, vb)
		case "arxiv":
			adapters = append(adapters, backend.NewArxivBackend(nil))
		case "memory":
			adapters = append(adapters, backend.NewMemoryBackend(nil))
		default:
			slog.Warn("Unknown backend in ENABLED_BACKENDS, skipping", "backend", id)
		}
	}
	if db != nil {
		defer db.Close()
	}

	coordinator, err := backend.NewCoordinator(cfg, adapters)
	if err != nil {
		log.Fatalf("Failed to init backend coordinator: %v", err)
	}
	defer coordinator.Close()

	// The completion provider is optional; without it the generator falls
	// back to deterministic templates.
	var provider generator.CompletionProvider
	if cfg.GoogleApiKey != "" {
		p, err := clients.NewGoogleProvider(ctx, cfg.CompletionModel, cfg.GoogleApiKey)
		if err != nil {
			slog.Warn("Failed to init completion provider, using templates", "error", err)
		} else {
			provider = p
		}
	}

	gen := generator.NewGenerator(cfg, coordinator, provider)
	processor := query.NewProcessor(cfg)
	router := tools.NewRouter(cfg)
	dispatcher := tools.NewDispatcher([]tools.Handler{
		tools.NewSearchHandler(coordinator),
		tools.NewDetailsHandler(coordinator),
		tools.NewCompareHandler(coordinator),
		tools.NewEnsembleHandler(coordinator),
		tools.NewRecipeHandler(coordinator),
	}, slog.Default())

	orch := orchestration.New(cfg, processor, router, dispatcher, coordinator, gen)
	handler := server.NewHandler(orch, coordinator)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
