package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/clients"
	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/core"
	"github.com/mikeboe/query-orchestrator/pkg/database"
	"github.com/mikeboe/query-orchestrator/pkg/generator"
	"github.com/mikeboe/query-orchestrator/pkg/orchestration"
	"github.com/mikeboe/query-orchestrator/pkg/query"
	"github.com/mikeboe/query-orchestrator/pkg/tools"
)

var (
	queryText  string
	mode       string
	scope      string
	maxResults int
	stream     bool
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Run a natural language query against the configured backends",
		Long:  `A one-shot CLI for the query orchestration pipeline: validation, tool routing, multi-backend search, and mode-based response generation.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("query") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter query: ")
				input, _ := reader.ReadString('\n')
				queryText = strings.TrimSpace(input)
			}
			if queryText == "" {
				slog.Error("Query cannot be empty")
				os.Exit(1)
			}

			cfg := config.Load()
			orch, cleanup, err := buildOrchestrator(context.Background(), cfg)
			if err != nil {
				slog.Error("Failed to initialize", "error", err)
				os.Exit(1)
			}
			defer cleanup()

			req := &core.Request{
				Query:      queryText,
				Mode:       core.ParseMode(mode, core.ParseMode(cfg.DefaultMode, core.ModeList)),
				Scope:      scope,
				MaxResults: maxResults,
			}

			if stream {
				runStream(orch, req)
				return
			}
			runOnce(orch, req)
		},
	}

	rootCmd.Flags().StringVarP(&queryText, "query", "q", "", "The natural language query")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "Response mode: list, summarize, or generate")
	rootCmd.Flags().StringVarP(&scope, "scope", "s", "", "Restrict the search to one scope")
	rootCmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "Maximum number of results")
	rootCmd.Flags().BoolVar(&stream, "stream", false, "Stream the response incrementally")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestration.Orchestrator, func(), error) {
	var adapters []backend.Adapter
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	for _, id := range cfg.EnabledBackends {
		switch id {
		case "vector":
			if cfg.DatabaseURL == "" {
				slog.Warn("vector backend requested but DATABASE_URL is not set, skipping")
				continue
			}
			db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
			}
			cleanups = append(cleanups, db.Close)
			embedder, err := backend.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("failed to init embedder: %w", err)
			}
			vb, err := backend.NewVectorBackend(ctx, db, embedder, cfg.CollectionName)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("failed to init vector backend: %w", err)
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

	coordinator, err := backend.NewCoordinator(cfg, adapters)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, coordinator.Close)

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
	dispatcher := tools.NewDispatcher([]tools.Handler{
		tools.NewSearchHandler(coordinator),
		tools.NewDetailsHandler(coordinator),
		tools.NewCompareHandler(coordinator),
		tools.NewEnsembleHandler(coordinator),
		tools.NewRecipeHandler(coordinator),
	}, slog.Default())

	orch := orchestration.New(cfg, query.NewProcessor(cfg), tools.NewRouter(cfg), dispatcher, coordinator, gen)
	return orch, cleanup, nil
}

func runOnce(orch *orchestration.Orchestrator, req *core.Request) {
	resp, err := orch.Handle(context.Background(), req)
	if err != nil {
		slog.Error("Query failed", "error", err)
		os.Exit(1)
	}
	printResponse(resp)
}

func runStream(orch *orchestration.Orchestrator, req *core.Request) {
	var last *core.Response
	printed := 0
	for chunk, err := range orch.HandleStream(context.Background(), req) {
		if err != nil {
			slog.Error("Stream failed", "error", err)
			os.Exit(1)
		}
		if text := contentOf(chunk, req.Mode); len(text) > printed {
			fmt.Print(text[printed:])
			printed = len(text)
		}
		last = chunk
	}
	if printed > 0 {
		fmt.Println()
	}
	if last != nil && (req.Mode == core.ModeList || req.Mode == "") {
		printResponse(last)
	}
}

func contentOf(resp *core.Response, mode core.Mode) string {
	if mode == core.ModeSummarize {
		return resp.Summary
	}
	return resp.GeneratedResponse
}

func printResponse(resp *core.Response) {
	if resp.Error != "" {
		fmt.Printf("Error: %s\n", resp.Error)
		return
	}
	switch {
	case resp.GeneratedResponse != "":
		fmt.Println(resp.GeneratedResponse)
	case resp.Summary != "":
		fmt.Println(resp.Summary)
	}
	if len(resp.Results) > 0 {
		fmt.Printf("\nResults (%d, %dms):\n", len(resp.Results), resp.ProcessingTimeMs)
		for i, r := range resp.Results {
			fmt.Printf("%2d. [%.2f] %s\n    %s\n", i+1, r.Score, r.Name, r.URL)
		}
	}
}
