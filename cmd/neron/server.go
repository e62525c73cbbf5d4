package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/neron/internal/api"
	"github.com/kalambet/neron/internal/config"
	"github.com/kalambet/neron/internal/dbpool"
	"github.com/kalambet/neron/internal/embedding"
	"github.com/kalambet/neron/internal/notes"
	"github.com/kalambet/neron/internal/search"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the neron server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "neron version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start a second instance on the same port.
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		printError("neron is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the connection pool. A dead database at startup is fatal.
	pool, err := dbpool.New(ctx, dbpool.Config{
		MinConns: cfg.DB.MinConns,
		MaxConns: cfg.DB.MaxConns,
	}, dbpool.PgxDial(cfg.DB.ConnString()))
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing pool: %v\n", err)
		}
	}()
	slog.Info("database pool ready", "min", cfg.DB.MinConns, "max", cfg.DB.MaxConns)

	// Build the tool collaborators.
	embedder := embedding.New(cfg.Voyage.APIKey, cfg.Voyage.Model)
	repo := notes.NewRepository(pool)
	gateway := search.NewGateway(embedder, pool, cfg.Voyage.Dimension)

	// MCP server over the stateless streamable HTTP transport.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Name:     cfg.Server.Name,
		Notes:    repo,
		Searcher: gateway,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true))

	handler := api.NewHandler(api.HandlerDeps{
		OAuth: api.OAuthConfig{
			Issuer:   cfg.Server.Issuer(),
			ClientID: cfg.Server.Name,
			Token:    cfg.Server.AuthToken,
		},
		Token:               cfg.Server.AuthToken,
		ResourceMetadataURL: cfg.Server.ResourceMetadataURL(),
		MCP:                 mcpHTTP,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("neron listening", "addr", addr, "issuer", cfg.Server.Issuer())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
