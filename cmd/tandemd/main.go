// Command tandemd is the Tandem sync daemon. It owns the in-memory domain
// stores, keeps them reconciled against the remote backend, and serves them
// to the UI over REST + SSE.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tandemhq/tandem/backend"
	"github.com/tandemhq/tandem/config"
	"github.com/tandemhq/tandem/gateway"
	"github.com/tandemhq/tandem/integration/google"
	"github.com/tandemhq/tandem/internal/version"
	"github.com/tandemhq/tandem/server"
	"github.com/tandemhq/tandem/session"
)

var (
	configPath = flag.String("config", "tandem.yaml", "path to config file")
	devBackend = flag.Bool("dev-backend", false, "run the embedded SQLite backend instead of a remote service")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if fi, err := os.Stat(*configPath); err == nil && !fi.IsDir() {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	logger.Info("starting tandemd",
		"version", version.Version,
		"commit", version.Commit,
	)

	remoteURL := cfg.Remote.BaseURL
	if *devBackend {
		url, stop, err := startDevBackend(cfg, logger)
		if err != nil {
			log.Fatalf("Failed to start dev backend: %v", err)
		}
		defer stop()
		remoteURL = url
	}

	gw := gateway.NewHTTPClient(remoteURL, cfg.Remote.Token)
	sess := session.New(gw, logger)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sess.FetchAll(ctx); err != nil {
		// Stores keep last-known-good data; a cold start just begins empty.
		logger.Warn("initial fetch incomplete", "error", err)
	}
	now := time.Now()
	sess.RefreshEvents(ctx, now.AddDate(0, -1, 0), now.AddDate(0, 3, 0))
	cancel()

	srv := server.New(*cfg, sess, version.Version, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	fmt.Printf("Tandem daemon running on http://localhost%s\n", cfg.Server.Addr)
	fmt.Printf("Version: %s (%s)\n", version.Version, version.Commit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	fmt.Println("Shutdown complete")
}

// startDevBackend runs the embedded SQLite backend on a local port and
// returns its base URL.
func startDevBackend(cfg *config.Config, logger *slog.Logger) (string, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := backend.NewStore(filepath.Join(cfg.DataDir, "tandem.db"))
	if err != nil {
		return "", nil, err
	}

	bs := backend.NewServer(store, "", logger)
	for _, ic := range cfg.Integrations {
		if ic.Type != google.SourceTag || ic.CredentialsFile == "" {
			continue
		}
		srv, err := google.NewService(context.Background(), ic.CredentialsFile, ic.TokenFile)
		if err != nil {
			logger.Warn("google integration unavailable", "integration", ic.ID, "error", err)
			continue
		}
		bs.RegisterSource(ic.ID, google.NewFetcher(srv, ic.CalendarID))
	}

	httpSrv := &http.Server{
		Addr:              ":8941",
		Handler:           bs,
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("dev backend error", "error", err)
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
		_ = store.Close()
	}
	return "http://localhost:8941", stop, nil
}
