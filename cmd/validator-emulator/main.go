// Package main runs a local validation service emulator for development and
// integration testing of amsf-report.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/config"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/emulator"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/pathutil"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
)

const (
	defaultPort   = "8085"
	defaultDBPath = "./data/emulator.db"
)

func main() {
	// Setup structured JSON logging.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Get configuration from environment variables.
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		slog.Error("failed to create data directory", "error", err, "db_path", dbPath)
		os.Exit(1)
	}

	// Initialize store.
	st, err := emulator.NewStore(dbPath)
	if err != nil {
		slog.Error("failed to initialize store", "error", err, "db_path", dbPath)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	slog.Info("database initialized", "db_path", dbPath)

	opts := []emulator.Option{emulator.WithLogger(logger)}
	if registry := loadTaxonomy(); registry != nil {
		opts = append(opts, emulator.WithLookup(registry))
	}

	handler := emulator.NewHandler(st, opts...)

	// Start server.
	addr := fmt.Sprintf(":%s", port)
	slog.Info("starting validation emulator", "addr", addr, "port", port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		slog.Info("shutting down server")
		if err := server.Close(); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// loadTaxonomy loads the configured taxonomy for fact checks. Without one the
// emulator only checks document structure.
func loadTaxonomy() *taxonomy.Registry {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("configuration not loaded, taxonomy checks disabled", "error", err)
		return nil
	}

	files := pathutil.New(pathutil.Config{
		TaxonomyDir:     cfg.Taxonomy.Dir,
		TaxonomyVersion: cfg.Taxonomy.Version,
	}).GetTaxonomyFiles()

	registry := taxonomy.NewRegistry(taxonomy.Files{
		Schema:       files.Schema,
		Labels:       files.Labels,
		Presentation: files.Presentation,
		Overrides:    cfg.Taxonomy.OverridesFile,
	}, taxonomy.WithVersion(cfg.Taxonomy.Version))
	if err := registry.Load(); err != nil {
		slog.Warn("taxonomy not loaded, taxonomy checks disabled", "error", err)
		return nil
	}

	slog.Info("taxonomy loaded", "version", registry.Version(), "elements", registry.Len())
	return registry
}
