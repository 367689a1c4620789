package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aurahq/aura/internal/api"
	"github.com/aurahq/aura/internal/collector"
	"github.com/aurahq/aura/internal/config"
	"github.com/aurahq/aura/internal/logging"
	"github.com/aurahq/aura/internal/platform"
	"github.com/aurahq/aura/internal/report"
	"github.com/aurahq/aura/internal/tenants"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "aura",
	Short:   "AURA - multi-tenant monitoring report generator",
	Long:    `AURA assembles paginated PDF analysis reports from monitoring platform data.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("AURA %s (built %s)\n", Version, BuildTime)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <request.json>",
	Short: "Generate one report from a request file and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(args[0])
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildPipeline wires the shared pipeline components from configuration.
func buildPipeline(cfg *config.Config, logger zerolog.Logger) (*report.Generator, *tenants.Store, *collector.Registry, *platform.Registry, error) {
	store, err := tenants.NewStore(filepath.Join(cfg.DataPath, "tenants.db"), logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	builder, err := report.NewDocumentBuilder(cfg.OutputDir, logger)
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}

	modules := collector.DefaultRegistry()
	platforms := platform.NewRegistry()
	generator := report.NewGenerator(builder, platforms, modules, report.GeneratorConfig{
		ChunkSize:          cfg.HistoryChunkSize,
		ConnectorTimeout:   cfg.ConnectorTimeout,
		CollectConcurrency: cfg.CollectConcurrency,
	}, logger)

	return generator, store, modules, platforms, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	generator, store, modules, platforms, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	handlers := api.NewHandlers(generator, store, modules, platforms, cfg.ConnectorTimeout, cfg.ReportTimeout, logger)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handlers.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("version", Version).Msg("AURA server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runGenerate(requestPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: true})

	data, err := os.ReadFile(requestPath)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}
	var req report.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request file: %w", err)
	}

	generator, store, _, _, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ReportTimeout)
	defer cancel()

	client, err := store.GetClient(ctx, req.ClientID)
	if err != nil {
		return fmt.Errorf("load client %d: %w", req.ClientID, err)
	}
	sources, err := store.ListDataSources(ctx, client.ID)
	if err != nil {
		return fmt.Errorf("load data sources: %w", err)
	}

	path, err := generator.Generate(ctx, report.Tenant{ID: client.ID, Name: client.Name, Sources: sources}, req)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println("no data: no module produced results")
		return nil
	}
	fmt.Println(path)
	return nil
}
