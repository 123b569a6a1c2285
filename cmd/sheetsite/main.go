package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/sheetsite/pkg/config"
	"github.com/cuemby/sheetsite/pkg/content"
	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/storage"
	"github.com/cuemby/sheetsite/pkg/throttle"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sheetsite",
	Short: "Sheetsite - a marketing site driven by a spreadsheet",
	Long: `Sheetsite serves a marketing site whose pages, layout and settings
live in a spreadsheet reached through the sheet2db REST facade.

Pages are assembled from typed components, fall back to built-in mock
content when the sheet is unavailable, and can be tuned by a small set of
conversion heuristics.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Sheetsite version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("store", "", "Store backend (sheet2db, bolt, memory)")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory for the bolt store")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(seedCmd)
}

// loadConfig reads the config file and environment, applies persistent
// flag overrides and validates the result
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Read(path)
	if err != nil {
		return cfg, err
	}

	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Type = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.Store.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// stack is the store-side wiring shared by every command
type stack struct {
	cfg       config.Config
	backend   storage.Backend
	throttler *throttle.Throttler
	gateway   *storage.Gateway
	resolver  *content.Resolver
}

func openStack(cfg config.Config) (*stack, error) {
	backend, err := cfg.OpenBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %v", cfg.Store.Type, err)
	}

	// Only the remote facade is rate limited.
	delay := cfg.Store.RequestDelay
	if cfg.Store.Type != config.StoreSheet2DB {
		delay = 0
	}
	th := throttle.New(delay)
	th.Start()

	gw := storage.NewGateway(backend, th)
	opts := []content.Option{
		content.WithCacheTTL(cfg.Content.CacheTTL),
		content.WithCacheSize(cfg.Content.CacheSize),
	}
	if cfg.Content.MockFallback {
		opts = append(opts, content.WithMock(content.NewMockSet()))
	}

	return &stack{
		cfg:       cfg,
		backend:   backend,
		throttler: th,
		gateway:   gw,
		resolver:  content.NewResolver(gw, opts...),
	}, nil
}

func (s *stack) Close() {
	s.throttler.Stop()
	if err := s.backend.Close(); err != nil {
		log.Errorf("Failed to close store", err)
	}
}
