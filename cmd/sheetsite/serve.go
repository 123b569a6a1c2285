package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/sheetsite/pkg/health"
	"github.com/cuemby/sheetsite/pkg/metrics"
	"github.com/cuemby/sheetsite/pkg/signals"
	"github.com/cuemby/sheetsite/pkg/site"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site",
	Long: `Serve the marketing site, its lead and signal endpoints and the
health and metrics endpoints until interrupted.

Queued signals are flushed to the store on shutdown.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (overrides config)")
	serveCmd.Flags().String("admin-token", "", "Token required by the page mutation endpoint")
	serveCmd.Flags().Bool("no-mock", false, "Disable mock content fallback")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Listen = v
	}
	if v, _ := cmd.Flags().GetString("admin-token"); v != "" {
		cfg.AdminToken = v
	}
	if noMock, _ := cmd.Flags().GetBool("no-mock"); noMock {
		cfg.Content.MockFallback = false
	}

	st, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics.SetVersion(Version)
	storeProbe := health.NewMonitor(health.NewStoreChecker(st.gateway), health.DefaultConfig())

	agent := signals.New(st.gateway,
		signals.WithBatchSize(cfg.Signals.BatchSize),
		signals.WithFlushInterval(cfg.Signals.FlushInterval),
	)

	collector := metrics.NewCollector(15*time.Second, agent)
	collector.Start()
	defer collector.Stop()

	srv := site.New(site.Options{
		Listen:         cfg.Listen,
		AdminToken:     cfg.AdminToken,
		LeadsPerMinute: cfg.LeadsPerMinute,
		MockFallback:   cfg.Content.MockFallback,
		Probes:         []*health.Monitor{storeProbe},
	}, st.resolver, st.gateway, agent, nil)

	fmt.Printf("Serving sheetsite on %s (store: %s)\n", cfg.Listen, cfg.Store.Type)
	if err := srv.Start(cmd.Context()); err != nil {
		return fmt.Errorf("server error: %v", err)
	}
	fmt.Println("✓ Shutdown complete")
	return nil
}
