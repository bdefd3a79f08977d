package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tradewind/tradewind/internal/dashboard"
	"github.com/tradewind/tradewind/internal/db"
	"github.com/tradewind/tradewind/internal/notify"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the procurement service with the HTTP API",
		Long: `Connects to the configured database, assembles the agents, starts the
abandon sweeper, and serves the intake and trace API until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "API port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Dashboard.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	notifier, err := newNotifier(cfg.Notify)
	if err != nil && !errors.Is(err, notify.ErrNoPlatform) {
		return err
	}
	if notifier != nil {
		if err := notifier.Connect(ctx); err != nil {
			return fmt.Errorf("connect notifier: %w", err)
		}
		defer notifier.Close()
		fmt.Fprintf(out, "Notifier connected (%s)\n", cfg.Notify.Platform)
	}

	sys, err := buildSystem(cfg, gormDB, out, notifier)
	if err != nil {
		return err
	}
	if err := sys.bus.Start(ctx); err != nil {
		return err
	}
	defer sys.bus.Stop()

	go sys.tracer.RunSweeper(ctx, gormDB)

	return dashboard.Start(ctx, dashboard.StartOpts{
		Port:     cfg.Dashboard.Port,
		Bus:      sys.bus,
		Sup:      sys.sup,
		Tracer:   sys.tracer,
		Engine:   sys.engine,
		Analyzer: sys.analyzer,
		Out:      out,
	})
}
