package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/sproc"
	"github.com/loykin/sproc/internal/history"
	"github.com/loykin/sproc/internal/history/postgres"
	"github.com/loykin/sproc/internal/history/sqlite"
	"github.com/loykin/sproc/internal/logger"
)

// ServeFlags configures the long-running control daemon.
type ServeFlags struct {
	LogLevel        string
	LogFile         string
	HistorySqlite   string
	HistoryPostgres string
	ReconcileEvery  time.Duration
}

func buildServe(gf *GlobalFlags) *cobra.Command {
	sf := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control server and supervise services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(gf, sf)
		},
	}
	cmd.Flags().StringVar(&sf.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&sf.LogFile, "log-file", "", "write logs to a rotating file instead of stderr")
	cmd.Flags().StringVar(&sf.HistorySqlite, "history-sqlite", "", "record lifecycle events to a sqlite database at this path")
	cmd.Flags().StringVar(&sf.HistoryPostgres, "history-postgres", "", "record lifecycle events to postgres at this DSN")
	cmd.Flags().DurationVar(&sf.ReconcileEvery, "reconcile-every", 30*time.Second, "interval between state table reconcile passes")
	return cmd
}

func runServe(gf *GlobalFlags, sf *ServeFlags) error {
	log := logger.Setup(logger.Config{Level: sf.LogLevel, File: sf.LogFile})

	cfg, err := sproc.LoadConfig(gf.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.Server.Key == "" {
		return errors.New("server.key is not set; refusing to serve an unauthenticated control API")
	}

	sup, err := sproc.New(gf.ConfigPath, log)
	if err != nil {
		return err
	}

	var sinks []history.Sink
	if sf.HistorySqlite != "" {
		s, err := sqlite.New(sf.HistorySqlite)
		if err != nil {
			return fmt.Errorf("open sqlite history sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	if sf.HistoryPostgres != "" {
		s, err := postgres.New(sf.HistoryPostgres)
		if err != nil {
			return fmt.Errorf("open postgres history sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	defer func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}()
	sup.SetHistorySinks(sinks...)

	if err := sproc.RegisterMetricsDefault(); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}

	if err := sup.Reconcile(); err != nil {
		log.Warn("startup reconcile failed", "error", err)
	}
	sup.StartReconciler(sf.ReconcileEvery)
	defer sup.StopReconciler()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := sproc.NewHTTPServer(addr, cfg.Server.Key, sup, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("control server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Info("shutting down", "signal", s.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
