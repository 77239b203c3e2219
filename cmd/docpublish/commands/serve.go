package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/server/httpserver"
	"git.home.luguber.info/inful/docpublish/internal/staging"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Address string `short:"a" help:"Listen address (overrides server.address)"`
	NoWatch bool   `name:"no-watch" help:"Do not reload the upload policy when the config file changes"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s.Address != "" {
		cfg.Server.Address = s.Address
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunServe(ctx, cfg, root.Config, !s.NoWatch)
}

// RunServe runs the upload service until ctx is cancelled.
func RunServe(ctx context.Context, cfg *config.Config, configPath string, watch bool) error {
	rt, err := NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			slog.Warn("Failed to close runtime", logfields.Error(cerr))
		}
	}()

	janitor, err := staging.NewJanitor(rt.Staging, cfg.Publish.StagingMaxAgeDuration(), cfg.Publish.SweepIntervalDuration())
	if err != nil {
		return err
	}
	if err := janitor.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := janitor.Stop(stopCtx); err != nil {
			slog.Warn("Failed to stop staging janitor", logfields.Error(err))
		}
	}()

	if watch {
		watcher, err := config.NewWatcher(configPath, cfg.Upload, rt.Gate.Update)
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start config watcher: %w", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	opts := httpserver.Options{
		Publisher: rt.Coordinator,
		Gate:      rt.Gate,
		Staging:   rt.Staging,
	}
	if rt.Ledger != nil {
		opts.History = rt.Ledger
	}
	if cfg.Metrics.Enabled {
		opts.PrometheusHandler = metrics.HTTPHandler(rt.Registry)
	}
	srv, err := httpserver.New(cfg.Server, opts)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	slog.Info("docpublish serving, waiting for shutdown signal...", slog.String("address", srv.Addr().String()))
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	if err := srv.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop cleanly: %w", err)
	}
	slog.Info("docpublish stopped successfully")
	return nil
}
