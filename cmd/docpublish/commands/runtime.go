package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/git"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/publish"
	"git.home.luguber.info/inful/docpublish/internal/retry"
	"git.home.luguber.info/inful/docpublish/internal/staging"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

// Runtime holds the collaborators shared by serve and publish.
type Runtime struct {
	Config      *config.Config
	Client      *git.Client
	Staging     *staging.Manager
	Gate        *upload.Gate
	Coordinator *publish.Coordinator
	Ledger      *history.Ledger // nil when history.path is empty
	Registry    *prometheus.Registry

	closers []func() error
}

// NewRuntime wires the publish pipeline described by cfg.
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	client, err := git.NewClient(cfg.Remote, cfg.Git)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:   cfg,
		Client:   client,
		Staging:  staging.NewManager(cfg.Publish.StagingDir, client),
		Gate:     upload.NewGate(cfg.Upload),
		Registry: prometheus.NewRegistry(),
	}
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []publish.Option{
		publish.WithLock(publish.NewLock(cfg.Publish.LockTimeoutDuration())),
		publish.WithReplay(retry.FromConfig(cfg.Publish)),
		publish.WithRecorder(metrics.NewPrometheusRecorder(rt.Registry)),
	}

	if cfg.History.Path != "" {
		ledger, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open publish history: %w", err)
		}
		rt.Ledger = ledger
		rt.closers = append(rt.closers, ledger.Close)
		opts = append(opts, publish.WithObserver(ledger))
	}

	if cfg.Events.NATSURL != "" {
		sender, err := notify.Connect(cfg.Events.NATSURL)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, sender.Close)
		opts = append(opts, publish.WithObserver(notify.New(sender, cfg.Events.Subject)))
	}

	rt.Coordinator = publish.NewCoordinator(rt.Staging, rt.Gate, opts...)

	slog.Info("Publish pipeline ready",
		logfields.URL(client.URL()),
		logfields.Branch(cfg.Remote.Branch),
		slog.String("staging_dir", rt.Staging.BaseDir()),
		slog.Int("push_attempts", cfg.Publish.PushAttempts),
		slog.Bool("history", rt.Ledger != nil),
		slog.Bool("events", cfg.Events.NATSURL != ""))
	return rt, nil
}

// Close releases the ledger and the event connection, newest first.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
