package staging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Janitor periodically sweeps staging directories left behind by a crashed
// or killed process.
type Janitor struct {
	scheduler gocron.Scheduler
	manager   *Manager
	maxAge    time.Duration
	interval  time.Duration
}

// NewJanitor creates a janitor. Call Start to schedule sweeps.
func NewJanitor(m *Manager, maxAge, interval time.Duration) (*Janitor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Janitor{scheduler: s, manager: m, maxAge: maxAge, interval: interval}, nil
}

// Start sweeps once immediately, then every interval.
func (j *Janitor) Start(ctx context.Context) error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(j.sweep),
		gocron.WithName("staging-sweep"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule staging sweep: %w", err)
	}
	slog.Info("Starting staging janitor",
		logfields.Path(j.manager.BaseDir()),
		slog.Duration("interval", j.interval),
		slog.Duration("max_age", j.maxAge))
	j.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep.
func (j *Janitor) Stop(ctx context.Context) error {
	slog.Info("Stopping staging janitor")
	return j.scheduler.Shutdown()
}

func (j *Janitor) sweep() {
	if _, err := j.manager.Sweep(j.maxAge); err != nil {
		slog.Error("Staging sweep failed", logfields.Error(err))
	}
}
