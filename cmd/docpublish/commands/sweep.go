package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/staging"
)

// SweepCmd implements the 'sweep' command.
type SweepCmd struct {
	MaxAge time.Duration `name:"max-age" help:"Remove staging directories older than this (default: publish.staging_max_age)"`
}

func (s *SweepCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = cfg.Publish.StagingMaxAgeDuration()
	}
	return RunSweep(g, staging.NewManager(cfg.Publish.StagingDir, nil), maxAge)
}

// RunSweep removes stale staging directories under m's base directory.
func RunSweep(g *Global, m *staging.Manager, maxAge time.Duration) error {
	n, err := m.Sweep(maxAge)
	if err != nil {
		return err
	}
	g.Printf("Removed %d stale staging director(ies) from %s\n", n, m.BaseDir())
	return nil
}
