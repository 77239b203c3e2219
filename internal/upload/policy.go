package upload

import (
	"slices"
	"sync/atomic"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

// Policy is an immutable snapshot of the upload acceptance rules.
type Policy struct {
	extensions []string
	maxBytes   int64
}

// NewPolicy builds a snapshot from the upload config section.
func NewPolicy(cfg config.UploadConfig) *Policy {
	return &Policy{
		extensions: slices.Clone(cfg.AllowedExtensions),
		maxBytes:   cfg.MaxUploadBytes,
	}
}

// Allows reports whether ext (lower-case, no dot) is on the allow-list.
func (p *Policy) Allows(ext string) bool {
	return ext != "" && slices.Contains(p.extensions, ext)
}

// Extensions returns the allow-list.
func (p *Policy) Extensions() []string { return slices.Clone(p.extensions) }

// MaxBytes is the largest accepted request body.
func (p *Policy) MaxBytes() int64 { return p.maxBytes }

// Gate holds the current policy and lets a config watcher swap it while
// requests are in flight.
type Gate struct {
	current atomic.Pointer[Policy]
}

// NewGate creates a gate holding cfg.
func NewGate(cfg config.UploadConfig) *Gate {
	g := &Gate{}
	g.Update(cfg)
	return g
}

// Policy returns the snapshot in effect.
func (g *Gate) Policy() *Policy { return g.current.Load() }

// Update replaces the policy. It matches the watcher callback signature.
func (g *Gate) Update(cfg config.UploadConfig) { g.current.Store(NewPolicy(cfg)) }
