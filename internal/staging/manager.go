package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/git"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// dirPrefix marks directories created by this package so the sweeper never
// touches anything else under the base directory.
const dirPrefix = "docpublish-"

// Manager hands out staging areas under one base directory.
type Manager struct {
	baseDir string
	remote  git.Remote

	mu     sync.Mutex
	active map[string]struct{}
}

// NewManager creates a manager rooted at baseDir (the OS temp dir when empty).
func NewManager(baseDir string, remote git.Remote) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{
		baseDir: baseDir,
		remote:  remote,
		active:  make(map[string]struct{}),
	}
}

// BaseDir returns the directory areas are created in.
func (m *Manager) BaseDir() string { return m.baseDir }

// Acquire clones the remote into a new area. On failure nothing is left on disk.
func (m *Manager) Acquire(ctx context.Context) (*Area, error) {
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create staging directory").
			WithContext("path", m.baseDir).
			Build()
	}

	id := uuid.NewString()
	dir := filepath.Join(m.baseDir, dirPrefix+id)

	m.mu.Lock()
	m.active[id] = struct{}{}
	m.mu.Unlock()

	co, err := m.remote.Clone(ctx, dir)
	if err != nil {
		m.forget(id)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("Failed to remove partial clone", logfields.Path(dir), logfields.Error(rmErr))
		}
		return nil, err
	}

	slog.Debug("Acquired staging area", logfields.Path(dir), logfields.Branch(co.Branch()))
	return &Area{
		id:       id,
		dir:      dir,
		created:  time.Now(),
		checkout: co,
		manager:  m,
	}, nil
}

// Active returns the number of areas acquired and not yet released.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) isActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// Sweep removes staging directories older than maxAge that no live area
// owns, returning how many were removed.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, dirPrefix) {
			continue
		}
		if m.isActive(strings.TrimPrefix(name, dirPrefix)) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		full := filepath.Join(m.baseDir, name)
		if err := os.RemoveAll(full); err != nil {
			slog.Warn("Failed to sweep staging area", logfields.Path(full), logfields.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Swept stale staging areas", slog.Int("removed", removed), logfields.Path(m.baseDir))
	}
	return removed, nil
}
