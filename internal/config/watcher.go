package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Watcher monitors the configuration file and re-applies the upload policy
// when it changes. Every other section is read once at startup.
type Watcher struct {
	configPath   string
	onUpload     func(UploadConfig)
	watcher      *fsnotify.Watcher
	reloadChan   chan struct{}
	debounceTime time.Duration

	mu      sync.Mutex
	current UploadConfig
	stopped bool
	done    chan struct{}
}

// NewWatcher creates a watcher for configPath. onUpload receives every
// validated upload policy that differs from the one it last delivered.
func NewWatcher(configPath string, initial UploadConfig, onUpload func(UploadConfig)) (*Watcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		configPath:   absPath,
		onUpload:     onUpload,
		watcher:      fw,
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 500 * time.Millisecond,
		current:      initial,
		done:         make(chan struct{}),
	}, nil
}

// Start begins monitoring. The directory is watched rather than the file so
// that editors replacing the file atomically are still observed.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	slog.Info("Starting configuration watcher", logfields.Path(w.configPath))
	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(w.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.triggerReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) triggerReload() {
	select {
	case w.reloadChan <- struct{}{}:
	default:
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.reloadChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceTime, func() {
				if err := w.Reload(); err != nil {
					slog.Error("Failed to reload configuration", logfields.Path(w.configPath), logfields.Error(err))
				}
			})
		}
	}
}

// Reload re-reads the file and delivers the upload policy if it changed.
// An invalid file leaves the current policy in place.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.configPath)
	if err != nil {
		return err
	}

	w.mu.Lock()
	changed := !reflect.DeepEqual(cfg.Upload, w.current)
	if changed {
		w.current = cfg.Upload
	}
	w.mu.Unlock()

	if changed {
		slog.Info("Upload policy reloaded",
			slog.Any("allowed_extensions", cfg.Upload.AllowedExtensions),
			slog.Int64("max_upload_bytes", cfg.Upload.MaxUploadBytes))
		w.onUpload(cfg.Upload)
	}
	return nil
}
