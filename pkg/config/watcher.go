package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/cuemby/whisker/pkg/log"
)

// DefaultDebounce coalesces the burst of events editors produce on save
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads the config file when it changes and hands the new
// configuration to a callback. Invalid files are logged and ignored.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config)
	logger   zerolog.Logger
}

// NewWatcher creates a watcher for the config file at path
func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   log.WithComponent("config"),
	}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// that editors replacing the file through a rename are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	dir, file := filepath.Split(filepath.Clean(w.path))
	if dir == "" {
		dir = "."
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Debug().Str("file", w.path).Msg("Watching config file")

	var (
		timer   *time.Timer
		reloadC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			reloadC = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")

		case <-reloadC:
			reloadC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("Ignoring invalid config change")
		return
	}
	w.logger.Info().Str("file", w.path).Msg("Config reloaded")
	w.onChange(cfg)
}
