package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce coalesces the bursts of events editors produce on save.
const reloadDebounce = 200 * time.Millisecond

// Watch calls fn with the re-resolved Config each time the file at path
// changes and still resolves cleanly. Invalid edits are logged and skipped.
// The parent directory is watched so rename-on-save editors are followed.
// Watch blocks until ctx ends.
func Watch(ctx context.Context, path string, log zerolog.Logger, fn func(Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		case <-pending:
			pending = nil
			cfg, err := Resolve(abs)
			if err != nil {
				log.Error().Str("path", abs).Err(err).Msg("config reload rejected")
				continue
			}
			log.Info().Str("path", abs).Msg("config reloaded")
			fn(cfg)
		}
	}
}
