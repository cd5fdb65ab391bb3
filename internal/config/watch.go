package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the holder's config file whenever it is written, created,
// or renamed into place, and publishes the result through h. A reload that
// fails to parse or validate is logged and the previous config stays active.
// Watch blocks until ctx is canceled.
func Watch(ctx context.Context, h *Holder, logger *slog.Logger) error {
	path := filepath.Clean(h.Path())
	dir := filepath.Dir(path)

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		logger.Info("config directory missing, reload disabled", slog.String("dir", dir))
		<-ctx.Done()

		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors save by writing a temp file and renaming it over the original,
	// which drops a watch on the file itself. Watching the directory survives.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s: %w", dir, err)
	}

	logger.Info("watching config for changes", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != path {
				continue
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			reload(h, logger)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", werr.Error()))
		}
	}
}

func reload(h *Holder, logger *slog.Logger) {
	cfg, err := Reload(h.Path())
	if err != nil {
		logger.Warn("config reload rejected, keeping previous config",
			slog.String("path", h.Path()),
			slog.String("error", err.Error()),
		)

		return
	}

	if err := h.Update(cfg); err != nil {
		logger.Warn("config reload rejected, keeping previous config",
			slog.String("path", h.Path()),
			slog.String("error", err.Error()),
		)

		return
	}

	logger.Info("config reloaded", slog.String("path", h.Path()))
}
