package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sixdegrees/bacond/internal/dataset"
	"github.com/sixdegrees/bacond/internal/engine"
)

// WatchDataset reloads the dataset into the engine whenever the file at path
// is replaced, and blocks until ctx is cancelled. The build publishes via
// rename, so the watch is on the parent directory. A load that fails
// validation is logged and the engine keeps serving the previous graph.
func WatchDataset(ctx context.Context, path string, eng *engine.Engine, srv *Server, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create dataset watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(path)

	// Writers rename into place, but coalesce bursts anyway.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("dataset watcher error", "error", err)

		case <-pending:
			pending = nil
			d, err := dataset.Load(path)
			if err != nil {
				log.Error("dataset reload rejected, keeping current graph", "path", path, "error", err)
				continue
			}
			eng.Load(d)
			if srv != nil {
				srv.SetReady(true)
			}
			log.Info("dataset reloaded", "path", path, "actors", d.Actors(), "movies", d.Movies())
		}
	}
}
