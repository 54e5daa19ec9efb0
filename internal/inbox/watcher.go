package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long a path must stay quiet before it is processed, so that
// a file written in several chunks is imported once.
const settle = 200 * time.Millisecond

// Watch syncs root once and then follows fsnotify events until ctx is
// cancelled. Project directories created at runtime are watched and synced.
// Changed paths are collected and processed after they settle: a path that
// still exists is imported, a missing one is deleted from the store.
func Watch(ctx context.Context, imp Importer, root string, logger *slog.Logger) error {
	root = filepath.Clean(root)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", root, err)
	}
	projects, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	for _, p := range projects {
		if p.IsDir() {
			if err := w.Add(filepath.Join(root, p.Name())); err != nil {
				logger.Warn("inbox: watch project failed", slog.String("project", p.Name()), slog.String("error", err.Error()))
			}
		}
	}

	if err := Sync(ctx, imp, root, logger); err != nil {
		return err
	}
	logger.Info("inbox: started", slog.String("root", root))

	pending := make(map[string]struct{})
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(settle)
			timerCh = timer.C
		} else {
			timer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-timerCh:
			for path := range pending {
				apply(ctx, imp, root, path, logger)
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// New project directory: watch it and pick up files already inside.
			if ev.Op&fsnotify.Create != 0 && filepath.Dir(ev.Name) == root {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.Add(ev.Name); addErr != nil {
						logger.Warn("inbox: watch project failed",
							slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					syncProject(ctx, imp, root, ev.Name, logger)
					continue
				}
			}

			if _, _, ok := split(root, ev.Name); !ok {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				pending[ev.Name] = struct{}{}
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// apply brings the store in line with the current state of path.
func apply(ctx context.Context, imp Importer, root, path string, logger *slog.Logger) {
	project, file, _ := split(root, path)
	attrs := []any{slog.String("project", project), slog.String("file", file)}

	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := imp.DeleteDocument(ctx, project, file); err != nil {
			logger.Warn("inbox: delete failed", append(attrs, slog.String("error", err.Error()))...)
			return
		}
		logger.Info("inbox: deleted", attrs...)
	case err != nil:
		logger.Warn("inbox: stat failed", append(attrs, slog.String("error", err.Error()))...)
	default:
		changed, err := importFile(ctx, imp, project, file, path)
		if err != nil {
			logger.Warn("inbox: import failed", append(attrs, slog.String("error", err.Error()))...)
			return
		}
		if changed {
			logger.Info("inbox: imported", attrs...)
		}
	}
}
