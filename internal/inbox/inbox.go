// Package inbox imports rs3 files dropped into a directory tree laid out as
// <root>/<project>/<file>.rs3 and keeps the document store in step with it.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/arne-cl/rstWeb/internal/apperr"
	"github.com/arne-cl/rstWeb/internal/checksum"
	"github.com/arne-cl/rstWeb/internal/lifecycle"
	"github.com/arne-cl/rstWeb/internal/models"
)

// Ext is the extension of files picked up from the inbox.
const Ext = ".rs3"

// Importer is the subset of the lifecycle manager used by the inbox.
type Importer interface {
	GetDocument(ctx context.Context, req lifecycle.GetDocumentRequest) (*lifecycle.Content, error)
	UpdateDocument(ctx context.Context, req lifecycle.PutDocumentRequest) error
	DeleteDocument(ctx context.Context, project, file string) error
}

var _ Importer = (*lifecycle.Manager)(nil)

// split maps an absolute path under root to its project and file name.
// ok is false for anything that is not <root>/<project>/<name>.rs3.
func split(root, path string) (project, file string, ok bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return "", "", false
	}
	project, file = parts[0], parts[1]
	if strings.HasPrefix(project, ".") || strings.HasPrefix(file, ".") || !strings.HasSuffix(file, Ext) {
		return "", "", false
	}
	return project, file, true
}

// importFile imports path unless the stored copy already has the same content.
// It reports whether the store changed.
func importFile(ctx context.Context, imp Importer, project, file, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("inbox: read %s: %w", path, err)
	}
	current, err := imp.GetDocument(ctx, lifecycle.GetDocumentRequest{Project: project, File: file, Output: models.OutputRS3})
	switch {
	case err == nil && current.Checksum == checksum.Sum(data):
		return false, nil
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		return false, err
	}
	if err := imp.UpdateDocument(ctx, lifecycle.PutDocumentRequest{Project: project, File: file, Content: data}); err != nil {
		return false, err
	}
	return true, nil
}

// Sync imports every inbox file whose content differs from the stored copy.
// Files that fail to import are logged and skipped.
func Sync(ctx context.Context, imp Importer, root string, logger *slog.Logger) error {
	projects, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("inbox: sync: %w", err)
	}
	for _, p := range projects {
		if !p.IsDir() {
			continue
		}
		syncProject(ctx, imp, root, filepath.Join(root, p.Name()), logger)
	}
	return nil
}

func syncProject(ctx context.Context, imp Importer, root, dir string, logger *slog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("inbox: read dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		project, file, ok := split(root, path)
		if !ok {
			continue
		}
		changed, err := importFile(ctx, imp, project, file, path)
		if err != nil {
			logger.Warn("inbox: import failed",
				slog.String("project", project), slog.String("file", file), slog.String("error", err.Error()))
			continue
		}
		if changed {
			logger.Info("inbox: imported", slog.String("project", project), slog.String("file", file))
		}
	}
}
