package docstore

import (
	"context"

	"github.com/arne-cl/rstWeb/internal/models"
)

// Store is the document store contract consumed by the lifecycle manager.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	ListProjects(ctx context.Context) ([]string, error)
	CreateProject(ctx context.Context, name string) error
	DeleteProject(ctx context.Context, name string) error

	// ImportDocument reads, validates and persists the file at filePath under
	// its base name, creating project if needed. Nothing is written when the
	// file is rejected. Re-importing an existing name overwrites it.
	ImportDocument(ctx context.Context, filePath, project, user string) error
	DeleteDocument(ctx context.Context, user, project, file string) error

	Query(ctx context.Context, user, project string) ([]string, error)
	QueryAll(ctx context.Context, user string) ([]models.DocumentRef, error)
	Read(ctx context.Context, user, project, file string) (*models.Document, error)
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
