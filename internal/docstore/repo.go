package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arne-cl/rstWeb/internal/apperr"
	"github.com/arne-cl/rstWeb/internal/checksum"
	"github.com/arne-cl/rstWeb/internal/models"
	"github.com/arne-cl/rstWeb/internal/rs3"
)

// ListProjects returns every project name in lexical order.
func (db *DB) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("docstore: list projects: %w", err)
	}
	return scanStrings(rows)
}

// CreateProject adds a project. Creating an existing project is a no-op.
func (db *DB) CreateProject(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("docstore: create project: %w", apperr.ErrInvalidName)
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO projects (name, created_at) VALUES (?, ?)`,
		name, db.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("docstore: create project %q: %w", name, err)
	}
	return nil
}

// DeleteProject removes a project and, by cascade, all of its documents.
// Deleting a missing project is a no-op.
func (db *DB) DeleteProject(ctx context.Context, name string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM projects WHERE name = ?`, name); err != nil {
		return fmt.Errorf("docstore: delete project %q: %w", name, err)
	}
	return nil
}

// ImportDocument validates the rs3 file at filePath and upserts it, together
// with its project, within a transaction.
func (db *DB) ImportDocument(ctx context.Context, filePath, project, user string) error {
	name := filepath.Base(filePath)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("docstore: import %s: %w", name, err)
	}
	parsed, err := rs3.Parse(data)
	if err != nil {
		return fmt.Errorf("docstore: import %s: %w: %w", name, apperr.ErrInvalidDocument, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := db.clock.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO projects (name, created_at) VALUES (?, ?)`, project, now); err != nil {
		return fmt.Errorf("docstore: ensure project %q: %w", project, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO docs (doc, project, user, content, checksum, segments, relations, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc, project, user) DO UPDATE SET
			content    = excluded.content,
			checksum   = excluded.checksum,
			segments   = excluded.segments,
			relations  = excluded.relations,
			updated_at = excluded.updated_at
	`, name, project, user, data, checksum.Sum(data), len(parsed.Segments), len(parsed.Relations), now)
	if err != nil {
		return fmt.Errorf("docstore: upsert %s: %w", name, err)
	}
	return tx.Commit()
}

// DeleteDocument removes one document. Deleting a missing document is a no-op.
func (db *DB) DeleteDocument(ctx context.Context, user, project, file string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM docs WHERE doc = ? AND project = ? AND user = ?`, file, project, user)
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", project, file, err)
	}
	return nil
}

// Query returns the document names of user in project.
func (db *DB) Query(ctx context.Context, user, project string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT doc FROM docs WHERE user = ? AND project = ? ORDER BY doc`, user, project)
	if err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", project, err)
	}
	return scanStrings(rows)
}

// QueryAll returns every document of user across all projects.
func (db *DB) QueryAll(ctx context.Context, user string) ([]models.DocumentRef, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT doc, project FROM docs WHERE user = ? ORDER BY project, doc`, user)
	if err != nil {
		return nil, fmt.Errorf("docstore: query all: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentRef
	for rows.Next() {
		var ref models.DocumentRef
		if err := rows.Scan(&ref.Name, &ref.Project); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Read returns a stored document or apperr.ErrNotFound.
func (db *DB) Read(ctx context.Context, user, project, file string) (*models.Document, error) {
	doc := models.Document{Name: file, Project: project, User: user}
	err := db.conn.QueryRowContext(ctx, `
		SELECT content, checksum, segments, relations, updated_at
		FROM docs WHERE doc = ? AND project = ? AND user = ?
	`, file, project, user).Scan(&doc.Content, &doc.Checksum, &doc.Segments, &doc.Relations, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("docstore: read %s/%s: %w", project, file, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: read %s/%s: %w", project, file, err)
	}
	return &doc, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
