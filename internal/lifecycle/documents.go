package lifecycle

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"

	"github.com/arne-cl/rstWeb/internal/apperr"
	"github.com/arne-cl/rstWeb/internal/metrics"
	"github.com/arne-cl/rstWeb/internal/models"
)

// Content types of GetDocument results.
const (
	ContentTypeDownload  = "application/download"
	ContentTypePNG       = "image/png"
	ContentTypePNGBase64 = "data:image/png;base64"
)

// ListDocuments returns the documents of the implicit user in project.
func (m *Manager) ListDocuments(ctx context.Context, project string) ([]string, error) {
	docs, err := m.store.Query(ctx, m.user, project)
	if err != nil {
		return nil, upstream("list documents of %q: %w", project, err)
	}
	return docs, nil
}

// ListAllDocuments returns every document of the implicit user grouped by project.
func (m *Manager) ListAllDocuments(ctx context.Context) (map[string][]string, error) {
	refs, err := m.store.QueryAll(ctx, m.user)
	if err != nil {
		return nil, upstream("list all documents: %w", err)
	}
	out := make(map[string][]string)
	for _, ref := range refs {
		if m.IsScratch(ref.Project) {
			continue
		}
		out[ref.Project] = append(out[ref.Project], ref.Name)
	}
	return out, nil
}

// GetDocument returns a stored document in the requested output format.
func (m *Manager) GetDocument(ctx context.Context, req GetDocumentRequest) (*Content, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := m.checkReserved(req.Project); err != nil {
		return nil, err
	}
	return m.getDocument(ctx, req)
}

func (m *Manager) getDocument(ctx context.Context, req GetDocumentRequest) (*Content, error) {
	exists, docs, err := m.documentExists(ctx, req.Project, req.File)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: file %q not available in project %q for the current user. Available files: %v",
			apperr.ErrNotFound, req.File, req.Project, docs)
	}

	switch req.Output {
	case models.OutputRS3:
		doc, err := m.store.Read(ctx, m.user, req.Project, req.File)
		if err != nil {
			return nil, upstream("read %s/%s: %w", req.Project, req.File, err)
		}
		return &Content{
			Format:      req.Output,
			Data:        doc.Content,
			ContentType: ContentTypeDownload,
			Filename:    req.File,
			Checksum:    doc.Checksum,
		}, nil

	case models.OutputPNG, models.OutputPNGBase64:
		img, err := m.render(ctx, req.Project, req.File)
		if err != nil {
			return nil, err
		}
		if req.Output == models.OutputPNG {
			return &Content{
				Format:      req.Output,
				Data:        img,
				ContentType: ContentTypePNG,
				Filename:    req.File + ".png",
			}, nil
		}
		encoded := make([]byte, base64.StdEncoding.EncodedLen(len(img)))
		base64.StdEncoding.Encode(encoded, img)
		return &Content{
			Format:      req.Output,
			Data:        encoded,
			ContentType: ContentTypePNGBase64,
		}, nil

	case models.OutputEditor:
		target, err := m.editor.Expand(map[string]interface{}{
			"current_doc":     req.File,
			"current_project": req.Project,
		})
		if err != nil {
			return nil, fmt.Errorf("lifecycle: expand editor url: %w", err)
		}
		return &Content{Format: req.Output, RedirectURL: target}, nil

	default:
		return nil, fmt.Errorf("%w: unknown output format: %s", apperr.ErrUnsupportedFormat, req.Output)
	}
}

func (m *Manager) render(ctx context.Context, project, file string) ([]byte, error) {
	doc, err := m.store.Read(ctx, m.user, project, file)
	if err != nil {
		return nil, upstream("read %s/%s: %w", project, file, err)
	}
	img, err := m.renderer.Render(ctx, doc)
	if err != nil {
		return nil, upstream("render %s/%s: %w", project, file, err)
	}
	return img, nil
}

// AddDocument imports a new document. It rejects names that already exist in
// the project; UpdateDocument is the overwrite path.
func (m *Manager) AddDocument(ctx context.Context, req PutDocumentRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := m.checkReserved(req.Project); err != nil {
		return err
	}
	exists, _, err := m.documentExists(ctx, req.Project, req.File)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: document %q already exists in project %q, use update (PUT) to replace it",
			apperr.ErrAlreadyExists, req.File, req.Project)
	}
	if err := m.importDocument(ctx, req.Project, req.File, req.Content); err != nil {
		return err
	}
	m.emit(EventDocumentAdded, req.Project, req.File)
	return nil
}

// UpdateDocument imports a document, overwriting an existing one of the same name.
func (m *Manager) UpdateDocument(ctx context.Context, req PutDocumentRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := m.checkReserved(req.Project); err != nil {
		return err
	}
	existed, _, err := m.documentExists(ctx, req.Project, req.File)
	if err != nil {
		return err
	}
	if err := m.importDocument(ctx, req.Project, req.File, req.Content); err != nil {
		return err
	}
	if existed {
		m.emit(EventDocumentUpdated, req.Project, req.File)
	} else {
		m.emit(EventDocumentAdded, req.Project, req.File)
	}
	return nil
}

// DeleteDocument removes a document and verifies it is gone.
func (m *Manager) DeleteDocument(ctx context.Context, project, file string) error {
	if err := m.checkReserved(project); err != nil {
		return err
	}
	existed, err := m.deleteDocument(ctx, project, file)
	if err != nil {
		return err
	}
	if existed {
		m.emit(EventDocumentDeleted, project, file)
	}
	return nil
}

func (m *Manager) deleteDocument(ctx context.Context, project, file string) (bool, error) {
	existed, _, err := m.documentExists(ctx, project, file)
	if err != nil {
		return false, err
	}
	if err := m.store.DeleteDocument(ctx, m.user, project, file); err != nil {
		return false, upstream("delete %s/%s: %w", project, file, err)
	}
	stillThere, _, err := m.documentExists(ctx, project, file)
	if err != nil {
		return false, err
	}
	if stillThere {
		return false, m.inconsistent("delete_document", "document %q is still listed in project %q after deletion", file, project)
	}
	return existed, nil
}

// importDocument stages content, imports it and verifies the document is
// listed afterwards. The store creates a missing project in the same
// transaction, so a rejected upload leaves no empty project behind. The staged
// file is released on every exit path.
func (m *Manager) importDocument(ctx context.Context, project, file string, content []byte) (err error) {
	defer func() {
		if m.metrics == nil {
			return
		}
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
		}
		m.metrics.Imports.WithLabelValues(outcome).Inc()
	}()

	staged, err := m.staging.Stage(file, content)
	if err != nil {
		return upstream("stage %s/%s: %w", project, file, err)
	}
	defer func() {
		if relErr := staged.Release(); relErr != nil {
			m.logger.Error("import: staging release failed",
				slog.String("path", staged.Path()), slog.String("error", relErr.Error()))
		}
	}()

	if err := m.store.ImportDocument(ctx, staged.Path(), project, m.user); err != nil {
		return upstream("cannot import document into project %q with filename %q: %w", project, file, err)
	}

	docs, err := m.ListDocuments(ctx, project)
	if err != nil {
		return err
	}
	if !slices.Contains(docs, file) {
		return m.inconsistent("import_document", "document %q not listed in project %q after import", file, project)
	}
	return nil
}
