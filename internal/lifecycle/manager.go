// Package lifecycle orchestrates project and document operations on top of the
// document store and the renderer, including the transient convert workflow.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jtacoma/uritemplates"

	"github.com/arne-cl/rstWeb/internal/apperr"
	"github.com/arne-cl/rstWeb/internal/docstore"
	"github.com/arne-cl/rstWeb/internal/metrics"
	"github.com/arne-cl/rstWeb/internal/render"
	"github.com/arne-cl/rstWeb/internal/staging"
)

// Defaults.
const (
	DefaultUser           = "local"
	DefaultTempProject    = "_temp_convert"
	DefaultEditorTemplate = "/structure{?current_doc,current_project}"
)

// Event kinds emitted through the notifier.
const (
	EventProjectCreated  = "project.created"
	EventProjectDeleted  = "project.deleted"
	EventDocumentAdded   = "document.added"
	EventDocumentUpdated = "document.updated"
	EventDocumentDeleted = "document.deleted"
)

// Event describes a committed change to a project or document.
type Event struct {
	Kind    string `json:"kind"`
	Project string `json:"project"`
	File    string `json:"file,omitempty"`
}

// Manager is the project/document lifecycle manager. It holds no state of its
// own besides configuration; every operation goes to the store.
type Manager struct {
	store    docstore.Store
	renderer render.Renderer
	staging  *staging.Area

	user           string
	tempProject    string
	editorTemplate string
	editor         *uritemplates.UriTemplate
	notify         func(Event)
	metrics        *metrics.Lifecycle
	logger         *slog.Logger
	newID          func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithUser sets the implicit identity owning every document.
func WithUser(user string) Option {
	return func(m *Manager) { m.user = user }
}

// WithTempProject sets the reserved prefix of convert scratch projects.
func WithTempProject(name string) Option {
	return func(m *Manager) { m.tempProject = name }
}

// WithEditorTemplate sets the RFC 6570 template of the editor redirect.
// It is expanded with current_doc and current_project.
func WithEditorTemplate(tmpl string) Option {
	return func(m *Manager) { m.editorTemplate = tmpl }
}

// WithNotifier registers a callback invoked after each committed change.
func WithNotifier(fn func(Event)) Option {
	return func(m *Manager) { m.notify = fn }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(lm *metrics.Lifecycle) Option {
	return func(m *Manager) { m.metrics = lm }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager.
func New(store docstore.Store, renderer render.Renderer, area *staging.Area, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:          store,
		renderer:       renderer,
		staging:        area,
		user:           DefaultUser,
		tempProject:    DefaultTempProject,
		editorTemplate: DefaultEditorTemplate,
		logger:         slog.Default(),
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil || m.renderer == nil || m.staging == nil {
		return nil, fmt.Errorf("lifecycle: store, renderer and staging area are required")
	}
	editor, err := uritemplates.Parse(m.editorTemplate)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: parse editor template: %w", err)
	}
	m.editor = editor
	return m, nil
}

// User returns the implicit identity used for every document.
func (m *Manager) User() string {
	return m.user
}

// IsScratch reports whether project is a convert scratch project.
func (m *Manager) IsScratch(project string) bool {
	return project == m.tempProject || strings.HasPrefix(project, m.tempProject+"-")
}

// checkReserved rejects scratch project names on the user-facing paths.
func (m *Manager) checkReserved(project string) error {
	if m.IsScratch(project) {
		return fmt.Errorf("%w: project %q is reserved for conversions", apperr.ErrInvalidName, project)
	}
	return nil
}

// withoutScratch drops scratch projects of conversions in flight.
func (m *Manager) withoutScratch(projects []string) []string {
	return slices.DeleteFunc(projects, m.IsScratch)
}

func (m *Manager) emit(kind, project, file string) {
	if m.notify == nil {
		return
	}
	m.notify(Event{Kind: kind, Project: project, File: file})
}

// inconsistent builds a post-condition failure and counts it.
func (m *Manager) inconsistent(op, format string, args ...any) error {
	if m.metrics != nil {
		m.metrics.ConsistencyFails.WithLabelValues(op).Inc()
	}
	return fmt.Errorf("%w: "+format, append([]any{apperr.ErrInconsistent}, args...)...)
}

// upstream wraps a store failure with the operation and identifiers involved.
func upstream(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperr.ErrUpstream}, args...)...)
}

func (m *Manager) projectExists(ctx context.Context, name string) (bool, error) {
	projects, err := m.store.ListProjects(ctx)
	if err != nil {
		return false, upstream("list projects: %w", err)
	}
	return slices.Contains(projects, name), nil
}

func (m *Manager) documentExists(ctx context.Context, project, file string) (bool, []string, error) {
	docs, err := m.ListDocuments(ctx, project)
	if err != nil {
		return false, nil, err
	}
	return slices.Contains(docs, file), docs, nil
}
