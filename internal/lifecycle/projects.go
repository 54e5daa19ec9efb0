package lifecycle

import (
	"context"
	"log/slog"
)

// ListProjects returns all known projects. Scratch projects of running
// conversions are not listed.
func (m *Manager) ListProjects(ctx context.Context) ([]string, error) {
	projects, err := m.store.ListProjects(ctx)
	if err != nil {
		return nil, upstream("list projects: %w", err)
	}
	return m.withoutScratch(projects), nil
}

// CreateProject creates name. Creating an existing project is a no-op.
func (m *Manager) CreateProject(ctx context.Context, name string) error {
	if err := validateProject(name); err != nil {
		return err
	}
	if err := m.checkReserved(name); err != nil {
		return err
	}
	existed, err := m.projectExists(ctx, name)
	if err != nil {
		return err
	}
	if err := m.store.CreateProject(ctx, name); err != nil {
		return upstream("create project %q: %w", name, err)
	}
	present, err := m.projectExists(ctx, name)
	if err != nil {
		return err
	}
	if !present {
		return m.inconsistent("create_project", "project %q was not created", name)
	}
	if !existed {
		m.emit(EventProjectCreated, name, "")
	}
	return nil
}

// DeleteProject removes name and its documents. Deleting a missing project is a no-op.
func (m *Manager) DeleteProject(ctx context.Context, name string) error {
	if err := m.checkReserved(name); err != nil {
		return err
	}
	existed, err := m.deleteProject(ctx, name)
	if err != nil {
		return err
	}
	if existed {
		m.emit(EventProjectDeleted, name, "")
	}
	return nil
}

// deleteProject removes name and checks it is gone. It reports whether the
// project existed beforehand.
func (m *Manager) deleteProject(ctx context.Context, name string) (bool, error) {
	existed, err := m.projectExists(ctx, name)
	if err != nil {
		return false, err
	}
	if err := m.store.DeleteProject(ctx, name); err != nil {
		return false, upstream("delete project %q: %w", name, err)
	}
	present, err := m.projectExists(ctx, name)
	if err != nil {
		return false, err
	}
	if present {
		return false, m.inconsistent("delete_project", "project %q is still present after deletion", name)
	}
	return existed, nil
}

// DeleteAllProjects deletes every listed project and reports the ones that
// remain. Scratch projects of running conversions are left to their owners.
func (m *Manager) DeleteAllProjects(ctx context.Context) error {
	projects, err := m.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, name := range projects {
		if err := m.store.DeleteProject(ctx, name); err != nil {
			m.logger.Warn("delete all projects: delete failed",
				slog.String("project", name), slog.String("error", err.Error()))
			continue
		}
		m.emit(EventProjectDeleted, name, "")
	}
	remaining, err := m.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return m.inconsistent("delete_all_projects", "projects still present after deletion: %v", remaining)
	}
	return nil
}
