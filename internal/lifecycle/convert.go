package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/arne-cl/rstWeb/internal/metrics"
	"github.com/arne-cl/rstWeb/internal/models"
)

// Convert renders uploaded content without leaving a stored artifact:
//
//	stage → import → render → cleanup
//
// Each call works in its own scratch project "<temp project>-<uuid>", so
// concurrent conversions never share state. Cleanup runs on every exit path,
// even when ctx is cancelled; a cleanup failure is returned only when nothing
// failed before it.
func (m *Manager) Convert(ctx context.Context, req ConvertRequest) (out *Content, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := m.newID()
	project := m.tempProject + "-" + id
	file := id + "." + string(models.InputRS3)
	start := time.Now()

	defer func() {
		if cleanupErr := m.cleanupScratch(context.WithoutCancel(ctx), project, file); cleanupErr != nil {
			m.logger.Error("convert: cleanup failed",
				slog.String("project", project),
				slog.String("file", file),
				slog.String("error", cleanupErr.Error()))
			if m.metrics != nil {
				m.metrics.CleanupFailures.Inc()
			}
			if err == nil {
				out, err = nil, cleanupErr
			}
		}
		m.observeConvert(req.OutputFormat, start, err)
	}()

	if err := m.importDocument(ctx, project, file, req.Content); err != nil {
		return nil, err
	}
	return m.getDocument(ctx, GetDocumentRequest{Project: project, File: file, Output: req.OutputFormat})
}

// cleanupScratch deletes the scratch document and then its project. Both
// steps are attempted; the first failure is returned.
func (m *Manager) cleanupScratch(ctx context.Context, project, file string) error {
	_, docErr := m.deleteDocument(ctx, project, file)
	_, projErr := m.deleteProject(ctx, project)
	if docErr != nil {
		return docErr
	}
	return projErr
}

func (m *Manager) observeConvert(format models.OutputFormat, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	m.metrics.Converts.WithLabelValues(string(format), outcome).Inc()
	m.metrics.ConvertDuration.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
}
