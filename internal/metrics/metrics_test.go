package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLifecycleCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycle(reg)

	m.Converts.WithLabelValues("png", OutcomeSuccess).Inc()
	m.Converts.WithLabelValues("png", OutcomeSuccess).Inc()
	m.CleanupFailures.Inc()

	if got := testutil.ToFloat64(m.Converts.WithLabelValues("png", OutcomeSuccess)); got != 2 {
		t.Errorf("converts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CleanupFailures); got != 1 {
		t.Errorf("cleanup failures = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycle(reg)
	m.Imports.WithLabelValues(OutcomeFailure).Inc()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `rstweb_documents_imports_total{outcome="failure"} 1`) {
		t.Errorf("imports metric missing from output:\n%s", body)
	}
}
