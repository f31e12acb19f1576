package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewIsolatedRegistries(t *testing.T) {
	// Each call owns its registry, so constructing twice must not panic.
	a := New()
	b := New()
	a.PredictionsTotal.WithLabelValues("approved").Inc()
	b.PredictionsTotal.WithLabelValues("rejected").Inc()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	if !strings.Contains(text, `loan_predictions_total{outcome="approved"} 1`) {
		t.Errorf("approved counter missing from scrape:\n%s", text)
	}
	if strings.Contains(text, `outcome="rejected"`) {
		t.Error("registry a leaked a metric recorded on registry b")
	}
}
