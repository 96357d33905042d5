package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New("shop", prometheus.NewRegistry())
	m.Outcomes.WithLabelValues("committed").Inc()

	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("committed")); got != 1 {
		t.Fatalf("expected 1 committed outcome, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "shop_checkout_payment_confirmations_total") {
		t.Fatalf("metric not exposed:\n%s", rec.Body.String())
	}
}
