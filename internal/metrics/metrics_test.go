package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	AcceptedConnections.Add(0)
	LiveConnections.Set(3)
	RequestsByOutcome.WithLabelValues("get_request").Add(0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "webserver_reactor_live_connections") {
		t.Fatalf("expected live_connections metric in body, got:\n%s", body)
	}
	if !strings.Contains(body, "webserver_httpstate_requests_total") {
		t.Fatalf("expected requests_total metric in body, got:\n%s", body)
	}
}
