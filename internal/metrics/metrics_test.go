package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordAppended("expense")
	r.AppendFailed()
	r.Settlement("capped")
	r.BalanceComputed(time.Millisecond)
	r.HTTPRequest("GET", "/", 200, time.Millisecond)
	r.RateLimited()
	r.RecordSynced("ok")
	if r.Registry() != nil {
		t.Fatal("nil recorder should have no registry")
	}
}

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.RecordAppended("expense")
	r.RecordAppended("expense")
	r.RecordAppended("settlement")
	r.Settlement("nothing_owed")
	r.AppendFailed()
	r.BalanceComputed(5 * time.Millisecond)
	r.RateLimited()
	r.RecordSynced("ok")
	r.RecordSynced("error")

	out := scrape(t, r)
	for _, want := range []string{
		`bilans_records_appended_total{kind="expense"} 2`,
		`bilans_records_appended_total{kind="settlement"} 1`,
		`bilans_settlements_total{outcome="nothing_owed"} 1`,
		`bilans_append_failures_total 1`,
		`bilans_balance_computations_total 1`,
		`bilans_balance_computation_seconds_count 1`,
		`bilans_http_rate_limited_total 1`,
		`bilans_records_synced_total{result="ok"} 1`,
		`bilans_records_synced_total{result="error"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.HTTPRequest("POST", "/expenses", http.StatusCreated, 20*time.Millisecond)

	want := `bilans_http_requests_total{method="POST",route="/expenses",status="201"} 1`
	if out := scrape(t, r); !strings.Contains(out, want) {
		t.Errorf("metrics output missing %q", want)
	}
	if !strings.Contains(scrape(t, r), "go_goroutines") {
		t.Error("expected go collector metrics")
	}
}

func TestNilRecorderHandler(t *testing.T) {
	var r *Recorder
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
