package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return nil
}

func TestRecordFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetch("schedule", nil)
	c.RecordFetch("schedule", nil)
	c.RecordFetch("schedule", errors.New("boom"))

	ok := findMetric(t, reg, "plancal_upstream_fetch_total", map[string]string{"kind": "schedule", "outcome": "ok"})
	if v := ok.GetCounter().GetValue(); v != 2 {
		t.Errorf("ok fetches = %v, want 2", v)
	}
	failed := findMetric(t, reg, "plancal_upstream_fetch_total", map[string]string{"kind": "schedule", "outcome": "error"})
	if v := failed.GetCounter().GetValue(); v != 1 {
		t.Errorf("failed fetches = %v, want 1", v)
	}
}

func TestRecordCacheAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheLookup("headers", true)
	c.RecordCacheLookup("headers", false)
	c.RecordHTTPStatus(503)
	c.RecordFetchLatency(150 * time.Millisecond)

	hit := findMetric(t, reg, "plancal_cache_lookup_total", map[string]string{"result": "hit"})
	if v := hit.GetCounter().GetValue(); v != 1 {
		t.Errorf("hits = %v", v)
	}
	status := findMetric(t, reg, "plancal_upstream_http_status_total", map[string]string{"status_code": "503"})
	if v := status.GetCounter().GetValue(); v != 1 {
		t.Errorf("503 count = %v", v)
	}
	lat := findMetric(t, reg, "plancal_upstream_fetch_latency_seconds", nil)
	if n := lat.GetHistogram().GetSampleCount(); n != 1 {
		t.Errorf("latency samples = %d", n)
	}
}

func TestRecordAggregate(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAggregate(12, nil)
	c.RecordAggregate(0, errors.New("upstream"))
	c.RecordSchemaFailure("schedule")

	items := findMetric(t, reg, "plancal_aggregate_items", nil)
	if s := items.GetHistogram().GetSampleSum(); s != 12 {
		t.Errorf("items sum = %v, want 12", s)
	}
	failed := findMetric(t, reg, "plancal_aggregate_total", map[string]string{"outcome": "error"})
	if v := failed.GetCounter().GetValue(); v != 1 {
		t.Errorf("failed aggregates = %v", v)
	}
	schema := findMetric(t, reg, "plancal_schema_fail_total", map[string]string{"kind": "schedule"})
	if v := schema.GetCounter().GetValue(); v != 1 {
		t.Errorf("schema failures = %v", v)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordFetch("groupings", nil)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "plancal_upstream_fetch_total") {
		t.Fatalf("metric missing from scrape output:\n%s", body)
	}
}
