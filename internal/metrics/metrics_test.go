package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeCacheStater struct{ hits, misses int64 }

func (f fakeCacheStater) Stats() (hits, misses int64) { return f.hits, f.misses }

func TestHTTPHandlerExposesCacheStats(t *testing.T) {
	t.Parallel()

	m := New(fakeCacheStater{hits: 7, misses: 3})
	m.ConnectionsTotal.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "vtsourced_cache_hits_total 7") {
		t.Errorf("body missing cache hits metric: %s", body)
	}
	if !strings.Contains(body, "vtsourced_cache_misses_total 3") {
		t.Errorf("body missing cache misses metric: %s", body)
	}
	if !strings.Contains(body, "vtsourced_connections_total 1") {
		t.Errorf("body missing connections metric: %s", body)
	}
}
