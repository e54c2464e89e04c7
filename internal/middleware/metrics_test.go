package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// recordingCollector はRecordHTTPStatusの呼び出しを記録するモック。
type recordingCollector struct {
	mu       sync.Mutex
	statuses []int
}

func (c *recordingCollector) RecordMessagePosted()        {}
func (c *recordingCollector) RecordSnapshotBroadcast(int) {}
func (c *recordingCollector) RecordWSConnect()            {}
func (c *recordingCollector) RecordWSDisconnect()         {}
func (c *recordingCollector) RecordAuthFailure(string)    {}
func (c *recordingCollector) RecordHTTPStatus(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, code)
}

func TestMetricsMiddleware_RecordsStatusCode(t *testing.T) {
	collector := &recordingCollector{}
	mw := NewMetricsMiddleware(collector)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusNotFound {
		t.Errorf("recorded statuses = %v, want [404]", collector.statuses)
	}
}

func TestMetricsMiddleware_DefaultsTo200WhenHandlerOnlyWrites(t *testing.T) {
	collector := &recordingCollector{}
	mw := NewMetricsMiddleware(collector)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusOK {
		t.Errorf("recorded statuses = %v, want [200]", collector.statuses)
	}
}
