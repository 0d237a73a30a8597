package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/amqpwire/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newTestRouter(logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger))
	r.Use(RequestMetricsMiddleware("tap-mw"))
	r.GET("/sessions/:id", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})
	return r
}

func TestRequestLoggerCorrelatesSession(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	r := newTestRouter(zerolog.New(&buf).Level(zerolog.DebugLevel))

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc-123", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "req-7" {
		t.Fatalf("request id header=%q", got)
	}
	if rec.Body.String() != "req-7" {
		t.Fatalf("handler saw request id %q", rec.Body.String())
	}
	line := buf.String()
	for _, want := range []string{`"session_id":"abc-123"`, `"request_id":"req-7"`, `"route":"/sessions/:id"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %s: %s", want, line)
		}
	}
}

func TestRequestLoggerGeneratesID(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	r := newTestRouter(zerolog.New(&buf).Level(zerolog.DebugLevel))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
	if strings.Contains(buf.String(), "session_id") {
		t.Fatalf("unexpected session_id: %s", buf.String())
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("tap-mw", "GET", "unmatched", "404")); got < 1 {
		t.Fatalf("unmatched request not counted: %v", got)
	}
}
