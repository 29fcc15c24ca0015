package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"chatapp/internal/observability"

	"github.com/go-chi/chi/v5"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics())
	r.Get("/api/rooms/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/rooms/{name}", "202")
	before := promtestutil.ToFloat64(counter)

	for _, name := range []string{"general", "random", "general"} {
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+name, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	assert.Equal(t, before+3, promtestutil.ToFloat64(counter))
}

func TestMetrics_UnmatchedPathsShareLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := promtestutil.ToFloat64(counter)

	for _, path := range []string{"/nope", "/also/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	}

	assert.Equal(t, before+2, promtestutil.ToFloat64(counter))
}

func TestMetrics_DefaultStatusCodeIsOK(t *testing.T) {
	handler := Metrics()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("response"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "response", w.Body.String())
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, _ = rw.Write([]byte("body"))
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, rw.statusCode)
}

func TestMetrics_ResponseWriterHijack(t *testing.T) {
	handler := Metrics()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hijacker, ok := w.(http.Hijacker)
		assert.True(t, ok, "response writer should implement http.Hijacker")
		if !ok {
			return
		}
		conn, _, err := hijacker.Hijack()
		assert.NoError(t, err)
		if conn != nil {
			conn.Close()
		}
	}))

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err == nil {
		resp.Body.Close()
	}
	// The hijacked connection is closed without a response
	assert.Error(t, err)
}

func TestMetrics_HijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}

	_, _, err := rw.Hijack()
	assert.Error(t, err)
}
