package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
)

func TestTraceMiddleware(t *testing.T) {
	t.Run("attaches trace ID to the request context", func(t *testing.T) {
		var traceID string
		handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = shared.GetTraceID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

		assert.NotEmpty(t, traceID)
	})

	t.Run("attaches a request-scoped logger carrying the trace ID", func(t *testing.T) {
		// Swap the default logger for one writing JSON to a buffer so
		// the derived request logger's attributes are observable.
		var buf bytes.Buffer
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
		defer slog.SetDefault(previous)

		var traceID string
		handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = shared.GetTraceID(r.Context())
			logger.FromContext(r.Context()).Info("inside handler")
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

		require.NotEmpty(t, traceID)

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.NotEmpty(t, lines)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
		assert.Equal(t, "inside handler", entry["msg"])
		assert.Equal(t, traceID, entry["trace_id"])
	})
}
