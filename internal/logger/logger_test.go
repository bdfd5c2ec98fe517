package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequests(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		level  string
	}{
		{name: "ok", status: http.StatusOK, body: "hello", level: "debug"},
		{name: "not found", status: http.StatusNotFound, body: "missing", level: "debug"},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", level: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := zerolog.New(&buf).Level(zerolog.DebugLevel)

			var fromCtx bool
			handler := Requests(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fromCtx = zerolog.Ctx(r.Context()).GetLevel() == zerolog.DebugLevel
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/build.js", nil))

			require.Equal(t, tt.status, rec.Code)
			require.True(t, fromCtx)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			require.Equal(t, tt.level, line["level"])
			require.Equal(t, "GET", line["method"])
			require.Equal(t, "/build.js", line["path"])
			require.EqualValues(t, tt.status, line["status"])
			require.EqualValues(t, len(tt.body), line["bytes"])
		})
	}
}

func TestRequests_implicitStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := Requests(zerolog.New(&buf).Level(zerolog.DebugLevel))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.EqualValues(t, http.StatusOK, line["status"])
}

func TestSetup(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, Setup(false).GetLevel())
	require.Equal(t, zerolog.DebugLevel, Setup(true).GetLevel())
}
