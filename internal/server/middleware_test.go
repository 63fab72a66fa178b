package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/navrank/internal/common"
)

func TestLoggingMiddleware_4xxUsesInfoLevel(t *testing.T) {
	// At WARN level an Info() event is filtered out.
	var buf bytes.Buffer
	logger := common.NewLoggerWithOutput("warn", &buf)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/missing", nil))

	assert.NotContains(t, buf.String(), "HTTP request")
}

func TestLoggingMiddleware_5xxUsesErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := common.NewLoggerWithOutput("warn", &buf)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/broken", nil))

	assert.Contains(t, buf.String(), "HTTP request")
	assert.Contains(t, buf.String(), `"status":500`)
}

func TestLoggingMiddleware_2xxUsesTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := common.NewLoggerWithOutput("info", &buf)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.NotContains(t, buf.String(), "HTTP request")
}

func TestLoggingMiddleware_SlowRequestUsesWarnLevel(t *testing.T) {
	orig := slowRequest
	slowRequest = 0
	t.Cleanup(func() { slowRequest = orig })

	var buf bytes.Buffer
	logger := common.NewLoggerWithOutput("warn", &buf)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Run-ID", "run-42")
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/backtests", nil))

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"run_id":"run-42"`)
}

func TestCorrelationIDMiddleware_PropagatesToHandler(t *testing.T) {
	var seen string
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backtests", nil)
	req.Header.Set("X-Correlation-ID", "corr-7")
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "corr-7", seen)
	assert.Equal(t, "corr-7", rr.Header().Get("X-Correlation-ID"))
	assert.Empty(t, CorrelationID(context.Background()))
}

func TestCorrelationIDMiddleware(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc123", rr.Header().Get("X-Correlation-ID"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Len(t, rr.Header().Get("X-Correlation-ID"), 8)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/backtests", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rr.Header().Get("Access-Control-Expose-Headers"), "X-Run-ID"))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/funds", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Internal server error")
	assert.Contains(t, rr.Body.String(), `"internal"`)
}
