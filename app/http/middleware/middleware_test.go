// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krkn-chaos/krkn-telemetry/app/http/middleware"
)

func TestUnit_Middleware_PromHTTPMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	wrapped := middleware.PromHTTPMiddleware(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telemetry", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	// a second wrap must not panic on duplicate registration
	assert.NotPanics(t, func() { middleware.PromHTTPMiddleware(handler) })

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "telemetry_gateway_http_requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func captureLogs(t *testing.T, level zerolog.Level) (*bytes.Buffer, zerolog.Logger) {
	t.Helper()
	var buf bytes.Buffer
	return &buf, zerolog.New(&buf).Level(level)
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func TestUnit_Middleware_LoggingMiddlewareWrapper(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{name: "regular request", path: "/navigate/g1", status: http.StatusOK, wantLevel: "debug"},
		{name: "health check", path: "/healthz", status: http.StatusOK, wantLevel: "trace"},
		{name: "server error", path: "/telemetry", status: http.StatusInternalServerError, wantLevel: "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, logger := captureLogs(t, zerolog.TraceLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			})
			wrapped := middleware.LoggingMiddlewareWrapper(handler)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req = req.WithContext(logger.WithContext(req.Context()))
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			line := lastLine(t, buf)
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, tt.path, line["route"])
			assert.EqualValues(t, tt.status, line["statusCode"])
			assert.EqualValues(t, 4, line["bytes"])
		})
	}
}

func TestUnit_Middleware_RequestLogger(t *testing.T) {
	buf, logger := captureLogs(t, zerolog.InfoLevel)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Info().Msg("handled")
	})
	wrapped := middleware.RequestLogger(handler)

	req := httptest.NewRequest(http.MethodPost, "/telemetry?request_id=r1", nil)
	req = req.WithContext(logger.WithContext(req.Context()))
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	line := lastLine(t, buf)
	assert.Equal(t, "handled", line["message"])
	assert.Equal(t, "r1", line["request_id"])
	assert.NotEmpty(t, line["reqId"])
}
