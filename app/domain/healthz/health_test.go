// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package healthz_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/healthz"
)

func serve(h healthz.HealthChecker) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.EndpointHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	return rec
}

func TestUnit_Healthz_Registry_AllHealthy(t *testing.T) {
	r := healthz.NewRegistry(time.Second)
	r.Register("bucket", func(context.Context) error { return nil })

	rec := serve(r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestUnit_Healthz_Registry_FirstFailureInNameOrder(t *testing.T) {
	r := healthz.NewRegistry(time.Second)
	r.Register("ledger", func(context.Context) error { return errors.New("locked") })
	r.Register("bucket", func(context.Context) error { return errors.New("unreachable") })

	rec := serve(r)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "bucket failed: unreachable", rec.Body.String())
}

func TestUnit_Healthz_Registry_CheckTimeout(t *testing.T) {
	r := healthz.NewRegistry(10 * time.Millisecond)
	r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	rec := serve(r)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "deadline exceeded")
}

func TestUnit_Healthz_GlobalRegistry(t *testing.T) {
	healthz.Register("global-test", func(context.Context) error { return nil })
	assert.Same(t, healthz.NewHealthz(), healthz.NewHealthz())
	assert.Equal(t, http.StatusOK, serve(healthz.NewHealthz()).Code)
}
