// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers_test

import (
	"net/http"
	"testing"

	"github.com/go-obvious/server/test"
	"github.com/stretchr/testify/assert"

	"github.com/krkn-chaos/krkn-telemetry/app/handlers"
)

func TestUnit_Handlers_PromMetrics(t *testing.T) {
	promMetrics := handlers.NewPromMetricsAPI("/")

	tests := []struct {
		name               string
		path               string
		expectedStatusCode int
	}{
		{
			name:               "QueryIndex",
			path:               "/",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "QueryErr",
			path:               "/does/not/exist",
			expectedStatusCode: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := createRequest(http.MethodGet, tc.path, nil)
			resp, err := test.InvokeService(promMetrics.Service, tc.path, *req)
			assert.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.expectedStatusCode, resp.StatusCode)
		})
	}
}
