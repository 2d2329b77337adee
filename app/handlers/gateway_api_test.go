// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/krkn-chaos/krkn-telemetry/app/handlers"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

func TestUnit_Handlers_GatewayAPI_ServesIngestAndRetrieval(t *testing.T) {
	store := newStore(t, "telemetry-bucket")
	gw := handlers.NewGatewayAPI("/", newUploads(store, nil), newBrowser(store, nil), 1<<20)
	router := gw.Routes()

	store.EXPECT().
		Put(gomock.Any(), "req-1/telemetry.json", gomock.Any(), gomock.Any(), "application/json").
		DoAndReturn(func(_ context.Context, key string, body io.Reader, _ int64, _ string) (types.ObjectInfo, error) {
			data, err := io.ReadAll(body)
			require.NoError(t, err)
			return types.ObjectInfo{Key: key, Size: int64(len(data))}, nil
		})

	req := createRequest(http.MethodPost, "/telemetry?request_id=req-1", bytes.NewBufferString(validTelemetry))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(router, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "req-1/telemetry.json")

	signed, err := url.Parse("https://s3.example.com/telemetry-bucket/g1/telemetry.json?X-Amz-Signature=abc")
	require.NoError(t, err)
	store.EXPECT().Stat(gomock.Any(), "g1/telemetry.json").Return(types.ObjectInfo{Key: "g1/telemetry.json"}, nil)
	store.EXPECT().PresignGet(gomock.Any(), "g1/telemetry.json", testLinkTTL).Return(signed, nil)

	rec = serve(router, createRequest(http.MethodGet, "/download-url/g1/telemetry.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), signed.String())
}

func TestUnit_Handlers_GatewayAPI_UnknownRoute(t *testing.T) {
	store := newStore(t, "telemetry-bucket")
	gw := handlers.NewGatewayAPI("/", newUploads(store, nil), newBrowser(store, nil), 1<<20)

	rec := serve(gw.Routes(), createRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
