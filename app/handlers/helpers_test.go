// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package handlers_test implements unit tests for handlers
package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/browse"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/telemetry"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/upload"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
	"github.com/krkn-chaos/krkn-telemetry/app/types/mocks"
)

const testLinkTTL = time.Hour

func createRequest(method, path string, body io.Reader) *http.Request {
	req, err := http.NewRequestWithContext(context.Background(), method, "http://test"+path, body)
	if err != nil {
		panic(err)
	}
	return req
}

func newStore(t *testing.T, bucket string) *mocks.MockObjectStore {
	t.Helper()
	store := mocks.NewMockObjectStore(gomock.NewController(t))
	store.EXPECT().Bucket().Return(bucket).AnyTimes()
	return store
}

func newUploads(store types.ObjectStore, ledger types.Ledger) *upload.Service {
	return upload.NewService(store, ledger, telemetry.NewValidator(), upload.Config{
		LinkExpiration: testLinkTTL,
		MaxBodyBytes:   1 << 20,
	})
}

func newBrowser(store types.ObjectStore, ledger types.Ledger) *browse.Service {
	return browse.NewService(store, ledger, browse.Config{
		LinkExpiration: testLinkTTL,
		PageSize:       2,
		PresignWorkers: 2,
	})
}

func serve(router *chi.Mux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
