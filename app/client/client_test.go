// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package client_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krkn-chaos/krkn-telemetry/app/client"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/upload"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

func newClient(t *testing.T, handler http.Handler) *client.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := client.NewClient(context.Background(), client.Config{
		Endpoint:     srv.URL,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestUnit_Client_NewClient_InvalidEndpoint(t *testing.T) {
	_, err := client.NewClient(context.Background(), client.Config{Endpoint: "localhost"})
	require.Error(t, err)
}

func TestUnit_Client_UploadTelemetry(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/telemetry", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "r1", r.URL.Query().Get("request_id"))
		assert.Equal(t, "chaos", r.URL.Query().Get("telemetry_category"))
		assert.Equal(t, "run1", r.URL.Query().Get("telemetry_run"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"scenarios":[]}`, string(body))
		_, _ = w.Write([]byte("record chaos/run1/r1/telemetry.json created"))
	}))

	reply, err := c.UploadTelemetry(context.Background(),
		client.Target{RequestID: "r1", Category: "chaos", Run: "run1"}, []byte(`{"scenarios":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "record chaos/run1/r1/telemetry.json created", reply)
}

func TestUnit_Client_StatusError(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("[bad request]: engine is null or empty"))
	}))

	_, err := c.UploadTelemetry(context.Background(), client.Target{RequestID: "r1"}, []byte(`{}`))
	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, "[bad request]: engine is null or empty", statusErr.Body)
}

func TestUnit_Client_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("https://bucket.example/r1/a.tar?sig=1\n"))
	}))

	link, err := c.PresignedURL(context.Background(), client.Target{RequestID: "r1"}, "a.tar")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/r1/a.tar?sig=1", link)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUnit_Client_GivesUpWithLastResponse(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("BUCKET_NAME env variable not set"))
	}))

	_, err := c.PresignedURL(context.Background(), client.Target{RequestID: "r1"}, "a.tar")
	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "BUCKET_NAME env variable not set", statusErr.Body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUnit_Client_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c, err := client.NewClient(context.Background(), client.Config{
		Endpoint:     endpoint,
		MaxRetries:   -1,
		RetryWaitMin: time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.Navigate(context.Background(), "", "")
	assert.True(t, errors.Is(err, client.ErrRequestFailed), err)
}

func TestUnit_Client_UploadFile(t *testing.T) {
	var put atomic.Bool
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/presigned-url", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metrics.tar", r.URL.Query().Get("remote_filename"))
		_, _ = w.Write([]byte(base + "/bucket/r1/metrics.tar?X-Amz-Signature=abc"))
	})
	mux.HandleFunc("/bucket/r1/metrics.tar", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		put.Store(true)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	base = srv.URL

	c, err := client.NewClient(context.Background(), client.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	link, err := c.UploadFile(context.Background(), client.Target{RequestID: "r1"}, "metrics.tar", []byte("payload"))
	require.NoError(t, err)
	assert.Contains(t, link, "/bucket/r1/metrics.tar")
	assert.True(t, put.Load())
}

func TestUnit_Client_PushFile(t *testing.T) {
	payload := []byte("tsdb block contents")
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prometheus", r.URL.Path)
		assert.Equal(t, upload.EncodingZstd, r.Header.Get("Content-Encoding"))
		assert.False(t, r.URL.Query().Has("remote_filename"))

		decoded, err := upload.Decode(r.Body, r.Header.Get("Content-Encoding"), 0)
		require.NoError(t, err)
		defer decoded.Close()
		data, err := io.ReadAll(decoded)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
		_, _ = w.Write([]byte("file r1/prometheus-x uploaded"))
	}))

	reply, err := c.PushFile(context.Background(), client.Target{RequestID: "r1"}, "", payload, upload.EncodingZstd)
	require.NoError(t, err)
	assert.Equal(t, "file r1/prometheus-x uploaded", reply)
}

func TestUnit_Client_DownloadURL(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download-url/g1/run1/a.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"download_link":"https://bucket.example/g1/run1/a.json"}`))
	}))

	link, err := c.DownloadURL(context.Background(), "g1", "run1", "a.json")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/g1/run1/a.json", link)
}

func TestUnit_Client_NavigateAndHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/navigate/g1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"key":"g1/run1/","name":"run1","size":0,"type":"folder"}]`))
	})
	mux.HandleFunc("/ledger/r1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"5f1c6bb4-5a3c-4a5f-9d6e-0c4f0c4f0c4f","key":"r1/telemetry.json","request_id":"r1","kind":"telemetry","size":12,"created_at":"2025-03-14T09:26:53Z"}]`))
	})
	c := newClient(t, mux)

	refs, err := c.Navigate(context.Background(), "g1", "")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].IsFolder())
	assert.Equal(t, "run1", refs[0].Name)

	events, err := c.History(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.UploadTelemetry, events[0].Kind)
}

func TestUnit_Client_Compress(t *testing.T) {
	payload := []byte("repeated repeated repeated repeated")
	for _, enc := range []string{"", upload.EncodingIdentity, upload.EncodingSnappy, upload.EncodingBrotli, upload.EncodingGzip, upload.EncodingZstd} {
		t.Run("encoding "+enc, func(t *testing.T) {
			compressed, err := client.Compress(payload, enc)
			require.NoError(t, err)

			r, err := upload.Decode(bytes.NewReader(compressed), enc, 0)
			require.NoError(t, err)
			defer r.Close()
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, data)
		})
	}

	_, err := client.Compress(payload, "lz4")
	assert.Error(t, err)
}
