// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package client is a Go client for the telemetry gateway. Requests are
// retried on connection errors and 5xx responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

const (
	DefaultTimeout      = 5 * time.Minute
	DefaultMaxRetries   = 5
	DefaultRetryWaitMin = time.Second
	DefaultRetryWaitMax = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 4096
)

// ErrRequestFailed is returned when no response was received after all
// retries.
var ErrRequestFailed = errors.New("gateway request failed")

// StatusError is a non-2xx reply from the gateway.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway replied %d: %s", e.Code, e.Body)
}

// Config configures a Client.
type Config struct {
	// Endpoint is the gateway base URL, e.g. http://localhost:8080.
	Endpoint     string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Target selects where an upload is stored.
type Target struct {
	RequestID string
	Category  string
	Run       string
}

func (t Target) query() url.Values {
	q := url.Values{}
	q.Set("request_id", t.RequestID)
	if t.Category != "" {
		q.Set("telemetry_category", t.Category)
	}
	if t.Run != "" {
		q.Set("telemetry_run", t.Run)
	}
	return q
}

// Client talks to one gateway.
type Client struct {
	base *url.URL
	http *retryablehttp.Client
}

// NewClient creates a client. Zero config values take the defaults.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid gateway endpoint %q: scheme and host are required", cfg.Endpoint)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = DefaultRetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = DefaultRetryWaitMax
	}

	httpClient := retryablehttp.NewClient()
	httpClient.Logger = newZerologAdapter(log.Ctx(ctx))
	httpClient.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		// presigned redirects from /fetch are returned, not followed
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	httpClient.RetryMax = cfg.MaxRetries
	httpClient.RetryWaitMin = cfg.RetryWaitMin
	httpClient.RetryWaitMax = cfg.RetryWaitMax
	httpClient.ErrorHandler = func(resp *http.Response, err error, numTries int) (*http.Response, error) {
		if resp == nil {
			return nil, errors.Join(fmt.Errorf("giving up after %d attempt(s): %w", numTries, err), ErrRequestFailed)
		}
		// hand the last response back so the caller sees the gateway's reason
		return resp, nil
	}

	return &Client{base: base, http: httpClient}, nil
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := *c.base
	u.Path = path.Join(u.Path, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends the request and returns the body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, header http.Header) ([]byte, error) {
	var reqBody interface{}
	if body != nil {
		reqBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create the request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Ctx(ctx).Debug().Int("statusCode", resp.StatusCode).Str("url", req.URL.Redacted()).Msg("gateway request failed")
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the response: %w", err)
	}
	return data, nil
}

// UploadTelemetry posts a telemetry document and returns the gateway's
// confirmation, e.g. "record r1/telemetry.json created".
func (c *Client) UploadTelemetry(ctx context.Context, t Target, document []byte) (string, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	data, err := c.do(ctx, http.MethodPost, c.endpoint("/telemetry", t.query()), document, header)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PresignedURL asks for a URL the named file can be PUT to.
func (c *Client) PresignedURL(ctx context.Context, t Target, filename string) (string, error) {
	q := t.query()
	q.Set("remote_filename", filename)
	data, err := c.do(ctx, http.MethodGet, c.endpoint("/presigned-url", q), nil, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// UploadFile uploads data straight to object storage through a presigned
// URL and returns that URL.
func (c *Client) UploadFile(ctx context.Context, t Target, filename string, data []byte) (string, error) {
	link, err := c.PresignedURL(ctx, t, filename)
	if err != nil {
		return "", fmt.Errorf("failed to get an upload link: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPut, link, data, nil); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	return link, nil
}

// PushFile proxies data through the gateway, compressed with encoding.
// An empty filename lets the gateway generate one.
func (c *Client) PushFile(ctx context.Context, t Target, filename string, data []byte, encoding string) (string, error) {
	body, err := Compress(data, encoding)
	if err != nil {
		return "", err
	}
	q := t.query()
	if filename != "" {
		q.Set("remote_filename", filename)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")
	if encoding != "" {
		header.Set("Content-Encoding", encoding)
	}
	reply, err := c.do(ctx, http.MethodPost, c.endpoint("/prometheus", q), body, header)
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

// DownloadURL returns a download link for group/run/filename. Empty group
// or run are omitted.
func (c *Client) DownloadURL(ctx context.Context, group, run, filename string) (string, error) {
	segs := []string{"/download-url"}
	for _, s := range []string{group, run, filename} {
		if s != "" {
			segs = append(segs, s)
		}
	}
	data, err := c.do(ctx, http.MethodGet, c.endpoint(strings.Join(segs, "/"), nil), nil, nil)
	if err != nil {
		return "", err
	}
	var reply struct {
		DownloadLink string `json:"download_link"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("invalid download-url reply: %w", err)
	}
	return reply.DownloadLink, nil
}

// Navigate lists one level of the hierarchy.
func (c *Client) Navigate(ctx context.Context, group, run string) ([]types.ObjectRef, error) {
	segs := []string{"/navigate"}
	for _, s := range []string{group, run} {
		if s != "" {
			segs = append(segs, s)
		}
	}
	data, err := c.do(ctx, http.MethodGet, c.endpoint(strings.Join(segs, "/"), nil), nil, nil)
	if err != nil {
		return nil, err
	}
	var refs []types.ObjectRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("invalid navigate reply: %w", err)
	}
	return refs, nil
}

// History returns the upload events the gateway recorded for a request id.
func (c *Client) History(ctx context.Context, requestID string) ([]types.UploadEvent, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint("/ledger/"+requestID, nil), nil, nil)
	if err != nil {
		return nil, err
	}
	var events []types.UploadEvent
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&events); err != nil {
		return nil, fmt.Errorf("invalid ledger reply: %w", err)
	}
	return events, nil
}
