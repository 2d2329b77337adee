// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package minio implements types.ObjectStore on top of an S3-compatible
// service using the MinIO client.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

var (
	metricsOnce sync.Once

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: types.StorageMetric("operations_total"),
			Help: "Object storage operations, by operation and status",
		},
		[]string{"operation", "status"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    types.StorageMetric("operation_duration_seconds"),
			Help:    "Duration of object storage operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func registerMetrics() {
	metricsOnce.Do(func() {
		for _, c := range []prometheus.Collector{operationsTotal, operationDuration} {
			if err := prometheus.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					log.Warn().Err(err).Msg("failed to register storage metrics")
				}
			}
		}
	})
}

// Client wraps the MinIO client for gateway storage operations.
type Client struct {
	client     *minio.Client
	bucketName string
	bufferSize int64
	spoolDir   string
}

// DefaultBufferSize is the in-memory ceiling for bodies of unknown length.
const DefaultBufferSize = 16 << 20

// Config holds MinIO client configuration.
type Config struct {
	// Endpoint is host[:port] without a scheme. Empty selects AWS S3 for the
	// configured region.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	BucketName      string
	UseSSL          bool
	// PathStyle forces path-style bucket addressing, as most self-hosted
	// services require.
	PathStyle bool
	Transport http.RoundTripper
	// BufferSize bounds the memory held for a body of unknown length.
	// Longer bodies are spooled to a temporary file in SpoolDir.
	BufferSize int64
	SpoolDir   string
}

// NewClient creates a new MinIO client. Without static keys credentials are
// taken from the environment, the shared AWS credentials file or the
// instance role, in that order.
func NewClient(cfg Config) (*Client, error) {
	registerMetrics()

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
		if cfg.Region != "" {
			endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		}
	}

	var creds *credentials.Credentials
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}

	options := &minio.Options{
		Creds:     creds,
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Client{
		client:     client,
		bucketName: cfg.BucketName,
		bufferSize: bufferSize,
		spoolDir:   cfg.SpoolDir,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucketName
}

// Put uploads body to key. A negative size reads the body until EOF first,
// so the object is always sent with a known length: minio-go sizes its
// part buffer for the 5 TiB maximum when the length is unknown.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (types.ObjectInfo, error) {
	if size < 0 {
		sized, n, cleanup, err := c.spool(body)
		if err != nil {
			return types.ObjectInfo{}, fmt.Errorf("failed to buffer %s: %w", key, err)
		}
		defer cleanup()
		body, size = sized, n
	}

	start := time.Now()
	info, err := c.client.PutObject(ctx, c.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	observe("put", start, err)
	if err != nil {
		return types.ObjectInfo{}, fmt.Errorf("failed to put %s: %w", key, translateError(err))
	}
	return types.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
		ContentType:  contentType,
	}, nil
}

// spool reads body into memory up to the buffer size, then into a temporary
// file, and returns a reader over the data with its length.
func (c *Client) spool(body io.Reader) (io.Reader, int64, func(), error) {
	noop := func() {}

	head, err := io.ReadAll(io.LimitReader(body, c.bufferSize+1))
	if err != nil {
		return nil, 0, noop, err
	}
	if int64(len(head)) <= c.bufferSize {
		return bytes.NewReader(head), int64(len(head)), noop, nil
	}

	f, err := os.CreateTemp(c.spoolDir, "upload-*")
	if err != nil {
		return nil, 0, noop, err
	}
	cleanup := func() {
		_ = f.Close()
		if rmErr := os.Remove(f.Name()); rmErr != nil {
			log.Warn().Err(rmErr).Str("file", f.Name()).Msg("failed to remove spool file")
		}
	}

	n, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		cleanup()
		return nil, 0, noop, err
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, 0, noop, err
	}
	return f, n, cleanup, nil
}

// Stat returns the metadata of key, or types.ErrNotFound.
func (c *Client) Stat(ctx context.Context, key string) (types.ObjectInfo, error) {
	start := time.Now()
	info, err := c.client.StatObject(ctx, c.bucketName, key, minio.StatObjectOptions{})
	observe("stat", start, err)
	if err != nil {
		return types.ObjectInfo{}, fmt.Errorf("failed to stat %s: %w", key, translateError(err))
	}
	return toObjectInfo(info), nil
}

// List returns the entries under prefix. Non-recursive listings report
// common prefixes as keys ending with the delimiter. When opts.Limit is set
// the listing stops after that many entries and reports a cursor for the
// next page.
func (c *Client) List(ctx context.Context, prefix string, opts types.ListOptions) (*types.Listing, error) {
	start := time.Now()

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &types.Listing{
		Prefix:  prefix,
		Entries: []types.ObjectInfo{},
	}
	for object := range c.client.ListObjects(listCtx, c.bucketName, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  opts.Recursive,
		StartAfter: startAfter(opts.StartAfter),
	}) {
		if object.Err != nil {
			observe("list", start, object.Err)
			return nil, fmt.Errorf("failed to list %q: %w", prefix, translateError(object.Err))
		}
		if object.Key == prefix {
			continue
		}
		if opts.Limit > 0 && len(out.Entries) == opts.Limit {
			out.Truncated = true
			break
		}
		out.Entries = append(out.Entries, toObjectInfo(object))
	}
	if n := len(out.Entries); n > 0 {
		out.NextCursor = out.Entries[n-1].Key
	}
	observe("list", start, nil)
	return out, nil
}

// PresignPut returns a URL allowing a single upload to key.
func (c *Client) PresignPut(ctx context.Context, key string, ttl time.Duration) (*url.URL, error) {
	start := time.Now()
	u, err := c.client.PresignedPutObject(ctx, c.bucketName, key, ttl)
	observe("presign_put", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL for key %s: %w", key, err)
	}
	return u, nil
}

// PresignGet returns a URL allowing downloads of key.
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (*url.URL, error) {
	start := time.Now()
	u, err := c.client.PresignedGetObject(ctx, c.bucketName, key, ttl, url.Values{})
	observe("presign_get", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to generate download URL for key %s: %w", key, err)
	}
	return u, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context, region string) error {
	exists, err := c.client.BucketExists(ctx, c.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = c.client.MakeBucket(ctx, c.bucketName, minio.MakeBucketOptions{Region: region})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", c.bucketName, err)
		}
		log.Ctx(ctx).Info().Str("bucket", c.bucketName).Msg("bucket created")
	}

	return nil
}

// Ping checks that the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	exists, err := c.client.BucketExists(ctx, c.bucketName)
	observe("ping", start, err)
	if err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", c.bucketName, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s: %w", c.bucketName, types.ErrNotFound)
	}
	return nil
}

// startAfter converts a page cursor into the StartAfter marker. A cursor
// naming a common prefix skips everything inside that folder.
func startAfter(cursor string) string {
	if strings.HasSuffix(cursor, types.KeyDelimiter) {
		return cursor + string(utf8.MaxRune)
	}
	return cursor
}

func toObjectInfo(object minio.ObjectInfo) types.ObjectInfo {
	return types.ObjectInfo{
		Key:          object.Key,
		Size:         object.Size,
		LastModified: object.LastModified,
		ETag:         object.ETag,
		ContentType:  object.ContentType,
		IsPrefix:     strings.HasSuffix(object.Key, types.KeyDelimiter) && object.LastModified.IsZero(),
	}
}

func translateError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusNotFound,
		resp.Code == "NoSuchKey",
		resp.Code == "NoSuchBucket":
		return fmt.Errorf("%w: %w", types.ErrNotFound, err)
	}
	return err
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(operation, status).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
