// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package upload implements the write side of the gateway: validated
// telemetry documents, proxied raw files and presigned upload URLs.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/keypath"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/listing"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/telemetry"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

const (
	jsonContentType   = "application/json"
	binaryContentType = "application/octet-stream"
)

var (
	metricsOnce sync.Once

	documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: types.GatewayMetric("documents_total"),
			Help: "Telemetry documents received, by outcome",
		},
		[]string{"outcome"},
	)
	uploadedBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: types.GatewayMetric("uploaded_bytes_total"),
			Help: "Bytes written to the object store by the gateway, by upload kind",
		},
		[]string{"kind"},
	)
	presignedUploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: types.GatewayMetric("presigned_uploads_total"),
			Help: "Presigned upload URLs issued",
		},
	)
)

func registerMetrics() {
	metricsOnce.Do(func() {
		for _, c := range []prometheus.Collector{documentsTotal, uploadedBytesTotal, presignedUploadsTotal} {
			if err := prometheus.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					log.Warn().Err(err).Msg("failed to register upload metrics")
				}
			}
		}
	})
}

// Config holds the upload settings.
type Config struct {
	// LinkExpiration is the lifetime of presigned URLs.
	LinkExpiration time.Duration
	// MaxBodyBytes caps a decoded raw upload. Zero disables the cap.
	MaxBodyBytes int64
}

// Service handles uploads and records them in the ledger.
type Service struct {
	store     types.ObjectStore
	ledger    types.Ledger
	validator *telemetry.Validator
	cfg       Config
	clock     func() time.Time
}

// NewService creates an upload service. ledger may be nil.
func NewService(store types.ObjectStore, ledger types.Ledger, validator *telemetry.Validator, cfg Config) *Service {
	registerMetrics()
	if validator == nil {
		validator = &telemetry.Validator{}
	}
	return &Service{
		store:     store,
		ledger:    ledger,
		validator: validator,
		cfg:       cfg,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Receipt describes a stored object.
type Receipt struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	Scenarios int       `json:"scenarios,omitempty"`
	StoredAt  time.Time `json:"stored_at"`
}

// StoreTelemetry validates a telemetry document and writes it to
// <prefix>/telemetry.json.
func (s *Service) StoreTelemetry(ctx context.Context, c keypath.Components, body []byte) (*Receipt, error) {
	if err := s.checkBucket(); err != nil {
		return nil, err
	}

	doc, err := telemetry.Parse(body)
	if err != nil {
		documentsTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}
	if result := s.validator.Validate(doc); !result.Valid() {
		documentsTotal.WithLabelValues("rejected").Inc()
		log.Ctx(ctx).Debug().
			Str("request_id", c.RequestID).
			Str("field", result.Field()).
			Msg("telemetry document rejected")
		return nil, result.Err()
	}

	encoded, err := doc.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode telemetry document: %w", err)
	}

	key := c.WithFilename(keypath.TelemetryFilename).Key()
	info, err := s.store.Put(ctx, key, bytes.NewReader(encoded), int64(len(encoded)), jsonContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", key, err)
	}
	documentsTotal.WithLabelValues("accepted").Inc()
	uploadedBytesTotal.WithLabelValues(string(types.UploadTelemetry)).Add(float64(len(encoded)))

	size := info.Size
	if size <= 0 {
		size = int64(len(encoded))
	}
	s.record(ctx, types.UploadTelemetry, key, c, size)

	return &Receipt{Key: key, Size: size, Scenarios: len(doc.Scenarios), StoredAt: s.clock()}, nil
}

// DefaultFilename names a raw upload that arrived without a filename.
func DefaultFilename() string {
	return listing.PrometheusFilePrefix + uuid.NewString()
}

// StoreFile streams a raw upload, decoded according to encoding, to the key
// derived from c. An empty filename gets a generated one.
func (s *Service) StoreFile(ctx context.Context, c keypath.Components, body io.Reader, encoding string) (*Receipt, error) {
	if err := s.checkBucket(); err != nil {
		return nil, err
	}
	if c.Filename == "" {
		c.Filename = DefaultFilename()
	}

	reader, err := Decode(body, encoding, s.cfg.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var (
		src     io.Reader = reader
		limiter *limitReader
	)
	if s.cfg.MaxBodyBytes > 0 {
		limiter = newLimitReader(reader, s.cfg.MaxBodyBytes)
		src = limiter
	}

	key := c.Key()
	info, err := s.store.Put(ctx, key, src, -1, binaryContentType)
	if limiter != nil && limiter.exceeded {
		return nil, fmt.Errorf("%w: limit is %d bytes", types.ErrPayloadTooLarge, s.cfg.MaxBodyBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", key, err)
	}
	uploadedBytesTotal.WithLabelValues(string(types.UploadRaw)).Add(float64(info.Size))
	s.record(ctx, types.UploadRaw, key, c, info.Size)

	log.Ctx(ctx).Debug().Str("key", key).Int64("size", info.Size).Str("encoding", encoding).Msg("raw file stored")
	return &Receipt{Key: key, Size: info.Size, StoredAt: s.clock()}, nil
}

// PresignUpload issues a URL the client can PUT the named file to.
func (s *Service) PresignUpload(ctx context.Context, c keypath.Components) (*types.PresignedLink, error) {
	if err := s.checkBucket(); err != nil {
		return nil, err
	}
	key := c.Key()
	now := s.clock()
	u, err := s.store.PresignPut(ctx, key, s.cfg.LinkExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL for %s: %w", key, err)
	}
	presignedUploadsTotal.Inc()
	s.record(ctx, types.UploadPresigned, key, c, 0)

	return &types.PresignedLink{URL: u.String(), ExpiresAt: now.Add(s.cfg.LinkExpiration)}, nil
}

func (s *Service) checkBucket() error {
	if s.store == nil || s.store.Bucket() == "" {
		return fmt.Errorf("%w: BUCKET_NAME env variable not set", types.ErrMissingConfiguration)
	}
	return nil
}

// record writes a ledger entry. Ledger failures never fail the upload.
func (s *Service) record(ctx context.Context, kind types.UploadKind, key string, c keypath.Components, size int64) {
	if s.ledger == nil {
		return
	}
	event := types.NewUploadEvent(kind, key)
	event.RequestID = c.RequestID
	event.Category = c.Category
	event.Run = c.Run
	event.Size = size
	event.CreatedAt = s.clock()
	if err := s.ledger.Record(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to record upload event")
	}
}
