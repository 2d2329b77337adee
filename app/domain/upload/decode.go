// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// Content-Encoding values accepted on raw uploads.
const (
	EncodingIdentity = "identity"
	// EncodingSnappy is snappy block compression, as used by Prometheus
	// remote write.
	EncodingSnappy = "snappy"
	EncodingBrotli = "br"
	EncodingGzip   = "gzip"
	EncodingZstd   = "zstd"
)

// Decode wraps body with the decoder for the given Content-Encoding.
// Unknown encodings return ErrUnsupportedMediaType. limit, when positive,
// bounds the snappy block held in memory, compressed and decoded.
func Decode(body io.Reader, encoding string, limit int64) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingIdentity:
		return io.NopCloser(body), nil
	case EncodingSnappy:
		// block format has no streaming reader
		src := body
		if limit > 0 {
			src = io.LimitReader(body, limit+1)
		}
		compressed, err := io.ReadAll(src)
		if err != nil {
			return nil, err
		}
		if limit > 0 && int64(len(compressed)) > limit {
			return nil, fmt.Errorf("%w: limit is %d bytes", types.ErrPayloadTooLarge, limit)
		}
		n, err := snappy.DecodedLen(compressed)
		if err != nil {
			return nil, fmt.Errorf("invalid snappy payload: %w", err)
		}
		if limit > 0 && int64(n) > limit {
			return nil, fmt.Errorf("%w: decoded size %d exceeds %d bytes", types.ErrPayloadTooLarge, n, limit)
		}
		decoded, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("invalid snappy payload: %w", err)
		}
		return io.NopCloser(bytes.NewReader(decoded)), nil
	case EncodingBrotli:
		return io.NopCloser(brotli.NewReader(body)), nil
	case EncodingGzip:
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip payload: %w", err)
		}
		return zr, nil
	case EncodingZstd:
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("invalid zstd payload: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: content encoding %q", types.ErrUnsupportedMediaType, encoding)
	}
}

// limitReader fails with ErrPayloadTooLarge once more than n bytes were read.
type limitReader struct {
	r        io.Reader
	n        int64
	exceeded bool
}

func newLimitReader(r io.Reader, n int64) *limitReader {
	return &limitReader{r: r, n: n}
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, types.ErrPayloadTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		l.exceeded = true
		return n, types.ErrPayloadTooLarge
	}
	return n, err
}
