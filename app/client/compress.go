// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/upload"
)

// Compress encodes data for the given Content-Encoding. An empty encoding or
// identity returns data unchanged.
func Compress(data []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "", upload.EncodingIdentity:
		return data, nil
	case upload.EncodingSnappy:
		return snappy.Encode(nil, data), nil
	case upload.EncodingBrotli:
		return streamCompress(data, func(w io.Writer) (io.WriteCloser, error) {
			return brotli.NewWriter(w), nil
		})
	case upload.EncodingGzip:
		return streamCompress(data, func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		})
	case upload.EncodingZstd:
		return streamCompress(data, func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		})
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

func streamCompress(data []byte, open func(io.Writer) (io.WriteCloser, error)) ([]byte, error) {
	var buf bytes.Buffer
	w, err := open(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
