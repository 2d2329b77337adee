// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

//go:generate mockgen -destination=mocks/storage_mock.go -package=mocks . ObjectStore,Ledger

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"
)

// ObjectKind tags a StorageObjectRef as a stored file or a virtual folder
// derived from a common prefix.
type ObjectKind string

const (
	KindFile   ObjectKind = "file"
	KindFolder ObjectKind = "folder"
)

// KeyDelimiter separates the segments of a storage key.
const KeyDelimiter = "/"

// ObjectInfo is one raw entry of a storage listing. Common prefixes are
// reported in the same stream with IsPrefix set and a trailing delimiter on
// the key.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	IsPrefix     bool
}

// ListOptions controls a single listing call.
type ListOptions struct {
	// Recursive disables delimiter grouping; every key under the prefix is
	// returned and no common prefixes are reported.
	Recursive bool
	// StartAfter is the continuation cursor returned by a previous page.
	StartAfter string
	// Limit caps the number of entries returned. Zero means no cap.
	Limit int
}

// Listing is the result of one listing call, in the order the backend
// returned the entries.
type Listing struct {
	Prefix     string
	Entries    []ObjectInfo
	NextCursor string
	Truncated  bool
}

// Empty reports whether the listing matched nothing.
func (l *Listing) Empty() bool {
	return l == nil || len(l.Entries) == 0
}

// ObjectRef is the read-only view of a stored item or folder.
type ObjectRef struct {
	Key          string     `json:"key"`
	Name         string     `json:"name"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Kind         ObjectKind `json:"type"`
}

// Segments splits the key into its non-empty path segments.
func (o ObjectRef) Segments() []string {
	parts := strings.Split(o.Key, KeyDelimiter)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsFolder reports whether the entry represents a common prefix.
func (o ObjectRef) IsFolder() bool {
	return o.Kind == KindFolder
}

// PresignedLink is a time-limited URL issued by the storage backend.
type PresignedLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectStore is the subset of an S3-compatible backend the gateway needs.
type ObjectStore interface {
	// Bucket returns the configured bucket name.
	Bucket() string
	// Put stores the body under key. A negative size streams until EOF.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error)
	// Stat returns the metadata of key, or ErrNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// List returns the entries under prefix.
	List(ctx context.Context, prefix string, opts ListOptions) (*Listing, error)
	// PresignPut returns a URL allowing a single upload to key.
	PresignPut(ctx context.Context, key string, ttl time.Duration) (*url.URL, error)
	// PresignGet returns a URL allowing downloads of key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (*url.URL, error)
}

// Creator creates a model.
type Creator[Model any] interface {
	Create(ctx context.Context, it *Model) error
}

