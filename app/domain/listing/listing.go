// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package listing converts raw storage listings into the entries shown by the
// navigation, download and file manager views.
package listing

import (
	"path"
	"sort"
	"strings"

	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

const (
	// FileManagerPageSize bounds one page of the file manager view.
	FileManagerPageSize = 13
	// PrometheusFilePrefix marks raw metric dumps inside a request folder.
	PrometheusFilePrefix = "prometheus-"
	// PrometheusIndexOffset is subtracted from the number of metric dumps in a
	// request folder; one of them is the index archive, not a dump.
	PrometheusIndexOffset = 1
)

// Build converts a listing into view entries in storage order. Object keys
// become file entries and common prefixes become folder entries. The folder
// marker object equal to the listing prefix itself is skipped.
func Build(l *types.Listing) []types.ObjectRef {
	if l.Empty() {
		return []types.ObjectRef{}
	}
	out := make([]types.ObjectRef, 0, len(l.Entries))
	for _, entry := range l.Entries {
		if entry.Key == l.Prefix {
			continue
		}
		out = append(out, Entry(entry))
	}
	return out
}

// Entry converts a single raw entry.
func Entry(info types.ObjectInfo) types.ObjectRef {
	if info.IsPrefix || strings.HasSuffix(info.Key, types.KeyDelimiter) {
		return types.ObjectRef{
			Key:  info.Key,
			Name: FolderName(info.Key),
			Kind: types.KindFolder,
		}
	}
	ref := types.ObjectRef{
		Key:  info.Key,
		Name: path.Base(info.Key),
		Size: info.Size,
		Kind: types.KindFile,
	}
	if !info.LastModified.IsZero() {
		modified := info.LastModified
		ref.LastModified = &modified
	}
	return ref
}

// FolderName returns the trailing segment of a common prefix.
func FolderName(prefix string) string {
	trimmed := strings.TrimSuffix(prefix, types.KeyDelimiter)
	if i := strings.LastIndex(trimmed, types.KeyDelimiter); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// SortByKey orders entries alphabetically by their full key.
func SortByKey(refs []types.ObjectRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Key < refs[j].Key
	})
}

// Folders returns only the folder entries.
func Folders(refs []types.ObjectRef) []types.ObjectRef {
	out := make([]types.ObjectRef, 0, len(refs))
	for _, r := range refs {
		if r.IsFolder() {
			out = append(out, r)
		}
	}
	return out
}

// RelativeName strips prefix from key. Keys outside prefix are returned as is.
func RelativeName(prefix, key string) string {
	if prefix == "" {
		return key
	}
	rel := strings.TrimPrefix(key, prefix)
	if rel == "" {
		return key
	}
	return rel
}

// CountPrometheusFiles counts metric dumps among refs, less the index offset.
// Names are matched on the key relative to prefix, so dumps stored in nested
// folders are counted too.
func CountPrometheusFiles(prefix string, refs []types.ObjectRef) int {
	n := 0
	for _, r := range refs {
		if r.IsFolder() {
			continue
		}
		if strings.Contains(RelativeName(prefix, r.Key), PrometheusFilePrefix) {
			n++
		}
	}
	return max(n-PrometheusIndexOffset, 0)
}

// Page is one page of the file manager view.
type Page struct {
	Prefix  string
	Entries []types.ObjectRef
	// Cursor continues the listing when More is set.
	Cursor string
	More   bool
}

// NewPage builds a page from a listing fetched with a page-size limit.
func NewPage(l *types.Listing) Page {
	p := Page{Entries: Build(l)}
	if l != nil {
		p.Prefix = l.Prefix
		p.More = l.Truncated
		if l.Truncated {
			p.Cursor = l.NextCursor
		}
	}
	return p
}

// Parent returns the prefix one level above prefix, or "" at the root.
func Parent(prefix string) string {
	trimmed := strings.TrimSuffix(prefix, types.KeyDelimiter)
	i := strings.LastIndex(trimmed, types.KeyDelimiter)
	if i < 0 {
		return ""
	}
	return trimmed[:i+1]
}
