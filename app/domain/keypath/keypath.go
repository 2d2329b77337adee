// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package keypath derives object storage keys from request parameters.
//
// Every stored object lives under
//
//	[category|group] / [run] / request_id / [filename]
//
// where absent components are omitted instead of leaving empty segments.
// The same derivation is used for writes (telemetry documents, raw uploads,
// presigned upload URLs) and reads (listing prefixes, download links), so a
// document written with a given set of parameters is always found again with
// the same set.
package keypath

import (
	"strings"

	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// TelemetryFilename is the object name used for validated telemetry documents.
const TelemetryFilename = "telemetry.json"

// Components are the optional parts of a storage key. Callers validate that
// the components their route requires are present; Resolve does not.
type Components struct {
	// Category is the telemetry category or group identifier.
	Category string
	// Run is the run identifier inside a group.
	Run string
	// RequestID identifies one experiment request.
	RequestID string
	// Filename is the object name.
	Filename string
}

// Resolve joins the non-empty components in the fixed order
// category, run, request id, filename.
func Resolve(c Components) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{c.Category, c.Run, c.RequestID, c.Filename} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, types.KeyDelimiter)
}

// Prefix resolves the components as a folder: the key followed by the
// delimiter, or the empty string for the bucket root.
func Prefix(c Components) string {
	key := Resolve(c)
	if key == "" {
		return ""
	}
	return key + types.KeyDelimiter
}

// Key is a convenience for Resolve.
func (c Components) Key() string {
	return Resolve(c)
}

// Prefix is a convenience for Prefix.
func (c Components) Prefix() string {
	return Prefix(c)
}

// WithFilename returns a copy of c naming the given object.
func (c Components) WithFilename(name string) Components {
	c.Filename = name
	return c
}

// ValidSegment reports whether s can be used as a single key component
// without changing the shape of the resolved key.
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.Contains(s, types.KeyDelimiter)
}
