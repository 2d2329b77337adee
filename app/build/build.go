// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package build exposes version information stamped in at link time.
package build

import (
	"fmt"

	"github.com/go-obvious/server"
)

// Set with -ldflags "-X github.com/krkn-chaos/krkn-telemetry/app/build.Rev=..."
var (
	AuthorName  = "krkn-chaos"
	AuthorEmail = "krkn@redhat.com"
	Copyright   = "© 2016-2025 CloudZero, Inc. or its affiliates. All Rights Reserved."
	ChartsRepo  = "krkn-chaos.github.io/krkn-telemetry"

	Rev  = "unknown"
	Tag  = "dev"
	Time = "unknown"
)

// GetVersion returns the tag and short revision, e.g. "1.2.0-3f2a1bc".
func GetVersion() string {
	rev := Rev
	if len(rev) > 7 {
		rev = rev[:7]
	}
	return fmt.Sprintf("%s-%s", Tag, rev)
}

// Version returns the version in the form the HTTP server reports it.
func Version() *server.ServerVersion {
	return &server.ServerVersion{
		Revision: Rev,
		Tag:      Tag,
		Time:     Time,
	}
}
