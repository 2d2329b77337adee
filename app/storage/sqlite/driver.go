// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite persists the upload ledger in SQLite.
package sqlite

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/krkn-chaos/krkn-telemetry/app/storage/core"
)

const (
	// InMemoryDSN is a private in-memory database per connection.
	InMemoryDSN = ":memory:"
	// MemorySharedCached is an in-memory database shared by all connections
	// of the process.
	MemorySharedCached = "file:memory?mode=memory&cache=shared"
)

// NewSQLiteDriver opens dsn with the core driver settings.
func NewSQLiteDriver(dsn string) (*gorm.DB, error) {
	db, err := core.NewDriver(sqlite.Open(dsn))
	if err != nil {
		return nil, err
	}
	return db, nil
}
