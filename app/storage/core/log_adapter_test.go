// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core_test

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/krkn-chaos/krkn-telemetry/app/storage/core"
)

type entryWriter struct {
	entries []map[string]interface{}
}

func (w *entryWriter) Write(p []byte) (int, error) {
	entry := map[string]interface{}{}
	if err := json.Unmarshal(p, &entry); err != nil {
		return 0, err
	}
	w.entries = append(w.entries, entry)
	return len(p), nil
}

func TestUnit_Core_ZeroLogAdapter(t *testing.T) {
	out := &entryWriter{}
	z := zerolog.New(out)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: core.ZeroLogAdapter{}})
	require.NoError(t, err)
	db = db.WithContext(z.WithContext(context.Background()))

	type Upload struct {
		Key  string
		Size int64
	}
	require.NoError(t, db.AutoMigrate(&Upload{}))

	cases := []struct {
		name       string
		run        func() error
		sqlPattern string
		level      string
		errOk      bool
	}{
		{
			name:       "insert",
			run:        func() error { return db.Create(&Upload{Key: "r1/telemetry.json", Size: 12}).Error },
			sqlPattern: "INSERT INTO `uploads` \\(`key`,`size`\\) VALUES \\(\"r1/telemetry.json\",12\\)",
			level:      "debug",
		},
		{
			name:       "select",
			run:        func() error { return db.Model(&Upload{}).Find(&[]*Upload{}).Error },
			sqlPattern: "SELECT \\* FROM `uploads`",
			level:      "debug",
		},
		{
			name: "record not found is not an error",
			run: func() error {
				return db.Where(&Upload{Key: "missing"}).First(&Upload{}).Error
			},
			sqlPattern: "SELECT \\* FROM `uploads` WHERE `uploads`\\.`key` = \"missing\"",
			level:      "debug",
			errOk:      true,
		},
		{
			name:       "invalid statement",
			run:        func() error { return db.Raw("THIS is,not REAL sql").Scan(&Upload{}).Error },
			sqlPattern: "THIS is,not REAL sql",
			level:      "error",
			errOk:      true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out.entries = nil

			err := c.run()
			if !c.errOk {
				require.NoError(t, err)
			}

			require.Len(t, out.entries, 1)
			entry := out.entries[0]
			require.Equal(t, c.level, entry["level"])

			sql, ok := entry["sql"].(string)
			require.True(t, ok)
			require.Regexp(t, regexp.MustCompile(c.sqlPattern), sql)
		})
	}
}
