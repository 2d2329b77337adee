// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ZeroLogAdapter sends gorm logs to the zerolog logger stored in the query
// context. Every statement is logged once with its SQL in the "sql" field.
type ZeroLogAdapter struct{}

// LogMode is a no-op; the zerolog level decides what is written.
func (l ZeroLogAdapter) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (l ZeroLogAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	zerolog.Ctx(ctx).Info().Msgf(msg, args...)
}

func (l ZeroLogAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	zerolog.Ctx(ctx).Warn().Msgf(msg, args...)
}

func (l ZeroLogAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	zerolog.Ctx(ctx).Error().Msgf(msg, args...)
}

func (l ZeroLogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	zl := zerolog.Ctx(ctx)

	var event *zerolog.Event
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		event = zl.Error().Err(err)
	} else {
		event = zl.Debug()
	}

	sql, rows := fc()
	event.
		Dur("elapsed", time.Since(begin)).
		Str("sql", sql).
		Int64("rows", rows).
		Msg("query")
}
