// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// zerologAdapter routes retryablehttp logging through zerolog.
type zerologAdapter struct {
	logger *zerolog.Logger
}

var _ retryablehttp.LeveledLogger = (*zerologAdapter)(nil)

func newZerologAdapter(logger *zerolog.Logger) *zerologAdapter {
	if logger == nil {
		l := log.Logger
		logger = &l
	}
	return &zerologAdapter{logger: logger}
}

func (a *zerologAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error().Fields(kvsToMap(keysAndValues...)).Msg(msg)
}

func (a *zerologAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info().Fields(kvsToMap(keysAndValues...)).Msg(msg)
}

// Debug is demoted to trace: retryablehttp logs every attempt at debug.
func (a *zerologAdapter) Debug(msg string, keysAndValues ...interface{}) {
	a.logger.Trace().Fields(kvsToMap(keysAndValues...)).Msg(msg)
}

func (a *zerologAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn().Fields(kvsToMap(keysAndValues...)).Msg(msg)
}

func kvsToMap(keysAndValues ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			m[key] = keysAndValues[i+1]
		}
	}
	return m
}
