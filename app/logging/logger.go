// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the zerolog loggers used by the gateway binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/krkn-chaos/krkn-telemetry/app/build"
)

type loggerConfig struct {
	level   zerolog.Level
	sinks   []io.Writer
	attrs   []func(zerolog.Context) zerolog.Context
	version string
}

// LoggerOpt configures NewLogger.
type LoggerOpt func(*loggerConfig) error

// WithLevel sets the minimum level from its name. An empty name keeps info.
func WithLevel(level string) LoggerOpt {
	return func(c *loggerConfig) error {
		level = strings.TrimSpace(level)
		if level == "" {
			return nil
		}
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		c.level = lvl
		return nil
	}
}

// WithSink adds an output. Without any sink the logger writes to stdout.
func WithSink(sink io.Writer) LoggerOpt {
	return func(c *loggerConfig) error {
		if sink != nil {
			c.sinks = append(c.sinks, sink)
		}
		return nil
	}
}

// WithAttrs adds fields to every line.
func WithAttrs(fn func(zerolog.Context) zerolog.Context) LoggerOpt {
	return func(c *loggerConfig) error {
		if fn != nil {
			c.attrs = append(c.attrs, fn)
		}
		return nil
	}
}

// WithVersion overrides the version field, which defaults to the build version.
func WithVersion(version string) LoggerOpt {
	return func(c *loggerConfig) error {
		c.version = version
		return nil
	}
}

// NewLogger creates a logger with a timestamp and version on every line.
func NewLogger(opts ...LoggerOpt) (zerolog.Logger, error) {
	cfg := &loggerConfig{
		level:   zerolog.InfoLevel,
		version: build.GetVersion(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return zerolog.Nop(), err
		}
	}

	var out io.Writer
	switch len(cfg.sinks) {
	case 0:
		out = os.Stdout
	case 1:
		out = cfg.sinks[0]
	default:
		out = zerolog.MultiLevelWriter(cfg.sinks...)
	}

	ctx := zerolog.New(out).Level(cfg.level).With().
		Timestamp().
		Str("version", cfg.version)
	for _, fn := range cfg.attrs {
		ctx = fn(ctx)
	}
	return ctx.Logger(), nil
}
