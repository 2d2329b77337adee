// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/krkn-chaos/krkn-telemetry/app/build"
	"github.com/krkn-chaos/krkn-telemetry/app/client"
	"github.com/krkn-chaos/krkn-telemetry/app/logging"
)

const (
	envEndpoint     = "TELEMETRY_GATEWAY"
	defaultEndpoint = "http://localhost:8080"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	endpoint  string
	requestID string
	category  string
	run       string
	timeout   time.Duration
	retries   int
	output    string
	logLevel  string
}

func (o *options) target() client.Target {
	return client.Target{RequestID: o.requestID, Category: o.category, Run: o.run}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	endpoint := os.Getenv(envEndpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	rootCmd := &cobra.Command{
		Use:   "telemetry-cli",
		Short: "Chaos telemetry gateway client",
		Long: `telemetry-cli uploads chaos run telemetry and auxiliary files to the
telemetry gateway and retrieves download links for stored runs.`,
		Version:       fmt.Sprintf("%s/%s-%s", build.GetVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewLogger(
				logging.WithLevel(opts.logLevel),
				logging.WithSink(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}),
			)
			if err != nil {
				return fmt.Errorf("failed to create the logger: %w", err)
			}
			cmd.SetContext(logger.WithContext(cmd.Context()))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.endpoint, "endpoint", "e", endpoint, "gateway base URL (env "+envEndpoint+")")
	flags.StringVarP(&opts.requestID, "request-id", "r", "", "experiment request id")
	flags.StringVarP(&opts.category, "category", "c", "", "telemetry category or group")
	flags.StringVar(&opts.run, "run", "", "telemetry run inside the group")
	flags.DurationVarP(&opts.timeout, "timeout", "t", client.DefaultTimeout, "timeout of a single request")
	flags.IntVar(&opts.retries, "retries", client.DefaultMaxRetries, "retries on connection errors and 5xx replies")
	flags.StringVarP(&opts.output, "output", "o", "json", "output format for listings (json, yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(
		newUploadTelemetryCmd(opts),
		newUploadFileCmd(opts),
		newPushPrometheusCmd(opts),
		newDownloadURLCmd(opts),
		newNavigateCmd(opts),
		newHistoryCmd(opts),
	)
	return rootCmd
}

func newClient(cmd *cobra.Command, opts *options) (*client.Client, error) {
	retries := opts.retries
	if retries == 0 {
		retries = -1
	}
	return client.NewClient(cmd.Context(), client.Config{
		Endpoint:   opts.endpoint,
		Timeout:    opts.timeout,
		MaxRetries: retries,
	})
}

func requireRequestID(opts *options) error {
	if opts.requestID == "" {
		return fmt.Errorf("--request-id is required")
	}
	return nil
}

func writeValue(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
