// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/upload"
)

func newUploadTelemetryCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "upload-telemetry",
		Short: "Upload a telemetry document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRequestID(opts); err != nil {
				return err
			}
			doc, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			c, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			reply, err := c.UploadTelemetry(cmd.Context(), opts.target(), doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "telemetry.json", "telemetry document to upload")
	return cmd
}

func newUploadFileCmd(opts *options) *cobra.Command {
	var (
		file       string
		remoteName string
	)
	cmd := &cobra.Command{
		Use:   "upload-file",
		Short: "Upload a file directly to storage through a presigned URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRequestID(opts); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			if remoteName == "" {
				remoteName = filepath.Base(file)
			}
			c, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			if _, err := c.UploadFile(cmd.Context(), opts.target(), remoteName, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", remoteName, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file to upload")
	cmd.Flags().StringVar(&remoteName, "remote-filename", "", "object name, defaults to the file's base name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPushPrometheusCmd(opts *options) *cobra.Command {
	var (
		file       string
		remoteName string
		encoding   string
	)
	cmd := &cobra.Command{
		Use:   "push-prometheus",
		Short: "Upload a metrics archive through the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRequestID(opts); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			c, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			reply, err := c.PushFile(cmd.Context(), opts.target(), remoteName, data, encoding)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "archive to upload")
	cmd.Flags().StringVar(&remoteName, "remote-filename", "", "object name, generated by the gateway when empty")
	cmd.Flags().StringVar(&encoding, "encoding", upload.EncodingSnappy,
		fmt.Sprintf("body compression (%s, %s, %s, %s, %s)", upload.EncodingIdentity, upload.EncodingSnappy,
			upload.EncodingBrotli, upload.EncodingGzip, upload.EncodingZstd))
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDownloadURLCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "download-url [group [run]] filename",
		Short: "Print a download link for a stored file",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var group, run string
			filename := args[len(args)-1]
			if len(args) > 1 {
				group = args[0]
			}
			if len(args) > 2 {
				run = args[1]
			}
			c, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			link, err := c.DownloadURL(cmd.Context(), group, run, filename)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func newNavigateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate [group [run]]",
		Short: "List one level of stored telemetry",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var group, run string
			if len(args) > 0 {
				group = args[0]
			}
			if len(args) > 1 {
				run = args[1]
			}
			c, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			refs, err := c.Navigate(cmd.Context(), group, run)
			if err != nil {
				return err
			}
			return writeValue(cmd.OutOrStdout(), opts.output, refs)
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history request-id",
		Short: "Show the uploads recorded for a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			events, err := c.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeValue(cmd.OutOrStdout(), opts.output, events)
		},
	}
}
