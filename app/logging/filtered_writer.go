// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"io"
)

type fieldFilterWriter struct {
	out    io.Writer
	fields []string
}

// NewFieldFilterWriter returns a writer that removes the named top level
// fields from each JSON log line before passing it to out. Lines that are not
// JSON objects pass through unchanged.
func NewFieldFilterWriter(out io.Writer, fields []string) io.Writer {
	return &fieldFilterWriter{out: out, fields: fields}
}

// Write always reports len(p) on success so zerolog does not treat a shorter
// filtered line as a short write.
func (w *fieldFilterWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	body := bytes.TrimRight(p, "\n")
	line, ok := w.filter(body)
	if !ok {
		line = p
	} else {
		line = append(line, p[len(body):]...)
	}

	if _, err := w.out.Write(line); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *fieldFilterWriter) filter(body []byte) ([]byte, bool) {
	var entry map[string]json.RawMessage
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, false
	}
	for _, field := range w.fields {
		delete(entry, field)
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return nil, false
	}
	return line, true
}
