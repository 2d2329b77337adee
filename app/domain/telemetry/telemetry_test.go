// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package telemetry_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/telemetry"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

const validDoc = `{
  "run_uuid": "abc",
  "scenarios": [
    {"scenario": "pod-scenarios", "exit_status": 0, "parametersBase64": "", "engine": "kraken"},
    {"scenario": "node-scenarios", "exit_status": 0, "parametersBase64": null}
  ],
  "cloud_infrastructure": "AWS"
}`

func TestUnit_Telemetry_Parse(t *testing.T) {
	doc, err := telemetry.Parse([]byte(validDoc))
	require.NoError(t, err)
	require.Len(t, doc.Scenarios, 2)
	assert.Equal(t, "pod-scenarios", doc.Scenarios[0].Name())

	names := make([]string, 0, len(doc.Metadata))
	for _, f := range doc.Metadata {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"run_uuid", "scenarios", "cloud_infrastructure"}, names)
}

func TestUnit_Telemetry_Parse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `nope`},
		{name: "array root", body: `[]`},
		{name: "missing scenarios", body: `{"run_uuid": "abc"}`},
		{name: "null scenarios", body: `{"scenarios": null}`},
		{name: "scenarios not a list", body: `{"scenarios": "x"}`},
		{name: "scenario not an object", body: `{"scenarios": [1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := telemetry.Parse([]byte(tt.body))
			require.Error(t, err)
		})
	}
}

func TestUnit_Telemetry_Parse_MissingScenariosIsInvalidTelemetry(t *testing.T) {
	_, err := telemetry.Parse([]byte(`{"run_uuid": "abc"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidTelemetry))
	assert.Contains(t, err.Error(), "scenarios")
}

func TestUnit_Telemetry_Fields_DuplicateKeepsFirstPositionLastValue(t *testing.T) {
	doc, err := telemetry.Parse([]byte(`{"a": 1, "scenarios": [], "a": 2}`))
	require.NoError(t, err)
	require.Len(t, doc.Metadata, 2)
	assert.Equal(t, "a", doc.Metadata[0].Name)
	assert.Equal(t, "2", string(doc.Metadata[0].Value))
}

func TestUnit_Telemetry_Document_Encode(t *testing.T) {
	doc, err := telemetry.Parse([]byte(`{"b":1,"scenarios":[{"z":"x","a":true}],"a":null}`))
	require.NoError(t, err)

	out, err := doc.Encode()
	require.NoError(t, err)

	expected := strings.Join([]string{
		`{`,
		`    "b": 1,`,
		`    "scenarios": [`,
		`        {`,
		`            "z": "x",`,
		`            "a": true`,
		`        }`,
		`    ],`,
		`    "a": null`,
		`}`,
	}, "\n")
	assert.Equal(t, expected, string(out))

	again, err := telemetry.Parse(out)
	require.NoError(t, err)
	assert.Len(t, again.Scenarios, 1)
}

func TestUnit_Telemetry_Validator_Validate(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		required []string
		field    string
	}{
		{
			name: "valid document",
			body: validDoc,
		},
		{
			name: "empty scenario list",
			body: `{"scenarios": []}`,
		},
		{
			name:  "empty engine",
			body:  `{"scenarios": [{"scenario": "pod", "engine": ""}]}`,
			field: "engine",
		},
		{
			name:  "null value",
			body:  `{"scenarios": [{"scenario": null}]}`,
			field: "scenario",
		},
		{
			name:  "first error wins within a record",
			body:  `{"scenarios": [{"scenario": "pod", "alpha": "", "beta": null}]}`,
			field: "alpha",
		},
		{
			name:  "first error wins across records",
			body:  `{"scenarios": [{"scenario": "pod", "x": ""}, {"y": ""}]}`,
			field: "x",
		},
		{
			name:  "later record",
			body:  `{"scenarios": [{"scenario": "pod"}, {"scenario": "node", "exit_status": null}]}`,
			field: "exit_status",
		},
		{
			name: "exempt field may be empty or null",
			body: `{"scenarios": [{"parametersBase64": ""}, {"parametersBase64": null}]}`,
		},
		{
			name: "zero, false and empty containers are present values",
			body: `{"scenarios": [{"a": 0, "b": false, "c": [], "d": {}}]}`,
		},
		{
			name:     "required field missing",
			body:     `{"scenarios": [{"scenario": "pod"}]}`,
			required: []string{"scenario", "exit_status"},
			field:    "exit_status",
		},
		{
			name:     "declared empty field reported before missing required field",
			body:     `{"scenarios": [{"engine": ""}]}`,
			required: []string{"scenario"},
			field:    "engine",
		},
		{
			name:     "exempt field is never required",
			body:     `{"scenarios": [{"scenario": "pod"}]}`,
			required: []string{"parametersBase64"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := telemetry.Parse([]byte(tt.body))
			require.NoError(t, err)

			result := telemetry.NewValidator(tt.required...).Validate(doc)
			if tt.field == "" {
				assert.True(t, result.Valid())
				assert.NoError(t, result.Err())
				return
			}
			assert.False(t, result.Valid())
			assert.Equal(t, tt.field, result.Field())
			assert.EqualError(t, result.Err(), tt.field+" is null or empty")
			assert.True(t, errors.Is(result.Err(), types.ErrInvalidTelemetry))
		})
	}
}

func TestUnit_Telemetry_Validator_ZeroValue(t *testing.T) {
	doc, err := telemetry.Parse([]byte(`{"scenarios": [{"engine": ""}]}`))
	require.NoError(t, err)

	var v telemetry.Validator
	result := v.Validate(doc)
	assert.Equal(t, "engine", result.Field())

	var invalid *telemetry.InvalidFieldError
	require.True(t, errors.As(result.Err(), &invalid))
	assert.Equal(t, 0, invalid.Record)
}
