// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry holds the telemetry document model and its validation.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// ScenariosField is the top-level property holding the scenario records.
const ScenariosField = "scenarios"

var (
	errNotObject        = errors.New("expected a JSON object")
	errMissingScenarios = errors.New(ScenariosField + " is missing")
	errScenariosNotList = errors.New(ScenariosField + " must be a list")
)

// Field is one named property of a JSON object, kept in declaration order.
type Field struct {
	Name  string
	Value json.RawMessage
}

// IsNull reports whether the value is absent or JSON null.
func (f Field) IsNull() bool {
	v := bytes.TrimSpace(f.Value)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

// IsEmptyString reports whether the value is the empty JSON string.
func (f Field) IsEmptyString() bool {
	return bytes.Equal(bytes.TrimSpace(f.Value), []byte(`""`))
}

// Fields is an ordered JSON object.
type Fields []Field

// Get returns the named field.
func (fs Fields) Get(name string) (Field, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// UnmarshalJSON decodes an object keeping property order. A repeated name
// keeps its first position and its last value.
func (fs *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errNotObject
	}

	out := Fields{}
	index := map[string]int{}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if i, dup := index[name]; dup {
			out[i].Value = raw
			continue
		}
		index[name] = len(out)
		out = append(out, Field{Name: name, Value: raw})
	}
	if _, err = dec.Token(); err != nil {
		return err
	}
	*fs = out
	return nil
}

// MarshalJSON encodes the object in field order.
func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if f.IsNull() {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ScenarioRecord is one chaos scenario execution.
type ScenarioRecord struct {
	Fields Fields
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ScenarioRecord) UnmarshalJSON(data []byte) error {
	return r.Fields.UnmarshalJSON(data)
}

// MarshalJSON implements json.Marshaler.
func (r ScenarioRecord) MarshalJSON() ([]byte, error) {
	return r.Fields.MarshalJSON()
}

// Name returns the scenario name when the record carries one.
func (r ScenarioRecord) Name() string {
	f, ok := r.Fields.Get("scenario")
	if !ok {
		return ""
	}
	var name string
	if err := json.Unmarshal(f.Value, &name); err != nil {
		return ""
	}
	return name
}

// Document is one telemetry payload: run level metadata plus the ordered
// scenario records.
type Document struct {
	// Metadata holds every top-level property in order, scenarios included.
	Metadata  Fields
	Scenarios []ScenarioRecord
}

// Parse decodes a telemetry document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		if errors.Is(err, types.ErrInvalidTelemetry) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidTelemetry, err)
	}
	return &doc, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	var meta Fields
	if err := meta.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidTelemetry, err)
	}
	raw, ok := meta.Get(ScenariosField)
	if !ok || raw.IsNull() {
		return fmt.Errorf("%w: %w", types.ErrInvalidTelemetry, errMissingScenarios)
	}
	var scenarios []ScenarioRecord
	if err := json.Unmarshal(raw.Value, &scenarios); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %w", types.ErrInvalidTelemetry, errScenariosNotList)
		}
		return fmt.Errorf("%w: %s: %w", types.ErrInvalidTelemetry, ScenariosField, err)
	}
	d.Metadata = meta
	d.Scenarios = scenarios
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	return d.Metadata.MarshalJSON()
}

// Encode renders the document the way it is stored: indented by four spaces.
func (d *Document) Encode() ([]byte, error) {
	compact, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "    "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
