// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"

	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// ExemptField is the only scenario field allowed to be null or empty.
const ExemptField = "parametersBase64"

// InvalidFieldError names the first scenario field that failed validation.
type InvalidFieldError struct {
	Field string
	// Record is the zero based index of the offending scenario.
	Record int
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s is null or empty", e.Field)
}

func (e *InvalidFieldError) Unwrap() error {
	return types.ErrInvalidTelemetry
}

// Result is the outcome of validating a document.
type Result struct {
	invalid *InvalidFieldError
}

// Valid reports whether the document passed.
func (r Result) Valid() bool {
	return r.invalid == nil
}

// Field returns the offending field name, or "" for a valid result.
func (r Result) Field() string {
	if r.invalid == nil {
		return ""
	}
	return r.invalid.Field
}

// Err returns the failure as an error, or nil for a valid result.
func (r Result) Err() error {
	if r.invalid == nil {
		return nil
	}
	return r.invalid
}

// Validator checks scenario records. The zero value applies the default rules.
type Validator struct {
	// Required lists field names every record must declare.
	Required []string
}

// NewValidator creates a validator that also enforces the given field names.
func NewValidator(required ...string) *Validator {
	return &Validator{Required: required}
}

// Validate walks records in document order and fields in declaration order
// and stops at the first null or empty-string value. Required names a record
// does not declare are reported after its declared fields.
func (v *Validator) Validate(doc *Document) Result {
	if doc == nil {
		return Result{}
	}
	for i, record := range doc.Scenarios {
		for _, f := range record.Fields {
			if f.Name == ExemptField {
				continue
			}
			if f.IsNull() || f.IsEmptyString() {
				return Result{invalid: &InvalidFieldError{Field: f.Name, Record: i}}
			}
		}
		if v == nil {
			continue
		}
		for _, name := range v.Required {
			if name == ExemptField {
				continue
			}
			if _, ok := record.Fields.Get(name); !ok {
				return Result{invalid: &InvalidFieldError{Field: name, Record: i}}
			}
		}
	}
	return Result{}
}
