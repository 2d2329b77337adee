// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMissingParameter is the base error for absent request parameters.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrUnsupportedMediaType is returned for content types or encodings the
	// gateway does not accept.
	ErrUnsupportedMediaType = errors.New("content type not supported")
	// ErrMissingConfiguration is returned when a required setting, such as the
	// bucket name, was never provided.
	ErrMissingConfiguration = errors.New("missing configuration")
	// ErrInvalidTelemetry is the base error for documents rejected by the
	// telemetry validator.
	ErrInvalidTelemetry = errors.New("invalid telemetry document")
	// ErrPayloadTooLarge is returned when an upload exceeds the configured limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// Ledger storage errors, translated from the ORM layer.
	ErrDuplicateKey            = errors.New("duplicate key")
	ErrInvalidTransaction      = errors.New("invalid transaction")
	ErrInvalidData             = errors.New("invalid data")
	ErrMissingWhereClause      = errors.New("missing where clause")
	ErrPrimaryKeyRequired      = errors.New("primary key required")
	ErrCheckConstraintViolated = errors.New("check constraint violated")
)

// MissingParameterError names the request parameter that was not supplied.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing %s param", e.Name)
}

func (e *MissingParameterError) Unwrap() error {
	return ErrMissingParameter
}

// NewMissingParameterError returns an error naming the absent parameter.
func NewMissingParameterError(name string) error {
	return &MissingParameterError{Name: name}
}
