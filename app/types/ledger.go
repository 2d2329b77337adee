// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UploadKind describes how an object reached, or will reach, the store.
type UploadKind string

const (
	// UploadTelemetry is a validated telemetry document written by the gateway.
	UploadTelemetry UploadKind = "telemetry"
	// UploadRaw is an auxiliary file proxied through the gateway.
	UploadRaw UploadKind = "raw"
	// UploadPresigned is an upload URL handed to a client. The object may
	// never actually be written.
	UploadPresigned UploadKind = "presigned"
)

// UploadEvent records one write, or one issued write URL, for a key.
type UploadEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Key       string     `gorm:"index" json:"key"`
	RequestID string     `gorm:"index" json:"request_id"`
	Category  string     `json:"category,omitempty"`
	Run       string     `json:"run,omitempty"`
	Kind      UploadKind `json:"kind"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewUploadEvent returns an event with a fresh id.
func NewUploadEvent(kind UploadKind, key string) *UploadEvent {
	return &UploadEvent{
		ID:   uuid.New(),
		Key:  key,
		Kind: kind,
	}
}

// Ledger records upload events. Implementations must be safe for concurrent
// use.
type Ledger interface {
	// Record stores the event.
	Record(ctx context.Context, event *UploadEvent) error
	// ListByRequest returns the events for a request id, oldest first.
	ListByRequest(ctx context.Context, requestID string) ([]UploadEvent, error)
}
