// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package tracker keeps upload events in process memory.
package tracker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// MemoryLedger is a types.Ledger backed by a slice. Events are lost on
// restart.
type MemoryLedger struct {
	mu     sync.RWMutex
	events []types.UploadEvent
	// limit bounds the number of retained events; the oldest are dropped.
	limit int
}

// NewMemoryLedger creates an in-memory ledger retaining at most limit events.
// A limit of zero or less keeps everything.
func NewMemoryLedger(limit int) *MemoryLedger {
	return &MemoryLedger{
		events: make([]types.UploadEvent, 0),
		limit:  limit,
	}
}

// Record stores a copy of the event.
func (t *MemoryLedger) Record(ctx context.Context, event *types.UploadEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, *event)
	if t.limit > 0 && len(t.events) > t.limit {
		t.events = append(t.events[:0:0], t.events[len(t.events)-t.limit:]...)
	}

	log.Ctx(ctx).Debug().
		Str("request_id", event.RequestID).
		Str("key", event.Key).
		Str("kind", string(event.Kind)).
		Int64("size", event.Size).
		Time("created_at", event.CreatedAt).
		Msg("upload event recorded")

	return nil
}

// ListByRequest returns the events of a request id, oldest first.
func (t *MemoryLedger) ListByRequest(_ context.Context, requestID string) ([]types.UploadEvent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.UploadEvent, 0)
	for _, e := range t.events {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}
