// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/krkn-chaos/krkn-telemetry/app/storage/core"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// UploadLedger is a types.Ledger stored in the upload_event table.
type UploadLedger struct {
	core.BaseRepoImpl
	// limit bounds the number of retained rows; the oldest are pruned.
	limit int
}

var (
	_ types.Ledger                     = (*UploadLedger)(nil)
	_ types.Creator[types.UploadEvent] = (*UploadLedger)(nil)
)

// NewUploadLedger migrates the schema and returns a ledger retaining at most
// limit rows. A limit of zero or less keeps everything.
func NewUploadLedger(ctx context.Context, db *gorm.DB, limit int) (*UploadLedger, error) {
	if err := db.WithContext(ctx).AutoMigrate(&types.UploadEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate upload ledger: %w", core.TranslateError(err))
	}
	return &UploadLedger{
		BaseRepoImpl: core.NewBaseRepoImpl(db, &types.UploadEvent{}),
		limit:        limit,
	}, nil
}

// Create inserts an event.
func (r *UploadLedger) Create(ctx context.Context, it *types.UploadEvent) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	return core.TranslateError(r.DB(ctx).Create(it).Error)
}

// Record implements types.Ledger. The insert and the retention prune share a
// transaction.
func (r *UploadLedger) Record(ctx context.Context, event *types.UploadEvent) error {
	return r.Tx(ctx, func(ctxTx context.Context) error {
		if err := r.Create(ctxTx, event); err != nil {
			return err
		}
		return r.prune(ctxTx)
	})
}

func (r *UploadLedger) prune(ctx context.Context) error {
	if r.limit <= 0 {
		return nil
	}
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	excess := count - r.limit
	if excess <= 0 {
		return nil
	}

	oldest := r.DB(ctx).
		Model(&types.UploadEvent{}).
		Select("id").
		Order("created_at ASC, id ASC").
		Limit(excess)
	err = r.DB(ctx).Where("id IN (?)", oldest).Delete(&types.UploadEvent{}).Error
	if err != nil {
		return core.TranslateError(err)
	}
	log.Ctx(ctx).Debug().Int("pruned", excess).Int("limit", r.limit).Msg("upload ledger pruned")
	return nil
}

// Ping checks the ledger table is reachable.
func (r *UploadLedger) Ping(ctx context.Context) error {
	_, err := r.Count(ctx)
	return err
}

// ListByRequest returns the events of a request id, oldest first.
func (r *UploadLedger) ListByRequest(ctx context.Context, requestID string) ([]types.UploadEvent, error) {
	events := make([]types.UploadEvent, 0)
	err := r.DB(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, core.TranslateError(err)
	}
	return events, nil
}
