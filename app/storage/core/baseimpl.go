// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package core provides the gorm plumbing shared by ledger repositories.
//
// Repositories embed BaseRepoImpl and run every query through DB(ctx), which
// picks up a transaction started by Tx when the context carries one:
//
//	type EventRepo struct{ core.BaseRepoImpl }
//
//	func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*types.UploadEvent, error) {
//		var e types.UploadEvent
//		err := r.DB(ctx).Where("id = ?", id).First(&e).Error
//		return &e, core.TranslateError(err)
//	}
package core

import (
	"context"

	"gorm.io/gorm"
)

// RawBaseRepoImpl gives repositories a context aware database handle.
type RawBaseRepoImpl struct {
	db *gorm.DB
}

// NewRawBaseRepoImpl creates a RawBaseRepoImpl.
func NewRawBaseRepoImpl(db *gorm.DB) RawBaseRepoImpl {
	return RawBaseRepoImpl{
		db: db,
	}
}

// DB returns the transaction stored in ctx, or the default handle.
func (b *RawBaseRepoImpl) DB(ctx context.Context) *gorm.DB {
	if tx, found := FromContext(ctx); found {
		return tx.WithContext(ctx)
	}

	return b.db.WithContext(ctx)
}

// Tx runs block in a transaction. The transaction commits when block
// returns nil and rolls back otherwise.
func (b *RawBaseRepoImpl) Tx(ctx context.Context, block func(ctxTx context.Context) error) error {
	db := b.DB(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		ctxTx := NewContext(ctx, tx)
		return block(ctxTx)
	})
	return TranslateError(err)
}

// BaseRepoImpl adds model level helpers to RawBaseRepoImpl.
type BaseRepoImpl struct {
	RawBaseRepoImpl
	model interface{}
}

// NewBaseRepoImpl creates a BaseRepoImpl for the table of model.
func NewBaseRepoImpl(db *gorm.DB, model interface{}) BaseRepoImpl {
	return BaseRepoImpl{
		RawBaseRepoImpl: NewRawBaseRepoImpl(db),
		model:           model,
	}
}

// Count returns the number of rows in the model table.
func (b *BaseRepoImpl) Count(ctx context.Context) (int, error) {
	var count int64
	err := b.DB(ctx).Model(b.model).Count(&count).Error
	return int(count), TranslateError(err)
}

type key int

var dbKey key

// NewContext returns a context carrying a transaction.
func NewContext(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey, db)
}

// FromContext returns the transaction carried by ctx.
func FromContext(ctx context.Context) (*gorm.DB, bool) {
	db, ok := ctx.Value(dbKey).(*gorm.DB)
	return db, ok
}
