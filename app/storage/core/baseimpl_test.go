// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/krkn-chaos/krkn-telemetry/app/storage/core"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

type marker struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func newRepo(t *testing.T) core.BaseRepoImpl {
	t.Helper()
	db, err := core.NewDriver(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err, "failed to get the new driver")
	require.NoError(t, db.AutoMigrate(&marker{}))
	return core.NewBaseRepoImpl(db, &marker{})
}

func TestUnit_Core_Context(t *testing.T) {
	db := &gorm.DB{}

	from, found := core.FromContext(context.Background())
	assert.Nil(t, from)
	assert.False(t, found)

	ctxTx := core.NewContext(context.Background(), db)
	from, found = core.FromContext(ctxTx)
	assert.Same(t, from, db)
	assert.True(t, found)
}

func TestUnit_Core_BaseRepoImpl_Count(t *testing.T) {
	repo := newRepo(t)
	ctx := t.Context()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, repo.DB(ctx).Create(&marker{Name: name}).Error)
	}
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUnit_Core_BaseRepoImpl_TxRollback(t *testing.T) {
	repo := newRepo(t)
	ctx := t.Context()

	boom := errors.New("boom")
	err := repo.Tx(ctx, func(ctxTx context.Context) error {
		_, found := core.FromContext(ctxTx)
		require.True(t, found)
		require.NoError(t, repo.DB(ctxTx).Create(&marker{Name: "rolled back"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, repo.Tx(ctx, func(ctxTx context.Context) error {
		return repo.DB(ctxTx).Create(&marker{Name: "kept"}).Error
	}))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUnit_Core_TranslateError(t *testing.T) {
	assert.NoError(t, core.TranslateError(nil))
	assert.ErrorIs(t, core.TranslateError(gorm.ErrRecordNotFound), types.ErrNotFound)
	assert.ErrorIs(t, core.TranslateError(gorm.ErrDuplicatedKey), types.ErrDuplicateKey)
	assert.ErrorIs(t, core.TranslateError(fmt.Errorf("wrapped: %w", gorm.ErrMissingWhereClause)), types.ErrMissingWhereClause)
	assert.ErrorIs(t, core.TranslateError(gorm.ErrInvalidField), types.ErrInvalidData)

	other := errors.New("other")
	assert.Same(t, other, core.TranslateError(other))
}

func TestUnit_Core_DatabaseNow(t *testing.T) {
	now := core.DatabaseNow()
	assert.Equal(t, now, now.Truncate(1e6))
	assert.Equal(t, "UTC", now.Location().String())
}
