package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/cache"
)

func TestRedisSnapshotStore_WriteThenRead(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := cache.NewRedisSnapshotStore(db, "", 0)

	snap := model.NewCacheSnapshot([]model.VideoRecord{{ID: "v1", Title: "t"}}, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), "trending_page")
	data, err := repository.EncodeSnapshot(snap)
	require.NoError(t, err)

	mock.ExpectSet(cache.DefaultSnapshotKey, data, 0).SetVal("OK")
	require.NoError(t, store.Write(context.Background(), snap))

	mock.ExpectGet(cache.DefaultSnapshotKey).SetVal(string(data))
	got, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trending_page", got.Source)
	assert.Equal(t, 1, got.RecordCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSnapshotStore_Missing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("k").RedisNil()

	snap, err := cache.NewRedisSnapshotStore(db, "k", time.Hour).Read(context.Background())

	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	assert.True(t, snap.IsEmpty())
}

func TestRedisSnapshotStore_Corrupt(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("k").SetVal("{{{")

	snap, err := cache.NewRedisSnapshotStore(db, "k", 0).Read(context.Background())

	assert.ErrorIs(t, err, repository.ErrSnapshotCorrupt)
	assert.True(t, snap.IsEmpty())
}

func TestRedisSnapshotStore_WriteError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectSet("k", `.*`, 0).SetErr(errors.New("READONLY"))

	err := cache.NewRedisSnapshotStore(db, "k", 0).Write(context.Background(), model.EmptySnapshot())

	assert.ErrorContains(t, err, "READONLY")
}

func TestRedisSnapshotStore_NilClient(t *testing.T) {
	store := cache.NewRedisSnapshotStore(nil, "", 0)
	_, err := store.Read(context.Background())
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	assert.Error(t, store.Write(context.Background(), model.EmptySnapshot()))
}
