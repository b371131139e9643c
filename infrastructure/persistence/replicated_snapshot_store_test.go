package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
)

type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) Name() string { return "mock" }

func (m *MockSnapshotStore) Read(ctx context.Context) (*model.CacheSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(*model.CacheSnapshot), args.Error(1)
}

func (m *MockSnapshotStore) Write(ctx context.Context, snapshot *model.CacheSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func TestReplicatedSnapshotStore_WriteFansOut(t *testing.T) {
	primary := NewFileSnapshotStore(filepath.Join(t.TempDir(), "primary.json"))
	mirror := new(MockSnapshotStore)
	snap := sampleSnapshot()
	mirror.On("Write", mock.Anything, snap).Return(errors.New("mirror down"))

	store := NewReplicatedSnapshotStore(primary, mirror)

	require.NoError(t, store.Write(context.Background(), snap))
	mirror.AssertExpectations(t)
	assert.Equal(t, "file,mock", store.Name())
}

func TestReplicatedSnapshotStore_PrimaryFailureSkipsMirrors(t *testing.T) {
	primary := new(MockSnapshotStore)
	mirror := new(MockSnapshotStore)
	primary.On("Write", mock.Anything, mock.Anything).Return(errors.New("primary down"))

	err := NewReplicatedSnapshotStore(primary, mirror).Write(context.Background(), sampleSnapshot())

	assert.ErrorContains(t, err, "primary down")
	mirror.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestReplicatedSnapshotStore_ReadFallsBackToMirror(t *testing.T) {
	primary := new(MockSnapshotStore)
	empty := new(MockSnapshotStore)
	full := new(MockSnapshotStore)
	primary.On("Read", mock.Anything).Return(model.EmptySnapshot(), repository.ErrSnapshotCorrupt)
	empty.On("Read", mock.Anything).Return(model.EmptySnapshot(), repository.ErrSnapshotNotFound)
	full.On("Read", mock.Anything).Return(sampleSnapshot(), nil)

	snap, err := NewReplicatedSnapshotStore(primary, empty, full).Read(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, snap.RecordCount)
}

func TestReplicatedSnapshotStore_ReadNothingAnywhere(t *testing.T) {
	primary := new(MockSnapshotStore)
	mirror := new(MockSnapshotStore)
	primary.On("Read", mock.Anything).Return(model.EmptySnapshot(), repository.ErrSnapshotNotFound)
	mirror.On("Read", mock.Anything).Return(model.EmptySnapshot(), repository.ErrSnapshotNotFound)

	snap, err := NewReplicatedSnapshotStore(primary, mirror).Read(context.Background())

	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	assert.True(t, snap.IsEmpty())
}

func TestNewReplicatedSnapshotStore_NoMirrors(t *testing.T) {
	primary := NewFileSnapshotStore("x.json")
	assert.Same(t, primary, NewReplicatedSnapshotStore(primary))
}
