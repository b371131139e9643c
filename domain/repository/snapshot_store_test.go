package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
)

func TestDecodeSnapshot_Empty(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("  \n")} {
		snap, err := repository.DecodeSnapshot(data)
		assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
		assert.True(t, snap.IsEmpty())
	}
}

func TestDecodeSnapshot_Corrupt(t *testing.T) {
	snap, err := repository.DecodeSnapshot([]byte(`{"videos":`))
	assert.ErrorIs(t, err, repository.ErrSnapshotCorrupt)
	require.NotNil(t, snap)
	assert.NotNil(t, snap.Records)
}

func TestDecodeSnapshot_RecomputesCount(t *testing.T) {
	raw, err := repository.EncodeSnapshot(nil)
	require.NoError(t, err)
	snap, err := repository.DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.RecordCount)
	assert.NotNil(t, snap.Records)
}
