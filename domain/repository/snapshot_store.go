package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

var (
	// ErrSnapshotNotFound means nothing has been written yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrSnapshotCorrupt means stored data exists but cannot be decoded.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// ISnapshotStore persists the whole cache snapshot as one unit.
type ISnapshotStore interface {
	// Read always returns a usable snapshot. On missing or corrupt data it returns
	// model.EmptySnapshot() together with ErrSnapshotNotFound or ErrSnapshotCorrupt.
	Read(ctx context.Context) (*model.CacheSnapshot, error)
	// Write replaces the stored snapshot atomically.
	Write(ctx context.Context, snapshot *model.CacheSnapshot) error
	Name() string
}

// DecodeSnapshot parses a stored snapshot. Undecodable data yields an empty
// snapshot and ErrSnapshotCorrupt so callers can keep serving.
func DecodeSnapshot(data []byte) (*model.CacheSnapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return model.EmptySnapshot(), ErrSnapshotNotFound
	}
	var snap model.CacheSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.EmptySnapshot(), fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if snap.Records == nil {
		snap.Records = []model.VideoRecord{}
	}
	snap.RecordCount = len(snap.Records)
	return &snap, nil
}

// EncodeSnapshot is the stored form shared by every backend.
func EncodeSnapshot(snap *model.CacheSnapshot) ([]byte, error) {
	if snap == nil {
		snap = model.EmptySnapshot()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}
