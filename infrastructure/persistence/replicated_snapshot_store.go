package persistence

import (
	"context"
	"strings"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

// ReplicatedSnapshotStore writes to a primary store and copies every write to mirrors.
// Mirror failures are logged and never fail the write.
type ReplicatedSnapshotStore struct {
	primary repository.ISnapshotStore
	mirrors []repository.ISnapshotStore
}

func NewReplicatedSnapshotStore(primary repository.ISnapshotStore, mirrors ...repository.ISnapshotStore) repository.ISnapshotStore {
	if len(mirrors) == 0 {
		return primary
	}
	return &ReplicatedSnapshotStore{primary: primary, mirrors: mirrors}
}

func (s *ReplicatedSnapshotStore) Name() string {
	names := []string{s.primary.Name()}
	for _, m := range s.mirrors {
		names = append(names, m.Name())
	}
	return strings.Join(names, ",")
}

// Read prefers the primary. When it has nothing usable the first mirror holding data wins.
func (s *ReplicatedSnapshotStore) Read(ctx context.Context) (*model.CacheSnapshot, error) {
	snap, err := s.primary.Read(ctx)
	if err == nil && !snap.IsEmpty() {
		return snap, nil
	}
	for _, m := range s.mirrors {
		ms, merr := m.Read(ctx)
		if merr != nil || ms.IsEmpty() {
			continue
		}
		logger.GetLogger().WithFields(map[string]interface{}{
			"primary": s.primary.Name(),
			"mirror":  m.Name(),
			"error":   err,
		}).Warn("Primary snapshot store empty, serving mirror copy")
		return ms, nil
	}
	return snap, err
}

func (s *ReplicatedSnapshotStore) Write(ctx context.Context, snapshot *model.CacheSnapshot) error {
	if err := s.primary.Write(ctx, snapshot); err != nil {
		return err
	}
	for _, m := range s.mirrors {
		if err := m.Write(ctx, snapshot); err != nil {
			logger.GetLogger().WithField("mirror", m.Name()).WithField("error", err).Warn("Mirror snapshot write failed")
		}
	}
	return nil
}
