package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

// snapshotRowID pins the single row the snapshot lives in.
const snapshotRowID = 1

// EnsureTrendSnapshotSchema creates the snapshot table if not exists
func EnsureTrendSnapshotSchema(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	ddl := `CREATE TABLE IF NOT EXISTS trend_snapshot (
        id SMALLINT PRIMARY KEY,
        data JSONB NOT NULL,
        record_count INTEGER NOT NULL,
        source TEXT NOT NULL,
        last_updated TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create trend_snapshot table: %w", err)
	}
	return nil
}

// TrendSnapshotRepository stores the snapshot as one JSONB row in PostgreSQL.
type TrendSnapshotRepository struct {
	db *sql.DB
}

func NewTrendSnapshotRepository(db *sql.DB) *TrendSnapshotRepository {
	return &TrendSnapshotRepository{db: db}
}

func (r *TrendSnapshotRepository) Name() string { return "postgres" }

func (r *TrendSnapshotRepository) Read(ctx context.Context) (*model.CacheSnapshot, error) {
	if r.db == nil {
		return model.EmptySnapshot(), repository.ErrSnapshotNotFound
	}
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM trend_snapshot WHERE id = $1`, snapshotRowID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EmptySnapshot(), repository.ErrSnapshotNotFound
		}
		return model.EmptySnapshot(), fmt.Errorf("failed to read trend snapshot: %w", err)
	}
	snap, err := repository.DecodeSnapshot(raw)
	if errors.Is(err, repository.ErrSnapshotCorrupt) {
		logger.GetLogger().WithField("error", err).Warn("Stored trend snapshot is corrupt")
	}
	return snap, err
}

// Write replaces the row in one statement, so readers see the old or the new snapshot only.
func (r *TrendSnapshotRepository) Write(ctx context.Context, snapshot *model.CacheSnapshot) error {
	if r.db == nil {
		return fmt.Errorf("db is nil")
	}
	raw, err := repository.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	q := `INSERT INTO trend_snapshot(id, data, record_count, source, last_updated, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6)
		  ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, record_count=EXCLUDED.record_count, source=EXCLUDED.source, last_updated=EXCLUDED.last_updated, updated_at=EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, q, snapshotRowID, raw, snapshot.RecordCount, snapshot.Source, snapshot.LastUpdated.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write trend snapshot: %w", err)
	}
	return nil
}
