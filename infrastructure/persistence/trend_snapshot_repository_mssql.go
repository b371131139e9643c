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

// EnsureTrendSnapshotSchemaMSSQL creates the snapshot table on MSSQL if not exists
func EnsureTrendSnapshotSchemaMSSQL(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.trend_snapshot') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.trend_snapshot (
        id SMALLINT NOT NULL PRIMARY KEY,
        data NVARCHAR(MAX) NOT NULL,
        record_count INT NOT NULL,
        source NVARCHAR(256) NOT NULL,
        last_updated DATETIMEOFFSET NOT NULL,
        updated_at DATETIMEOFFSET NOT NULL
    );
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create trend_snapshot table (mssql): %w", err)
	}
	return nil
}

// TrendSnapshotRepositoryMSSQL implements ISnapshotStore on Azure SQL / SQL Server
type TrendSnapshotRepositoryMSSQL struct {
	db *sql.DB
}

func NewTrendSnapshotRepositoryMSSQL(db *sql.DB) *TrendSnapshotRepositoryMSSQL {
	return &TrendSnapshotRepositoryMSSQL{db: db}
}

func (r *TrendSnapshotRepositoryMSSQL) Name() string { return "mssql" }

func (r *TrendSnapshotRepositoryMSSQL) Read(ctx context.Context) (*model.CacheSnapshot, error) {
	if r.db == nil {
		return model.EmptySnapshot(), repository.ErrSnapshotNotFound
	}
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM dbo.trend_snapshot WHERE id=@p1`, snapshotRowID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EmptySnapshot(), repository.ErrSnapshotNotFound
		}
		return model.EmptySnapshot(), fmt.Errorf("failed to read trend snapshot (mssql): %w", err)
	}
	snap, err := repository.DecodeSnapshot([]byte(raw))
	if errors.Is(err, repository.ErrSnapshotCorrupt) {
		logger.GetLogger().WithField("error", err).Warn("Stored trend snapshot is corrupt")
	}
	return snap, err
}

func (r *TrendSnapshotRepositoryMSSQL) Write(ctx context.Context, snapshot *model.CacheSnapshot) error {
	if r.db == nil {
		return fmt.Errorf("db is nil")
	}
	raw, err := repository.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	q := `MERGE dbo.trend_snapshot AS t
USING (SELECT @p1 AS id) AS s ON t.id = s.id
WHEN MATCHED THEN UPDATE SET data=@p2, record_count=@p3, source=@p4, last_updated=@p5, updated_at=@p6
WHEN NOT MATCHED THEN INSERT (id, data, record_count, source, last_updated, updated_at) VALUES (@p1,@p2,@p3,@p4,@p5,@p6);`
	_, err = r.db.ExecContext(ctx, q, snapshotRowID, string(raw), snapshot.RecordCount, snapshot.Source, snapshot.LastUpdated.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write trend snapshot (mssql): %w", err)
	}
	return nil
}
