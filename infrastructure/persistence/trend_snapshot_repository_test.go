package persistence

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
)

func TestTrendSnapshotRepository_Read(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	raw, err := repository.EncodeSnapshot(sampleSnapshot())
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM trend_snapshot WHERE id = $1`)).
		WithArgs(snapshotRowID).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))

	snap, err := NewTrendSnapshotRepository(db).Read(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, snap.RecordCount)
	assert.Equal(t, "youtube_api", snap.Source)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrendSnapshotRepository_ReadMissingAndCorrupt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTrendSnapshotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM trend_snapshot`)).WillReturnError(sql.ErrNoRows)
	snap, err := repo.Read(context.Background())
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	assert.True(t, snap.IsEmpty())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM trend_snapshot`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`not json`)))
	snap, err = repo.Read(context.Background())
	assert.ErrorIs(t, err, repository.ErrSnapshotCorrupt)
	assert.True(t, snap.IsEmpty())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrendSnapshotRepository_Write(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	snap := sampleSnapshot()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO trend_snapshot(id, data, record_count, source, last_updated, updated_at)`)).
		WithArgs(snapshotRowID, sqlmock.AnyArg(), 1, "youtube_api", snap.LastUpdated, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewTrendSnapshotRepository(db).Write(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrendSnapshotRepository_WriteError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO trend_snapshot`)).WillReturnError(errors.New("disk full"))

	err = NewTrendSnapshotRepository(db).Write(context.Background(), sampleSnapshot())
	assert.ErrorContains(t, err, "disk full")
}

func TestTrendSnapshotRepository_NilDB(t *testing.T) {
	repo := NewTrendSnapshotRepository(nil)
	snap, err := repo.Read(context.Background())
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	assert.True(t, snap.IsEmpty())
	assert.Error(t, repo.Write(context.Background(), sampleSnapshot()))
}

func TestTrendSnapshotRepositoryMSSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTrendSnapshotRepositoryMSSQL(db)

	snap := sampleSnapshot()
	mock.ExpectExec(regexp.QuoteMeta(`MERGE dbo.trend_snapshot AS t`)).
		WithArgs(snapshotRowID, sqlmock.AnyArg(), 1, "youtube_api", snap.LastUpdated, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Write(context.Background(), snap))

	raw, err := repository.EncodeSnapshot(snap)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM dbo.trend_snapshot WHERE id=@p1`)).
		WithArgs(snapshotRowID).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(string(raw)))
	got, err := repo.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", got.Records[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTrendSnapshotSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS trend_snapshot`)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureTrendSnapshotSchema(db))

	mock.ExpectExec(regexp.QuoteMeta(`IF NOT EXISTS`)).WillReturnError(errors.New("denied"))
	assert.Error(t, EnsureTrendSnapshotSchemaMSSQL(db))

	assert.Error(t, EnsureTrendSnapshotSchema(nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
