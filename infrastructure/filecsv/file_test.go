package filecsv

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

func TestWriteTrends(t *testing.T) {
	likes := int64(12)
	crawled := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	records := []model.VideoRecord{
		{ID: "a", Title: "comma, \"quoted\"", ViewCount: 1_200_000, LikeCount: &likes, DurationSeconds: 30,
			Category: model.CategoryFinance, Keywords: []string{"투자", "AI"}, TrendScore: 42, CrawledAt: crawled, SourceName: "api"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTrends(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, trendHeader, rows[0])
	row := rows[1]
	assert.Equal(t, "comma, \"quoted\"", row[1])
	assert.Equal(t, "1.2M", row[5])
	assert.Equal(t, "12", row[6])
	assert.Equal(t, "", row[7])
	assert.Equal(t, "true", row[9])
	assert.Equal(t, "투자|AI", row[14])
	assert.Equal(t, "2025-02-01T00:00:00Z", row[16])
}

func TestNewFile_CreatesAndTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")

	f, err := NewFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("old content that is long")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = NewFile(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
