package filecsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

var trendHeader = []string{
	"id", "title", "channel", "url", "views", "views_formatted", "likes", "comments",
	"duration_seconds", "is_short", "category", "language", "region", "trend_score",
	"keywords", "published_at", "crawled_at", "source",
}

// NewFile creates (or truncates) the export file at path.
func NewFile(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while open file")
		return nil, err
	}

	return file, nil
}

// WriteTrends writes records as CSV with a header row.
func WriteTrends(w io.Writer, records []model.VideoRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(trendHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(trendRow(r)); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func trendRow(r model.VideoRecord) []string {
	published := ""
	if r.PublishedAt != nil {
		published = r.PublishedAt.Format(time.RFC3339)
	}
	return []string{
		r.ID,
		r.Title,
		r.ChannelName,
		r.URL,
		strconv.FormatInt(r.ViewCount, 10),
		r.ViewsFormatted(),
		optionalInt(r.LikeCount),
		optionalInt(r.CommentCount),
		strconv.FormatInt(r.DurationSeconds, 10),
		strconv.FormatBool(r.IsShort()),
		string(r.Category),
		string(r.Language),
		string(r.Region),
		strconv.Itoa(r.TrendScore),
		strings.Join(r.Keywords, "|"),
		published,
		r.CrawledAt.Format(time.RFC3339),
		r.SourceName,
	}
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
