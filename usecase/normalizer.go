package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// Normalize converts a raw adapter item into a VideoRecord.
// It returns nil when the item has no id or title; callers drop those silently.
func Normalize(raw model.RawItem, sourceName string, crawledAt time.Time) *model.VideoRecord {
	id := strings.TrimSpace(raw.ID)
	title := strings.TrimSpace(raw.Title)
	if id == "" || title == "" {
		return nil
	}

	rec := &model.VideoRecord{
		ID:              id,
		Title:           title,
		URL:             strings.TrimSpace(raw.URL),
		ThumbnailURL:    strings.TrimSpace(raw.ThumbnailURL),
		ChannelName:     strings.TrimSpace(raw.ChannelName),
		ViewCount:       normalizeViews(raw),
		LikeCount:       nonNegative(raw.LikeCount),
		CommentCount:    nonNegative(raw.CommentCount),
		DurationSeconds: normalizeDuration(raw),
		CategoryID:      raw.CategoryID,
		PublishedAt:     normalizePublishedAt(raw),
		CrawledAt:       crawledAt.UTC(),
		SourceName:      sourceName,
		Keywords:        []string{},
		Category:        model.CategoryGeneral,
	}
	if rec.URL == "" {
		rec.URL = watchURLPrefix + id
	}
	return rec
}

// NormalizeBatch normalizes every item and reports how many were dropped.
func NormalizeBatch(items []model.RawItem, sourceName string, crawledAt time.Time) ([]model.VideoRecord, int) {
	out := make([]model.VideoRecord, 0, len(items))
	dropped := 0
	for _, it := range items {
		rec := Normalize(it, sourceName, crawledAt)
		if rec == nil {
			dropped++
			continue
		}
		out = append(out, *rec)
	}
	return out, dropped
}

func nonNegative(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	if n < 0 {
		n = 0
	}
	return &n
}

func normalizeViews(raw model.RawItem) int64 {
	if raw.ViewCount != nil && *raw.ViewCount > 0 {
		return *raw.ViewCount
	}
	if raw.ViewText != "" {
		return ParseFormattedViews(raw.ViewText)
	}
	return 0
}

func normalizeDuration(raw model.RawItem) int64 {
	if raw.DurationSeconds != nil && *raw.DurationSeconds > 0 {
		return int64(math.Round(*raw.DurationSeconds))
	}
	return ParseDuration(raw.Duration)
}

func normalizePublishedAt(raw model.RawItem) *time.Time {
	if t, ok := ParsePublishedAt(raw.PublishedAt); ok {
		return &t
	}
	if raw.Timestamp != nil && *raw.Timestamp > 0 {
		t := time.Unix(*raw.Timestamp, 0).UTC()
		return &t
	}
	return nil
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseDuration understands ISO-8601 durations ("PT1M5S") and clock strings ("1:05", "1:02:03").
// Anything else yields 0.
func ParseDuration(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.HasPrefix(s, "P") {
		m := isoDurationPattern.FindStringSubmatch(s)
		if m == nil {
			return 0
		}
		var total int64
		for i, mult := range []int64{86400, 3600, 60, 1} {
			if m[i+1] == "" {
				continue
			}
			n, err := strconv.ParseInt(m[i+1], 10, 64)
			if err != nil {
				return 0
			}
			total += n * mult
		}
		return total
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102",
}

// ParsePublishedAt accepts RFC3339, ISO dates and yt-dlp's YYYYMMDD.
func ParsePublishedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var viewNumberPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([KMBkmb]|천|만|억)?`)

var viewSuffixes = map[string]float64{
	"k": 1e3,
	"m": 1e6,
	"b": 1e9,
	"천": 1e3,
	"만": 1e4,
	"억": 1e8,
}

// ParseFormattedViews turns display strings ("1.2M", "950K", "1,234 views", "조회수 12만회")
// back into a magnitude. Unparseable input is 0.
func ParseFormattedViews(s string) int64 {
	m := viewNumberPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	if mult, ok := viewSuffixes[strings.ToLower(m[2])]; ok {
		n *= mult
	}
	return int64(math.Round(n))
}
