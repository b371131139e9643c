package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ShortMaxDurationSeconds is the longest duration still classified as a Short.
const ShortMaxDurationSeconds = 60

// Category is the content bucket assigned by the classifier.
type Category string

const (
	CategorySideIncome      Category = "side_income"
	CategoryFinance         Category = "finance"
	CategoryTech            Category = "tech"
	CategoryMarketing       Category = "marketing"
	CategorySelfImprovement Category = "self_improvement"
	CategoryEducation       Category = "education"
	CategoryFood            Category = "food"
	CategoryGaming          Category = "gaming"
	CategoryFitness         Category = "fitness"
	CategoryMusic           Category = "music"
	CategoryEntertainment   Category = "entertainment"
	CategoryVlog            Category = "vlog"
	CategoryGeneral         Category = "general"
)

// AllCategories lists every category in classifier priority order, general last.
var AllCategories = []Category{
	CategorySideIncome,
	CategoryFinance,
	CategoryTech,
	CategoryMarketing,
	CategorySelfImprovement,
	CategoryEducation,
	CategoryFood,
	CategoryGaming,
	CategoryFitness,
	CategoryMusic,
	CategoryEntertainment,
	CategoryVlog,
	CategoryGeneral,
}

var categoryLabels = map[Category]string{
	CategorySideIncome:      "창업/부업",
	CategoryFinance:         "재테크/금융",
	CategoryTech:            "과학기술",
	CategoryMarketing:       "마케팅/비즈니스",
	CategorySelfImprovement: "자기계발",
	CategoryEducation:       "교육/학습",
	CategoryFood:            "요리/음식",
	CategoryGaming:          "게임",
	CategoryFitness:         "운동/건강",
	CategoryMusic:           "음악",
	CategoryEntertainment:   "엔터테인먼트",
	CategoryVlog:            "브이로그/일상",
	CategoryGeneral:         "일반",
}

// Label returns the display name shown to planners.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

type Language string

const (
	LanguageKorean   Language = "ko"
	LanguageJapanese Language = "ja"
	LanguageChinese  Language = "zh"
	LanguageEnglish  Language = "en"
	LanguageOther    Language = "other"
)

var AllLanguages = []Language{LanguageKorean, LanguageJapanese, LanguageChinese, LanguageEnglish, LanguageOther}

type Region string

const (
	RegionDomestic Region = "domestic"
	RegionForeign  Region = "foreign"
)

var AllRegions = []Region{RegionDomestic, RegionForeign}

// VideoRecord is the canonical shape of one trending video.
type VideoRecord struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	URL             string     `json:"url,omitempty"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	ChannelName     string     `json:"channel_name,omitempty"`
	ViewCount       int64      `json:"view_count"`
	LikeCount       *int64     `json:"like_count,omitempty"`
	CommentCount    *int64     `json:"comment_count,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
	CategoryID      string     `json:"category_id,omitempty"`
	Category        Category   `json:"category"`
	Language        Language   `json:"language"`
	Region          Region     `json:"region"`
	Keywords        []string   `json:"keywords"`
	TrendScore      int        `json:"trend_score"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CrawledAt       time.Time  `json:"crawled_at"`
	SourceName      string     `json:"source_name"`
}

// IsShort is derived from the duration on every call.
func (v VideoRecord) IsShort() bool {
	return v.DurationSeconds <= ShortMaxDurationSeconds
}

func (v VideoRecord) ViewsFormatted() string {
	return FormatViews(v.ViewCount)
}

// HasEngagement reports whether like or comment counts came from the source.
func (v VideoRecord) HasEngagement() bool {
	return v.LikeCount != nil || v.CommentCount != nil
}

// MarshalJSON adds the derived fields for consumers. They are ignored on decode.
func (v VideoRecord) MarshalJSON() ([]byte, error) {
	type alias VideoRecord
	return json.Marshal(struct {
		alias
		IsShort        bool   `json:"is_short"`
		ViewsFormatted string `json:"views_formatted"`
	}{
		alias:          alias(v),
		IsShort:        v.IsShort(),
		ViewsFormatted: v.ViewsFormatted(),
	})
}

// FormatViews renders a view count the way the planner UI shows it: 1.2M, 950.0K, 999.
func FormatViews(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// CacheSnapshot is one complete set of cached records. Once published it is never mutated.
type CacheSnapshot struct {
	Records     []VideoRecord `json:"videos"`
	LastUpdated time.Time     `json:"last_updated"`
	RecordCount int           `json:"count"`
	Source      string        `json:"source"`
}

// EmptySnapshot is the explicit "no data" state.
func EmptySnapshot() *CacheSnapshot {
	return &CacheSnapshot{Records: []VideoRecord{}}
}

func NewCacheSnapshot(records []VideoRecord, lastUpdated time.Time, source string) *CacheSnapshot {
	return &CacheSnapshot{
		Records:     records,
		LastUpdated: lastUpdated,
		RecordCount: len(records),
		Source:      source,
	}
}

func (s *CacheSnapshot) IsEmpty() bool {
	return s == nil || len(s.Records) == 0
}

// Age is the time elapsed since the snapshot was written. An empty snapshot has no age.
func (s *CacheSnapshot) Age(now time.Time) time.Duration {
	if s.IsEmpty() || s.LastUpdated.IsZero() {
		return 0
	}
	return now.Sub(s.LastUpdated)
}
