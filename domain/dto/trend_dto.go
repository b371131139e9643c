package dto

import (
	"time"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

// TrendQueryRequest is the query string of GET /api/trends
type TrendQueryRequest struct {
	Category       string `form:"category" url:"category,omitempty"`
	Region         string `form:"region" url:"region,omitempty"`
	Language       string `form:"language" url:"language,omitempty"`
	MinScore       int    `form:"min_score" url:"min_score,omitempty" binding:"omitempty,min=0,max=100"`
	Type           string `form:"type" url:"type,omitempty" binding:"omitempty,oneof=short long all"`
	TimeFilter     string `form:"time_filter" url:"time_filter,omitempty" binding:"omitempty,oneof=all 24h 7d 30d"`
	SortBy         string `form:"sort_by" url:"sort_by,omitempty"`
	Limit          int    `form:"limit" url:"limit,omitempty" binding:"omitempty,min=1,max=500"`
	PreferDomestic bool   `form:"prefer_domestic" url:"prefer_domestic,omitempty"`
}

// TrendQueryMeta describes where the data came from
type TrendQueryMeta struct {
	Count       int       `json:"count"`
	TotalCount  int       `json:"total_count"`
	LastUpdated time.Time `json:"last_updated"`
	Source      string    `json:"source"`
	Origin      string    `json:"origin,omitempty"`
	Refreshing  bool      `json:"refreshing"`
}

// TrendQueryResponse is the body of GET /api/trends
type TrendQueryResponse struct {
	Videos []model.VideoRecord `json:"videos"`
	Meta   TrendQueryMeta      `json:"meta"`
}

type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type ScoreRange struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
}

// FilterOptionsResponse lists what the planner UI can filter on
type FilterOptionsResponse struct {
	Categories  []FilterOption `json:"categories"`
	Regions     []FilterOption `json:"regions"`
	Languages   []FilterOption `json:"languages"`
	SortOptions []FilterOption `json:"sort_options"`
	VideoTypes  []FilterOption `json:"video_types"`
	TimeFilters []FilterOption `json:"time_filters"`
	TrendScore  ScoreRange     `json:"trend_score_range"`
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type CategoryCount struct {
	Category model.Category `json:"category"`
	Label    string         `json:"label"`
	Count    int            `json:"count"`
}

// KeywordTrendsResponse is the body of GET /api/trends/keywords
type KeywordTrendsResponse struct {
	Keywords      []KeywordCount  `json:"trending_keywords"`
	HotCategories []CategoryCount `json:"hot_categories"`
	TotalVideos   int             `json:"total_videos"`
	AnalyzedAt    time.Time       `json:"analyzed_at"`
}

// RefreshRequest is the body of POST /api/admin/refresh
type RefreshRequest struct {
	Force bool `json:"force"`
	Wait  bool `json:"wait"`
}

// TrendStatusResponse is the body of GET /api/trends/status
type TrendStatusResponse struct {
	model.RefreshStatus
	Age        string             `json:"age"`
	NextCheck  string             `json:"next_check"`
	RecentRuns []model.RefreshRun `json:"recent_runs,omitempty"`
}
