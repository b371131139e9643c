package model

import "time"

type VideoType string

const (
	VideoTypeAll   VideoType = ""
	VideoTypeShort VideoType = "short"
	VideoTypeLong  VideoType = "long"
)

type SortKey string

const (
	SortByTrendScore SortKey = "trend_score"
	SortByViews      SortKey = "views"
	SortByCrawledAt  SortKey = "crawled_at"
)

// QueryFilters are conjunctive; zero values disable a filter.
type QueryFilters struct {
	Category       Category
	Region         Region
	Language       Language
	MinScore       int
	Type           VideoType
	Within         time.Duration
	PreferDomestic bool
}
