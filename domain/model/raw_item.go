package model

// RawItem is what a source adapter hands back before normalization.
// Every field may be missing; sources differ wildly in what they expose.
type RawItem struct {
	ID           string
	Title        string
	Description  string
	ChannelName  string
	ThumbnailURL string
	URL          string

	ViewCount *int64
	// ViewText is the scraped display form, e.g. "1.2M views" or "조회수 12만회".
	ViewText string

	LikeCount    *int64
	CommentCount *int64

	// Duration is ISO-8601 ("PT1M5S") or a clock string ("1:05").
	Duration        string
	DurationSeconds *float64

	// PublishedAt is RFC3339 or yt-dlp's YYYYMMDD.
	PublishedAt string
	Timestamp   *int64

	Tags       []string
	CategoryID string
	RegionCode string
}

// FetchParams carries origin specific hints to an adapter.
type FetchParams struct {
	RegionCodes []string
	CategoryIDs []string
	Keywords    []string
}
