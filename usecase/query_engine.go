package usecase

import (
	"sort"
	"time"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

// Query filters, sorts and truncates records. The input slice is left untouched.
// It returns the page and the number of records that matched before the limit.
func Query(records []model.VideoRecord, f model.QueryFilters, key model.SortKey, limit int, now time.Time) ([]model.VideoRecord, int) {
	out := make([]model.VideoRecord, 0, len(records))
	for i := range records {
		if matches(&records[i], f, now) {
			out = append(out, records[i])
		}
	}

	sortRecords(out, key, f.PreferDomestic)

	total := len(out)
	if limit > 0 && limit < total {
		out = out[:limit]
	}
	return out, total
}

func matches(r *model.VideoRecord, f model.QueryFilters, now time.Time) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Region != "" && r.Region != f.Region {
		return false
	}
	if f.Language != "" && r.Language != f.Language {
		return false
	}
	if f.MinScore > 0 && r.TrendScore < f.MinScore {
		return false
	}
	switch f.Type {
	case model.VideoTypeShort:
		if !r.IsShort() {
			return false
		}
	case model.VideoTypeLong:
		if r.IsShort() {
			return false
		}
	}
	if f.Within > 0 {
		ref := r.CrawledAt
		if r.PublishedAt != nil {
			ref = *r.PublishedAt
		}
		if now.Sub(ref) > f.Within {
			return false
		}
	}
	return true
}

// viewMagnitude prefers the exact count and falls back to the display form.
func viewMagnitude(r *model.VideoRecord) int64 {
	if r.ViewCount > 0 {
		return r.ViewCount
	}
	return ParseFormattedViews(r.ViewsFormatted())
}

func sortRecords(rs []model.VideoRecord, key model.SortKey, preferDomestic bool) {
	less := func(a, b *model.VideoRecord) (bool, bool) {
		switch key {
		case model.SortByViews:
			va, vb := viewMagnitude(a), viewMagnitude(b)
			return va > vb, va != vb
		case model.SortByCrawledAt:
			return a.CrawledAt.After(b.CrawledAt), !a.CrawledAt.Equal(b.CrawledAt)
		default:
			if preferDomestic {
				da, db := a.Language == model.LanguageKorean, b.Language == model.LanguageKorean
				if da != db {
					return da, true
				}
			}
			return a.TrendScore > b.TrendScore, a.TrendScore != b.TrendScore
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if l, decided := less(&rs[i], &rs[j]); decided {
			return l
		}
		return rs[i].ID < rs[j].ID
	})
}

// ParseSortKey maps request input to a sort key, defaulting to trend score.
func ParseSortKey(s string) model.SortKey {
	switch model.SortKey(s) {
	case model.SortByViews, "view_count":
		return model.SortByViews
	case model.SortByCrawledAt, "recent", "latest":
		return model.SortByCrawledAt
	default:
		return model.SortByTrendScore
	}
}
