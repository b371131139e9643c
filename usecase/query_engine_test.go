package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/usecase"
)

func ids(rs []model.VideoRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestQuery_ViewSortUsesMagnitude(t *testing.T) {
	records := []model.VideoRecord{
		{ID: "small", ViewCount: 950_000},
		{ID: "big", ViewCount: 1_200_000},
	}

	out, total := usecase.Query(records, model.QueryFilters{}, model.SortByViews, 0, time.Now())

	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"big", "small"}, ids(out))
	assert.Equal(t, "1.2M", out[0].ViewsFormatted())
	assert.Equal(t, "950.0K", out[1].ViewsFormatted())
}

func TestQuery_ShortBoundary(t *testing.T) {
	records := []model.VideoRecord{
		{ID: "sixty", DurationSeconds: 60},
		{ID: "sixtyone", DurationSeconds: 61},
		{ID: "zero", DurationSeconds: 0},
	}

	shorts, _ := usecase.Query(records, model.QueryFilters{Type: model.VideoTypeShort}, model.SortByTrendScore, 0, time.Now())
	longs, _ := usecase.Query(records, model.QueryFilters{Type: model.VideoTypeLong}, model.SortByTrendScore, 0, time.Now())

	assert.ElementsMatch(t, []string{"sixty", "zero"}, ids(shorts))
	assert.Equal(t, []string{"sixtyone"}, ids(longs))
}

func TestQuery_LimitAppliesAfterSort(t *testing.T) {
	records := []model.VideoRecord{
		{ID: "a", TrendScore: 10},
		{ID: "b", TrendScore: 90},
		{ID: "c", TrendScore: 50},
		{ID: "d", TrendScore: 90},
	}
	before := ids(records)

	out, total := usecase.Query(records, model.QueryFilters{}, model.SortByTrendScore, 2, time.Now())

	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"b", "d"}, ids(out))
	assert.Equal(t, before, ids(records))
}

func TestQuery_Filters(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-10 * 24 * time.Hour)
	records := []model.VideoRecord{
		{ID: "ko-fin", Category: model.CategoryFinance, Language: model.LanguageKorean, Region: model.RegionDomestic, TrendScore: 70, CrawledAt: now},
		{ID: "en-fin", Category: model.CategoryFinance, Language: model.LanguageEnglish, Region: model.RegionForeign, TrendScore: 40, CrawledAt: now},
		{ID: "ko-old", Category: model.CategoryFinance, Language: model.LanguageKorean, Region: model.RegionDomestic, TrendScore: 80, PublishedAt: &old, CrawledAt: now},
		{ID: "ko-food", Category: model.CategoryFood, Language: model.LanguageKorean, Region: model.RegionDomestic, TrendScore: 90, CrawledAt: now},
	}

	out, total := usecase.Query(records, model.QueryFilters{
		Category: model.CategoryFinance,
		Region:   model.RegionDomestic,
		MinScore: 50,
		Within:   7 * 24 * time.Hour,
	}, model.SortByTrendScore, 20, now)

	assert.Equal(t, 1, total)
	require.Len(t, out, 1)
	assert.Equal(t, "ko-fin", out[0].ID)

	out, _ = usecase.Query(records, model.QueryFilters{Language: model.LanguageEnglish}, model.SortByTrendScore, 0, now)
	assert.Equal(t, []string{"en-fin"}, ids(out))
}

func TestQuery_PreferDomesticAndEmpty(t *testing.T) {
	records := []model.VideoRecord{
		{ID: "en", Language: model.LanguageEnglish, TrendScore: 99},
		{ID: "ko", Language: model.LanguageKorean, TrendScore: 10},
	}

	out, _ := usecase.Query(records, model.QueryFilters{PreferDomestic: true}, model.SortByTrendScore, 0, time.Now())
	assert.Equal(t, []string{"ko", "en"}, ids(out))

	out, total := usecase.Query(nil, model.QueryFilters{}, model.SortByTrendScore, 20, time.Now())
	assert.Empty(t, out)
	assert.Zero(t, total)
}

func TestQuery_CrawledAtSort(t *testing.T) {
	now := time.Now()
	records := []model.VideoRecord{
		{ID: "older", CrawledAt: now.Add(-time.Hour)},
		{ID: "newer", CrawledAt: now},
	}
	out, _ := usecase.Query(records, model.QueryFilters{}, usecase.ParseSortKey("recent"), 0, now)
	assert.Equal(t, []string{"newer", "older"}, ids(out))
	assert.Equal(t, model.SortByTrendScore, usecase.ParseSortKey("bogus"))
}
