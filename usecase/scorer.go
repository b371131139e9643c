package usecase

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

const (
	maxViewPoints    = 40
	viewsPerPoint    = 100_000
	maxLikePoints    = 25
	maxCommentPoints = 15
	maxHeuristic     = 30
	maxTrendScore    = 100
)

var (
	digitPattern    = regexp.MustCompile(`\d`)
	hookWordPattern = regexp.MustCompile(`(?i)비법|꿀팁|방법|공개|진짜|절대|secret|\btips?\b`)
)

var recencyBuckets = []struct {
	within time.Duration
	points int
}{
	{24 * time.Hour, 20},
	{7 * 24 * time.Hour, 15},
	{30 * 24 * time.Hour, 10},
	{90 * 24 * time.Hour, 5},
}

// TrendScore ranks a record in [0,100].
//
// View volume always counts. Engagement and recency count when the source supplied
// them; records with neither (scraped titles) get a coarser title heuristic instead.
func TrendScore(rec model.VideoRecord) int {
	score := viewPoints(rec.ViewCount)

	hasEngagement := rec.HasEngagement() && rec.ViewCount > 0
	if hasEngagement {
		score += engagementPoints(rec)
	}
	if rec.PublishedAt != nil {
		score += recencyPoints(rec.CrawledAt.Sub(*rec.PublishedAt))
	}
	if !hasEngagement && rec.PublishedAt == nil {
		score += titleHeuristicPoints(rec.Title)
	}
	return clampScore(score)
}

func viewPoints(views int64) int {
	if views <= 0 {
		return 0
	}
	p := views / viewsPerPoint
	if p > maxViewPoints {
		return maxViewPoints
	}
	return int(p)
}

func engagementPoints(rec model.VideoRecord) int {
	views := float64(rec.ViewCount)
	points := 0
	if rec.LikeCount != nil {
		likePct := float64(*rec.LikeCount) / views * 100
		points += ratioPoints(likePct*5, maxLikePoints)
	}
	if rec.CommentCount != nil {
		commentPct := float64(*rec.CommentCount) / views * 100
		points += ratioPoints(commentPct*30, maxCommentPoints)
	}
	return points
}

// ratioPoints caps before converting so huge ratios cannot overflow int.
func ratioPoints(p float64, limit int) int {
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	if p >= float64(limit) {
		return limit
	}
	return int(p)
}

func recencyPoints(age time.Duration) int {
	if age < 0 {
		age = 0
	}
	for _, b := range recencyBuckets {
		if age <= b.within {
			return b.points
		}
	}
	return 0
}

func titleHeuristicPoints(title string) int {
	points := 0
	if utf8.RuneCountInString(title) > 20 {
		points += 8
	}
	if digitPattern.MatchString(title) {
		points += 8
	}
	if strings.ContainsAny(title, "!?") {
		points += 6
	}
	hooks := len(hookWordPattern.FindAllString(title, -1))
	points += capPoints(hooks*4, 8)
	return capPoints(points, maxHeuristic)
}

func capPoints(p, limit int) int {
	if p > limit {
		return limit
	}
	if p < 0 {
		return 0
	}
	return p
}

func clampScore(s int) int {
	return capPoints(s, maxTrendScore)
}
