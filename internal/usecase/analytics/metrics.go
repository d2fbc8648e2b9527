package analytics

import (
	"fmt"
	"sort"

	"social-pulse/internal/domain"
)

// RateFunc вычисляет коэффициент вовлечённости поста по правилам платформы.
type RateFunc func(domain.Post) float64

// Metric задаёт показатель для ранжирования постов.
type Metric string

const (
	MetricEngagement Metric = "engagement"
	MetricLikes      Metric = "likes"
	MetricComments   Metric = "comments"
	MetricShares     Metric = "shares"
	MetricViews      Metric = "views"
)

// ParseMetric приводит строку к Metric; пустая строка — вовлечённость.
func ParseMetric(raw string) (Metric, error) {
	switch m := Metric(raw); m {
	case "":
		return MetricEngagement, nil
	case MetricEngagement, MetricLikes, MetricComments, MetricShares, MetricViews:
		return m, nil
	}
	return "", fmt.Errorf("неизвестный показатель %q", raw)
}

// Engagement — сумма реакций, комментариев и репостов.
func Engagement(p domain.Post) int {
	e := p.Engagement
	return e.TotalReactions() + e.Comments + e.Shares
}

func metricValue(p domain.Post, m Metric) int {
	switch m {
	case MetricLikes:
		return p.Engagement.TotalReactions()
	case MetricComments:
		return p.Engagement.Comments
	case MetricShares:
		return p.Engagement.Shares
	case MetricViews:
		return p.Engagement.Views
	}
	return Engagement(p)
}

// Summary — итоговые и средние показатели набора постов.
type Summary struct {
	Posts             int     `json:"posts"`
	Likes             int     `json:"likes"`
	Comments          int     `json:"comments"`
	Shares            int     `json:"shares"`
	Views             int     `json:"views"`
	Engagement        int     `json:"engagement"`
	AvgLikes          float64 `json:"avg_likes"`
	AvgComments       float64 `json:"avg_comments"`
	AvgShares         float64 `json:"avg_shares"`
	AvgEngagement     float64 `json:"avg_engagement"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
	CommentsFetched   int     `json:"comments_fetched"`
}

// Summarize считает суммы и средние. rate может быть nil.
func Summarize(posts []domain.Post, rate RateFunc) Summary {
	s := Summary{Posts: len(posts)}
	if len(posts) == 0 {
		return s
	}
	var rateSum float64
	for _, p := range posts {
		s.Likes += p.Engagement.TotalReactions()
		s.Comments += p.Engagement.Comments
		s.Shares += p.Engagement.Shares
		s.Views += p.Engagement.Views
		s.CommentsFetched += len(p.Comments)
		if rate != nil {
			rateSum += rate(p)
		}
	}
	s.Engagement = s.Likes + s.Comments + s.Shares
	n := float64(len(posts))
	s.AvgLikes = round2(float64(s.Likes) / n)
	s.AvgComments = round2(float64(s.Comments) / n)
	s.AvgShares = round2(float64(s.Shares) / n)
	s.AvgEngagement = round2(float64(s.Engagement) / n)
	s.AvgEngagementRate = round2(rateSum / n)
	return s
}

// RankedPost — пост со значением показателя, по которому он отобран.
type RankedPost struct {
	Post  domain.Post `json:"post"`
	Value int         `json:"value"`
}

// TopPosts возвращает n лучших постов по показателю. При равенстве
// сохраняется исходный порядок.
func TopPosts(posts []domain.Post, metric Metric, n int) []RankedPost {
	ranked := make([]RankedPost, 0, len(posts))
	for _, p := range posts {
		ranked = append(ranked, RankedPost{Post: p, Value: metricValue(p, metric)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// DeduplicatePosts удаляет повторы по платформе и идентификатору, а для постов
// без идентификатора — по ссылке. Остаётся первое вхождение.
func DeduplicatePosts(posts []domain.Post) []domain.Post {
	seen := make(map[string]struct{}, len(posts))
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		key := string(p.Platform) + ":" + p.ID
		if p.ID == "" {
			key = domain.NormalizeRef(p.URL)
		}
		if key == "" {
			out = append(out, p)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// CommentTexts собирает непустые тексты комментариев всех постов.
func CommentTexts(posts []domain.Post) []string {
	var texts []string
	for _, p := range posts {
		for _, c := range p.Comments {
			if c.Text != "" {
				texts = append(texts, c.Text)
			}
		}
	}
	return texts
}
