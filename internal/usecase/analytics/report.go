package analytics

import "social-pulse/internal/domain"

// ViralQuantile — порог вирусности по вовлечённости.
const ViralQuantile = 0.9

// Report — сводная аналитика по набору постов.
type Report struct {
	Platform    domain.Platform       `json:"platform,omitempty"`
	Summary     Summary               `json:"summary"`
	TopPosts    []RankedPost          `json:"top_posts"`
	Frequency   Frequency             `json:"frequency"`
	Trend       []TrendPoint          `json:"trend"`
	Percentiles map[string]Percentile `json:"percentiles"`
	Viral       []RankedPost          `json:"viral"`
	Hashtags    []TermCount           `json:"hashtags"`
	Reactions   map[string]int        `json:"reactions"`
	Emojis      []TermCount           `json:"emojis"`
}

// Options настраивает Build.
type Options struct {
	TopN   int
	Metric Metric
	Rate   RateFunc
}

// Build собирает все показатели. Повторы постов удаляются до расчёта.
func Build(platform domain.Platform, posts []domain.Post, opts Options) Report {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	posts = DeduplicatePosts(posts)

	texts := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	texts = append(texts, CommentTexts(posts)...)

	return Report{
		Platform:    platform,
		Summary:     Summarize(posts, opts.Rate),
		TopPosts:    TopPosts(posts, opts.Metric, opts.TopN),
		Frequency:   PostingFrequency(posts),
		Trend:       EngagementTrend(posts),
		Percentiles: Percentiles(posts),
		Viral:       ViralPosts(posts, ViralQuantile),
		Hashtags:    Hashtags(posts, 20),
		Reactions:   ReactionBreakdown(posts),
		Emojis:      Emojis(texts, 20),
	}
}
