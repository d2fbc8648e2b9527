package app

import (
	"social-pulse/internal/adapters/nlp"
	"social-pulse/internal/adapters/platform"
	"social-pulse/internal/domain"
	"social-pulse/internal/usecase/analytics"
)

const (
	insightPhrases = 20
	insightTerms   = 50
)

// Insights — аналитика постов вместе с разбором текстов комментариев.
type Insights struct {
	Report    analytics.Report `json:"report"`
	Audit     analytics.Audit  `json:"audit"`
	Sentiment nlp.Distribution `json:"sentiment"`
	Phrases   []nlp.Phrase     `json:"phrases"`
	WordCloud []nlp.Term       `json:"word_cloud"`
}

// Analyze строит отчёт по постам. Для известной платформы коэффициент
// вовлечённости считается её адаптером.
func Analyze(registry *platform.Registry, p domain.Platform, posts []domain.Post, opts analytics.Options) Insights {
	if opts.Rate == nil && registry != nil {
		if adapter, err := registry.Get(p); err == nil {
			opts.Rate = adapter.EngagementRate
		}
	}
	texts := analytics.CommentTexts(posts)
	if len(texts) == 0 {
		for _, post := range posts {
			if post.Text != "" {
				texts = append(texts, post.Text)
			}
		}
	}
	phraseOpts := nlp.DefaultPhraseOptions()
	phraseOpts.TopN = insightPhrases
	return Insights{
		Report:    analytics.Build(p, posts, opts),
		Audit:     analytics.Completeness(p, posts),
		Sentiment: nlp.AnalyzeCorpus(texts),
		Phrases:   nlp.Phrases(texts, phraseOpts),
		WordCloud: nlp.WordCloud(texts, insightTerms),
	}
}
