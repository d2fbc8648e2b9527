package analytics

import (
	"sort"

	"social-pulse/internal/domain"
)

// Пороги оценки заполненности.
const (
	GoodCompleteness = 80.0
	FairCompleteness = 50.0
)

// FieldStat — заполненность одного поля.
type FieldStat struct {
	Field      string  `json:"field"`
	Present    int     `json:"present"`
	Missing    int     `json:"missing"`
	Percentage float64 `json:"percentage"`
}

// Grade возвращает оценку заполненности поля.
func (f FieldStat) Grade() string {
	switch {
	case f.Percentage >= GoodCompleteness:
		return "✅"
	case f.Percentage >= FairCompleteness:
		return "⚠️"
	}
	return "❌"
}

// Audit — отчёт о качестве данных одной платформы.
type Audit struct {
	Platform         domain.Platform `json:"platform"`
	Total            int             `json:"total"`
	Valid            int             `json:"valid"`
	Invalid          int             `json:"invalid"`
	CompletenessRate float64         `json:"completeness_rate"`
	Fields           []FieldStat     `json:"fields"`
	Issues           []TermCount     `json:"issues"`
}

// Weak возвращает поля с заполненностью ниже хорошего порога.
func (a Audit) Weak() []FieldStat {
	var weak []FieldStat
	for _, f := range a.Fields {
		if f.Percentage < GoodCompleteness {
			weak = append(weak, f)
		}
	}
	return weak
}

type fieldCheck struct {
	name    string
	present func(domain.Post) bool
}

var commonFields = []fieldCheck{
	{"post_id", func(p domain.Post) bool { return p.ID != "" }},
	{"published_at", func(p domain.Post) bool { return !p.PublishedAt.IsZero() }},
	{"text", func(p domain.Post) bool { return p.Text != "" }},
	{"author", func(p domain.Post) bool { return p.Author != "" }},
	{"post_url", func(p domain.Post) bool { return p.URL != "" }},
	{"likes", func(p domain.Post) bool { return p.Engagement.TotalReactions() > 0 }},
	{"comments_count", func(p domain.Post) bool { return p.Engagement.Comments > 0 }},
	{"comments_list", func(p domain.Post) bool { return len(p.Comments) > 0 }},
}

var platformFields = map[domain.Platform][]fieldCheck{
	domain.PlatformFacebook: {
		{"reactions", func(p domain.Post) bool { return len(p.Engagement.Reactions) > 0 }},
		{"shares", func(p domain.Post) bool { return p.Engagement.Shares > 0 }},
	},
	domain.PlatformInstagram: {
		{"hashtags", func(p domain.Post) bool { return len(extraStrings(p.Extra, "hashtags")) > 0 }},
	},
	domain.PlatformYouTube: {
		{"views", func(p domain.Post) bool { return p.Engagement.Views > 0 }},
		{"duration", func(p domain.Post) bool { _, ok := p.Extra["duration"]; return ok }},
	},
}

// Проблемы записи: обязательные поля делают пост невалидным, рекомендуемые — нет.
const (
	issueNoID     = "нет идентификатора поста"
	issueNoDate   = "нет даты публикации"
	issueNoText   = "нет текста"
	issueNoURL    = "нет ссылки на пост"
	issueNoAuthor = "нет автора"
)

func postIssues(p domain.Post) (issues []string, valid bool) {
	valid = true
	if p.ID == "" {
		issues, valid = append(issues, issueNoID), false
	}
	if p.PublishedAt.IsZero() {
		issues, valid = append(issues, issueNoDate), false
	}
	if p.Text == "" {
		issues, valid = append(issues, issueNoText), false
	}
	if p.URL == "" {
		issues = append(issues, issueNoURL)
	}
	if p.Platform == domain.PlatformInstagram && p.Author == "" {
		issues = append(issues, issueNoAuthor)
	}
	return issues, valid
}

// Completeness проверяет посты одной платформы: обязательные поля, заполненность
// полей и десять самых частых проблем.
func Completeness(platform domain.Platform, posts []domain.Post) Audit {
	a := Audit{Platform: platform, Total: len(posts)}
	checks := append(append([]fieldCheck{}, commonFields...), platformFields[platform]...)
	present := make([]int, len(checks))
	issueCounts := make(map[string]int)

	for _, p := range posts {
		issues, valid := postIssues(p)
		if valid {
			a.Valid++
		}
		for _, issue := range issues {
			issueCounts[issue]++
		}
		for i, c := range checks {
			if c.present(p) {
				present[i]++
			}
		}
	}
	a.Invalid = a.Total - a.Valid
	if a.Total > 0 {
		a.CompletenessRate = round2(float64(a.Valid) / float64(a.Total) * 100)
	}

	a.Fields = make([]FieldStat, 0, len(checks))
	for i, c := range checks {
		stat := FieldStat{Field: c.name, Present: present[i], Missing: a.Total - present[i]}
		if a.Total > 0 {
			stat.Percentage = round2(float64(present[i]) / float64(a.Total) * 100)
		}
		a.Fields = append(a.Fields, stat)
	}
	a.Issues = topTerms(issueCounts, 10)
	sort.SliceStable(a.Fields, func(i, j int) bool { return a.Fields[i].Percentage > a.Fields[j].Percentage })
	return a
}
