package analytics

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"social-pulse/internal/domain"
)

// TermCount — частота термина.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

func topTerms(counts map[string]int, n int) []TermCount {
	out := make([]TermCount, 0, len(counts))
	for term, c := range counts {
		out = append(out, TermCount{Term: term, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

var hashtagRe = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// Hashtags считает хэштеги. Берётся список из данных платформы, а если его
// нет — хэштеги из текста поста. Регистр не учитывается.
func Hashtags(posts []domain.Post, n int) []TermCount {
	counts := make(map[string]int)
	for _, p := range posts {
		tags := extraStrings(p.Extra, "hashtags")
		if len(tags) == 0 {
			tags = hashtagRe.FindAllString(p.Text, -1)
		}
		for _, tag := range tags {
			tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
			if tag != "" {
				counts["#"+tag]++
			}
		}
	}
	return topTerms(counts, n)
}

func extraStrings(extra map[string]any, key string) []string {
	raw, ok := extra[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// BaseReactions — типы реакций Facebook, которые всегда есть в разбивке.
var BaseReactions = []string{"like", "love", "haha", "wow", "sad", "angry"}

// ReactionBreakdown суммирует разбивку реакций по всем постам.
func ReactionBreakdown(posts []domain.Post) map[string]int {
	out := make(map[string]int, len(BaseReactions))
	for _, kind := range BaseReactions {
		out[kind] = 0
	}
	for _, p := range posts {
		for kind, n := range p.Engagement.Reactions {
			if n > 0 {
				out[kind] += n
			}
		}
	}
	return out
}

// DominantReaction возвращает самую частую реакцию поста или "none".
// При равенстве выбирается первая по алфавиту.
func DominantReaction(p domain.Post) string {
	best, bestN := "none", 0
	for kind, n := range p.Engagement.Reactions {
		if n > bestN || (n == bestN && n > 0 && kind < best) {
			best, bestN = kind, n
		}
	}
	return best
}

// Emojis считает эмодзи в текстах и возвращает n самых частых.
func Emojis(texts []string, n int) []TermCount {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, r := range text {
			if isEmoji(r) {
				counts[string(r)]++
			}
		}
	}
	return topTerms(counts, n)
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return unicode.IsSymbol(r)
	}
	return false
}
