package nlp

import (
	"math"
	"sort"
	"strings"
)

// PhraseOptions задаёт пороги отбора фраз.
type PhraseOptions struct {
	MinFrequency int
	MinPMI       float64
	MaxLength    int
	TopN         int
}

// DefaultPhraseOptions — фразы из 2–3 слов, встреченные хотя бы дважды, PMI от 1.
func DefaultPhraseOptions() PhraseOptions {
	return PhraseOptions{MinFrequency: 2, MinPMI: 1.0, MaxLength: 3, TopN: 50}
}

// Phrase — устойчивое словосочетание корпуса.
type Phrase struct {
	Text  string  `json:"phrase"`
	Count int     `json:"count"`
	PMI   float64 `json:"pmi"`
}

// Phrases извлекает n-граммы из текстов и оставляет те, что встречаются
// достаточно часто и чьи слова связаны сильнее случайного (PMI).
func Phrases(texts []string, opts PhraseOptions) []Phrase {
	if opts.MaxLength < 2 {
		opts.MaxLength = 2
	}
	phraseFreq := make(map[string]int)
	wordFreq := make(map[string]int)
	total := 0

	for _, text := range texts {
		tokens := Tokenize(text)
		for _, tok := range tokens {
			wordFreq[tok]++
			total++
		}
		for n := 2; n <= opts.MaxLength && n <= len(tokens); n++ {
			for i := 0; i+n <= len(tokens); i++ {
				gram := tokens[i : i+n]
				if !meaningful(gram) {
					continue
				}
				phraseFreq[strings.Join(gram, " ")]++
			}
		}
	}
	if total == 0 {
		return []Phrase{}
	}

	out := make([]Phrase, 0)
	for text, freq := range phraseFreq {
		if freq < opts.MinFrequency {
			continue
		}
		score := pmi(strings.Fields(text), freq, wordFreq, total)
		if score < opts.MinPMI {
			continue
		}
		out = append(out, Phrase{Text: text, Count: freq, PMI: math.Round(score*100) / 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Text < out[j].Text
	})
	if opts.TopN > 0 && len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out
}

// meaningful отсекает n-граммы с повторяющимися словами.
func meaningful(gram []string) bool {
	seen := make(map[string]struct{}, len(gram))
	for _, w := range gram {
		if _, dup := seen[w]; dup {
			return false
		}
		seen[w] = struct{}{}
	}
	return true
}

func pmi(gram []string, freq int, wordFreq map[string]int, total int) float64 {
	n := float64(total)
	independent := 1.0
	for _, w := range gram {
		f := wordFreq[w]
		if f == 0 {
			return 0
		}
		independent *= float64(f) / n
	}
	return math.Log2((float64(freq) / n) / independent)
}
