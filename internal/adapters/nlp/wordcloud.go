package nlp

import (
	"math"
	"sort"
)

// Term — слово облака с частотой и весом от 0 до 1 относительно самого частого.
type Term struct {
	Text   string  `json:"text"`
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

// WordCloud возвращает n самых частых значимых слов.
func WordCloud(texts []string, n int) []Term {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			counts[tok]++
		}
	}
	terms := make([]Term, 0, len(counts))
	for w, c := range counts {
		terms = append(terms, Term{Text: w, Count: c})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Text < terms[j].Text
	})
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	if len(terms) > 0 {
		top := float64(terms[0].Count)
		for i := range terms {
			terms[i].Weight = math.Round(float64(terms[i].Count)/top*100) / 100
		}
	}
	return terms
}
