package analytics

import (
	"math"
	"sort"
	"time"

	"social-pulse/internal/domain"
)

const dayLayout = "2006-01-02"

// DayCount — число постов за день.
type DayCount struct {
	Date  string `json:"date"`
	Posts int    `json:"posts"`
}

// Frequency описывает частоту публикаций.
type Frequency struct {
	PerDay        []DayCount `json:"per_day"`
	AvgPerDay     float64    `json:"avg_per_day"`
	MostActiveDay string     `json:"most_active_day,omitempty"`
	TotalDays     int        `json:"total_days"`
	From          string     `json:"from,omitempty"`
	To            string     `json:"to,omitempty"`
}

// PostingFrequency считает публикации по дням. Среднее берётся по всему
// периоду от первой до последней даты, включая дни без постов.
func PostingFrequency(posts []domain.Post) Frequency {
	counts := make(map[string]int)
	var first, last time.Time
	for _, p := range posts {
		if p.PublishedAt.IsZero() {
			continue
		}
		day := p.PublishedAt.UTC().Truncate(24 * time.Hour)
		counts[day.Format(dayLayout)]++
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}
	if len(counts) == 0 {
		return Frequency{PerDay: []DayCount{}}
	}

	f := Frequency{PerDay: make([]DayCount, 0, len(counts))}
	total := 0
	for day, n := range counts {
		f.PerDay = append(f.PerDay, DayCount{Date: day, Posts: n})
		total += n
	}
	sort.Slice(f.PerDay, func(i, j int) bool { return f.PerDay[i].Date < f.PerDay[j].Date })

	best := f.PerDay[0]
	for _, d := range f.PerDay[1:] {
		if d.Posts > best.Posts {
			best = d
		}
	}
	f.MostActiveDay = best.Date
	f.TotalDays = int(last.Sub(first).Hours()/24) + 1
	f.AvgPerDay = round2(float64(total) / float64(f.TotalDays))
	f.From = first.Format(dayLayout)
	f.To = last.Format(dayLayout)
	return f
}

// TrendPoint — суммарная вовлечённость за день.
type TrendPoint struct {
	Date       string `json:"date"`
	Posts      int    `json:"posts"`
	Likes      int    `json:"likes"`
	Comments   int    `json:"comments"`
	Shares     int    `json:"shares"`
	Engagement int    `json:"engagement"`
}

// EngagementTrend группирует посты по дню публикации. Посты без даты пропускаются.
func EngagementTrend(posts []domain.Post) []TrendPoint {
	byDay := make(map[string]*TrendPoint)
	for _, p := range posts {
		if p.PublishedAt.IsZero() {
			continue
		}
		day := p.PublishedAt.UTC().Format(dayLayout)
		pt, ok := byDay[day]
		if !ok {
			pt = &TrendPoint{Date: day}
			byDay[day] = pt
		}
		pt.Posts++
		pt.Likes += p.Engagement.TotalReactions()
		pt.Comments += p.Engagement.Comments
		pt.Shares += p.Engagement.Shares
		pt.Engagement += Engagement(p)
	}
	trend := make([]TrendPoint, 0, len(byDay))
	for _, pt := range byDay {
		trend = append(trend, *pt)
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Date < trend[j].Date })
	return trend
}

// Percentile — распределение показателя по постам.
type Percentile struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	Max float64 `json:"max"`
}

// Percentiles считает квантили лайков, комментариев, репостов и просмотров.
func Percentiles(posts []domain.Post) map[string]Percentile {
	if len(posts) == 0 {
		return map[string]Percentile{}
	}
	series := map[string][]float64{}
	for _, p := range posts {
		series["likes"] = append(series["likes"], float64(p.Engagement.TotalReactions()))
		series["comments"] = append(series["comments"], float64(p.Engagement.Comments))
		series["shares"] = append(series["shares"], float64(p.Engagement.Shares))
		series["views"] = append(series["views"], float64(p.Engagement.Views))
	}
	out := make(map[string]Percentile, len(series))
	for name, values := range series {
		sort.Float64s(values)
		out[name] = Percentile{
			P25: round2(quantile(values, 0.25)),
			P50: round2(quantile(values, 0.50)),
			P75: round2(quantile(values, 0.75)),
			P90: round2(quantile(values, 0.90)),
			Max: values[len(values)-1],
		}
	}
	return out
}

// ViralPosts возвращает посты, чья вовлечённость не ниже квантиля q.
func ViralPosts(posts []domain.Post, q float64) []RankedPost {
	if len(posts) == 0 {
		return []RankedPost{}
	}
	values := make([]float64, 0, len(posts))
	for _, p := range posts {
		values = append(values, float64(Engagement(p)))
	}
	sort.Float64s(values)
	threshold := quantile(values, q)

	var viral []RankedPost
	for _, p := range posts {
		if e := Engagement(p); float64(e) >= threshold {
			viral = append(viral, RankedPost{Post: p, Value: e})
		}
	}
	sort.SliceStable(viral, func(i, j int) bool { return viral[i].Value > viral[j].Value })
	return viral
}

// quantile — линейная интерполяция между соседними значениями отсортированного среза.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	q = math.Max(0, math.Min(1, q))
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
