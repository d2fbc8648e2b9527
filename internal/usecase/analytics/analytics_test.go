package analytics

import (
	"testing"
	"time"

	"social-pulse/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 12, 0, 0, 0, time.UTC)
}

func TestSummarize(t *testing.T) {
	posts := []domain.Post{
		{ID: "1", Engagement: domain.Engagement{Likes: 10, Comments: 2, Shares: 1}, Comments: []domain.Comment{{ID: "c"}}},
		{ID: "2", Engagement: domain.Engagement{Reactions: map[string]int{"like": 3, "love": 1}}},
	}
	rates := map[string]float64{"1": 1, "2": 2}

	s := Summarize(posts, func(p domain.Post) float64 { return rates[p.ID] })
	if s.Likes != 14 || s.Comments != 2 || s.Shares != 1 || s.Engagement != 17 {
		t.Fatalf("неверные суммы: %+v", s)
	}
	if s.AvgEngagement != 8.5 || s.AvgLikes != 7 || s.AvgEngagementRate != 1.5 {
		t.Fatalf("неверные средние: %+v", s)
	}
	if s.CommentsFetched != 1 {
		t.Fatalf("ожидали 1 загруженный комментарий, получили %d", s.CommentsFetched)
	}
	if empty := Summarize(nil, nil); empty.Posts != 0 || empty.AvgEngagement != 0 {
		t.Fatalf("пустой набор должен давать нули: %+v", empty)
	}
}

func TestTopPostsKeepsOrderOnTies(t *testing.T) {
	posts := []domain.Post{
		{ID: "a", Engagement: domain.Engagement{Comments: 1}},
		{ID: "b", Engagement: domain.Engagement{Comments: 5}},
		{ID: "c", Engagement: domain.Engagement{Comments: 1}},
	}
	top := TopPosts(posts, MetricComments, 2)
	if len(top) != 2 || top[0].Post.ID != "b" || top[1].Post.ID != "a" {
		t.Fatalf("неверный порядок: %+v", top)
	}
	if top[0].Value != 5 {
		t.Fatalf("ожидали значение 5, получили %d", top[0].Value)
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric(""); err != nil || m != MetricEngagement {
		t.Fatalf("пустая строка должна давать вовлечённость: %v %v", m, err)
	}
	if _, err := ParseMetric("retweets"); err == nil {
		t.Fatalf("ожидали ошибку для неизвестного показателя")
	}
}

func TestDeduplicatePosts(t *testing.T) {
	posts := []domain.Post{
		{ID: "1", Platform: domain.PlatformFacebook},
		{ID: "1", Platform: domain.PlatformFacebook},
		{ID: "1", Platform: domain.PlatformYouTube},
		{URL: "https://www.instagram.com/p/X/"},
		{URL: "https://instagram.com/p/X"},
		{},
	}
	res := DeduplicatePosts(posts)
	if len(res) != 4 {
		t.Fatalf("ожидали 4 поста, получили %d", len(res))
	}
}

func TestPostingFrequency(t *testing.T) {
	posts := []domain.Post{
		{PublishedAt: day(1)},
		{PublishedAt: day(1).Add(3 * time.Hour)},
		{PublishedAt: day(3)},
		{},
	}
	f := PostingFrequency(posts)
	if f.TotalDays != 3 || f.AvgPerDay != 1 {
		t.Fatalf("ожидали 3 дня и 1 пост в день, получили %+v", f)
	}
	if f.MostActiveDay != "2024-05-01" || len(f.PerDay) != 2 {
		t.Fatalf("неверная разбивка по дням: %+v", f)
	}
	if f.From != "2024-05-01" || f.To != "2024-05-03" {
		t.Fatalf("неверный период: %s..%s", f.From, f.To)
	}
	if empty := PostingFrequency(nil); empty.PerDay == nil || empty.TotalDays != 0 {
		t.Fatalf("пустой набор: %+v", empty)
	}
}

func TestEngagementTrendSortedByDate(t *testing.T) {
	posts := []domain.Post{
		{PublishedAt: day(2), Engagement: domain.Engagement{Likes: 1}},
		{PublishedAt: day(1), Engagement: domain.Engagement{Likes: 2, Shares: 1}},
		{PublishedAt: day(2), Engagement: domain.Engagement{Comments: 3}},
	}
	trend := EngagementTrend(posts)
	if len(trend) != 2 || trend[0].Date != "2024-05-01" {
		t.Fatalf("ожидали два дня по возрастанию: %+v", trend)
	}
	if trend[1].Posts != 2 || trend[1].Engagement != 4 {
		t.Fatalf("неверная сумма за 2 мая: %+v", trend[1])
	}
}

func TestPercentilesLinear(t *testing.T) {
	var posts []domain.Post
	for i := 1; i <= 5; i++ {
		posts = append(posts, domain.Post{Engagement: domain.Engagement{Likes: i}})
	}
	p := Percentiles(posts)["likes"]
	if p.P25 != 2 || p.P50 != 3 || p.P75 != 4 || p.P90 != 4.6 || p.Max != 5 {
		t.Fatalf("неверные квантили: %+v", p)
	}
	if len(Percentiles(nil)) != 0 {
		t.Fatalf("пустой набор должен давать пустую карту")
	}
}

func TestViralPosts(t *testing.T) {
	var posts []domain.Post
	for i, likes := range []int{1, 2, 3, 4, 100} {
		posts = append(posts, domain.Post{ID: string(rune('a' + i)), Engagement: domain.Engagement{Likes: likes}})
	}
	viral := ViralPosts(posts, ViralQuantile)
	if len(viral) != 1 || viral[0].Post.ID != "e" {
		t.Fatalf("ожидали один вирусный пост, получили %+v", viral)
	}
}

func TestHashtagsPreferExtraList(t *testing.T) {
	posts := []domain.Post{
		{Text: "#ignored", Extra: map[string]any{"hashtags": []any{"Go", "news"}}},
		{Text: "#go is #Fun"},
	}
	tags := Hashtags(posts, 0)
	want := []TermCount{{"#go", 2}, {"#fun", 1}, {"#news", 1}}
	if len(tags) != len(want) {
		t.Fatalf("ожидали %v, получили %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("позиция %d: ожидали %v, получили %v", i, want[i], tags[i])
		}
	}
}

func TestReactions(t *testing.T) {
	posts := []domain.Post{
		{Engagement: domain.Engagement{Reactions: map[string]int{"like": 2, "love": 5}}},
		{Engagement: domain.Engagement{Reactions: map[string]int{"care": 1}}},
	}
	breakdown := ReactionBreakdown(posts)
	if breakdown["love"] != 5 || breakdown["care"] != 1 || breakdown["angry"] != 0 {
		t.Fatalf("неверная разбивка: %v", breakdown)
	}
	if _, ok := breakdown["wow"]; !ok {
		t.Fatalf("базовые реакции должны присутствовать всегда")
	}
	if got := DominantReaction(posts[0]); got != "love" {
		t.Fatalf("ожидали love, получили %s", got)
	}
	if got := DominantReaction(domain.Post{}); got != "none" {
		t.Fatalf("ожидали none, получили %s", got)
	}
}

func TestEmojis(t *testing.T) {
	got := Emojis([]string{"🔥🔥 ок 😀", "🔥 и текст"}, 1)
	if len(got) != 1 || got[0].Term != "🔥" || got[0].Count != 3 {
		t.Fatalf("ожидали 🔥 x3, получили %v", got)
	}
}

func TestCompleteness(t *testing.T) {
	posts := []domain.Post{
		{ID: "1", PublishedAt: day(1), Text: "текст", Author: "a", URL: "https://facebook.com/p/1", Engagement: domain.Engagement{Shares: 2}},
		{ID: "2", PublishedAt: day(2)},
	}
	a := Completeness(domain.PlatformFacebook, posts)
	if a.Total != 2 || a.Valid != 1 || a.Invalid != 1 || a.CompletenessRate != 50 {
		t.Fatalf("неверные итоги: %+v", a)
	}
	stats := map[string]FieldStat{}
	for _, f := range a.Fields {
		stats[f.Field] = f
	}
	if stats["post_id"].Percentage != 100 || stats["text"].Percentage != 50 || stats["reactions"].Present != 0 {
		t.Fatalf("неверная заполненность: %+v", a.Fields)
	}
	if _, ok := stats["views"]; ok {
		t.Fatalf("поле views не проверяется для facebook")
	}
	if a.Fields[0].Percentage != 100 {
		t.Fatalf("поля должны идти по убыванию заполненности")
	}
	if len(a.Issues) != 2 {
		t.Fatalf("ожидали две проблемы, получили %v", a.Issues)
	}
	if len(a.Weak()) == 0 || stats["text"].Grade() != "⚠️" || stats["post_id"].Grade() != "✅" || stats["reactions"].Grade() != "❌" {
		t.Fatalf("неверные оценки полей")
	}
}

func TestBuildDeduplicates(t *testing.T) {
	posts := []domain.Post{
		{ID: "1", Platform: domain.PlatformYouTube, Text: "👍 #go", PublishedAt: day(1), Engagement: domain.Engagement{Likes: 3}},
		{ID: "1", Platform: domain.PlatformYouTube, Text: "👍 #go", PublishedAt: day(1), Engagement: domain.Engagement{Likes: 3}},
	}
	r := Build(domain.PlatformYouTube, posts, Options{})
	if r.Summary.Posts != 1 || len(r.TopPosts) != 1 || len(r.Hashtags) != 1 || r.Emojis[0].Count != 1 {
		t.Fatalf("повторы должны удаляться до расчёта: %+v", r)
	}
}
