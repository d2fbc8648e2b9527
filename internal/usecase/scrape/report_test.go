package scrape

import (
	"strings"
	"testing"

	"social-pulse/internal/domain"
)

func TestFormatReportSuccess(t *testing.T) {
	job := domain.FetchJob{Platform: domain.PlatformFacebook, TargetURL: "https://www.facebook.com/nasa"}
	res := Result{
		Posts: []domain.Post{
			{ID: "1", Text: "<b>скучно</b>", URL: "https://facebook.com/nasa/posts/1", Engagement: domain.Engagement{Likes: 1}},
			{ID: "2", Text: "Запуск", URL: "https://facebook.com/nasa/posts/2", Engagement: domain.Engagement{Likes: 50}, Comments: []domain.Comment{{ID: "c"}}},
		},
		Dropped:  1,
		Warnings: []string{"не удалось загрузить комментарии"},
	}

	text := FormatReport(job, res, nil)
	for _, want := range []string{"📘", "постов: 2", "комментариев: 1", "отброшено записей: 1", "⚠️", "&lt;b&gt;скучно&lt;/b&gt;"} {
		if !strings.Contains(text, want) {
			t.Fatalf("ожидали %q в отчёте:\n%s", want, text)
		}
	}
	if strings.Index(text, "Запуск") > strings.Index(text, "скучно") {
		t.Fatalf("посты должны идти по убыванию вовлечённости")
	}
}

func TestFormatReportFailureUsesUserMessage(t *testing.T) {
	job := domain.FetchJob{Platform: domain.PlatformYouTube, TargetURL: "https://youtube.com/@nasa"}
	err := domain.NewActorError(domain.KindAuth, "401", nil)

	text := FormatReport(job, Result{}, err)
	if !strings.Contains(text, "❌") || !strings.Contains(text, "APIFY_TOKEN") {
		t.Fatalf("ожидали сообщение для пользователя:\n%s", text)
	}
}
