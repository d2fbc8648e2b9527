package scrape

import (
	"fmt"
	"html"
	"strings"

	"social-pulse/internal/domain"
	"social-pulse/internal/usecase/analytics"
	"social-pulse/internal/usecase/comments"
)

const reportTopPosts = 3

var platformIcons = map[domain.Platform]string{
	domain.PlatformFacebook:  "📘",
	domain.PlatformInstagram: "📸",
	domain.PlatformYouTube:   "▶️",
}

// FormatReport формирует HTML-отчёт о запуске для отправки в Telegram.
func FormatReport(job domain.FetchJob, res Result, runErr error) string {
	icon := platformIcons[job.Platform]
	if icon == "" {
		icon = "🌐"
	}
	head := fmt.Sprintf("%s <b>Сбор %s</b>\n%s", icon, escapeHTML(string(job.Platform)), escapeHTML(job.TargetURL))

	if runErr != nil {
		return head + "\n\n❌ " + escapeHTML(userMessage(runErr))
	}

	sections := []string{head}

	var stats strings.Builder
	fmt.Fprintf(&stats, "📊 <b>Итоги</b>\n- постов: %d\n- комментариев: %d", len(res.Posts), comments.CountComments(res.Posts))
	if res.Dropped > 0 {
		fmt.Fprintf(&stats, "\n- отброшено записей: %d", res.Dropped)
	}
	if res.ReactionsMerged > 0 {
		fmt.Fprintf(&stats, "\n- постов с реакциями: %d", res.ReactionsMerged)
	}
	if res.FromCache {
		stats.WriteString("\n- взято из кэша")
	}
	sections = append(sections, stats.String())

	if top := analytics.TopPosts(res.Posts, analytics.MetricEngagement, reportTopPosts); len(top) > 0 {
		var b strings.Builder
		b.WriteString("🔥 <b>Лучшие посты</b>")
		for _, rp := range top {
			fmt.Fprintf(&b, "\n- %s (%d)", postLink(rp.Post), rp.Value)
		}
		sections = append(sections, b.String())
	}

	if len(res.Warnings) > 0 {
		var b strings.Builder
		b.WriteString("⚠️ <b>Предупреждения</b>")
		for _, w := range res.Warnings {
			b.WriteString("\n- " + escapeHTML(w))
		}
		sections = append(sections, b.String())
	}

	return strings.Join(sections, "\n\n")
}

func postLink(p domain.Post) string {
	title := strings.TrimSpace(p.Text)
	if r := []rune(title); len(r) > 60 {
		title = string(r[:60]) + "…"
	}
	if title == "" {
		title = p.ID
	}
	if p.URL == "" {
		return escapeHTML(title)
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, escapeHTML(p.URL), escapeHTML(title))
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
