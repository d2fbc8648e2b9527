package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"social-pulse/internal/adapters/platform"
	"social-pulse/internal/app"
	"social-pulse/internal/usecase/analytics"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var (
		platformName string
		metricName   string
		top          int
	)
	cmd := &cobra.Command{
		Use:   "analyze [file.json]",
		Short: "Аналитика сохранённых постов в JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePlatformFlag(platformName)
			if err != nil {
				return err
			}
			metric, err := analytics.ParseMetric(metricName)
			if err != nil {
				return err
			}
			p, posts, _, err := c.loadPosts(args, p)
			if err != nil {
				return err
			}
			registry := platform.NewRegistry(c.cfg.Actors)
			return printJSON(cmd.OutOrStdout(), app.Analyze(registry, p, posts, analytics.Options{TopN: top, Metric: metric}))
		},
	}
	cmd.Flags().StringVarP(&platformName, "platform", "p", "", "платформа последнего сохранения")
	cmd.Flags().StringVarP(&metricName, "metric", "m", "", "показатель рейтинга: engagement, likes, comments, shares, views")
	cmd.Flags().IntVarP(&top, "top", "n", 10, "сколько лучших постов показать")
	return cmd
}

// recommendations подсказывает, как поднять заполненность поля.
var recommendations = map[string]string{
	"comments_list":  "включите сбор комментариев (--comments) или увеличьте --comments-per-post",
	"comments_count": "проверьте, что актор возвращает счётчики комментариев",
	"reactions":      "включите сбор реакций (--reactions)",
	"likes":          "проверьте, что актор возвращает счётчики реакций",
	"published_at":   "проверьте формат дат в записях актора",
	"text":           "посты без текста обычно медиа; проверьте тип контента",
	"author":         "добавьте в запрос данные профиля",
	"hashtags":       "хэштеги извлекаются из подписей; проверьте поле caption",
	"views":          "для видео включите подробные данные в настройках актора",
}

func newAuditCmd(c *cli) *cobra.Command {
	var platformName string
	cmd := &cobra.Command{
		Use:   "audit [file.json]",
		Short: "Проверка полноты собранных данных",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePlatformFlag(platformName)
			if err != nil {
				return err
			}
			p, posts, path, err := c.loadPosts(args, p)
			if err != nil {
				return err
			}
			printAudit(cmd.OutOrStdout(), path, analytics.Completeness(p, posts))
			return nil
		},
	}
	cmd.Flags().StringVarP(&platformName, "platform", "p", "", "платформа последнего сохранения")
	return cmd
}

func printAudit(w io.Writer, path string, a analytics.Audit) {
	fmt.Fprintf(w, "Файл: %s\n", path)
	fmt.Fprintf(w, "Платформа: %s\n", a.Platform)
	fmt.Fprintf(w, "Постов: %d (корректных %d, некорректных %d)\n", a.Total, a.Valid, a.Invalid)
	fmt.Fprintf(w, "Полнота: %.1f%%\n\n", a.CompletenessRate)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tПОЛЕ\tЕСТЬ\tНЕТ\t%")
	for _, f := range a.Fields {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\n", f.Grade(), f.Field, f.Present, f.Missing, f.Percentage)
	}
	tw.Flush()

	if len(a.Issues) > 0 {
		fmt.Fprintln(w, "\nЧастые проблемы:")
		for _, issue := range a.Issues {
			fmt.Fprintf(w, "- %s: %d\n", issue.Term, issue.Count)
		}
	}

	weak := a.Weak()
	if len(weak) == 0 {
		return
	}
	fmt.Fprintln(w, "\nРекомендации:")
	for _, f := range weak {
		tip, ok := recommendations[f.Field]
		if !ok {
			tip = "проверьте настройки актора"
		}
		fmt.Fprintf(w, "- %s (%.1f%%): %s\n", f.Field, f.Percentage, tip)
	}
}
