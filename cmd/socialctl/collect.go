package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"social-pulse/internal/app"
	"social-pulse/internal/domain"
	"social-pulse/internal/usecase/analytics"
	"social-pulse/internal/usecase/comments"
	"social-pulse/internal/usecase/scrape"
)

func newCollectCmd(c *cli) *cobra.Command {
	var (
		req    app.CollectRequest
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "collect <url>",
		Short: "Собрать посты профиля и сохранить результат",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Apify.Token == "" {
				return errors.New("не указан токен Apify (APIFY_TOKEN)")
			}
			req.TargetURL = args[0]
			job, err := req.Job(domain.FetchCauseManual, time.Now())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline, err := app.Build(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			res, err := pipeline.Scrape.Collect(ctx, job)
			if err != nil {
				if ae, ok := domain.AsActorError(err); ok {
					return fmt.Errorf("%s: %w", ae.Kind.UserMessage(), err)
				}
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), collectOutputOf(res))
			}
			printCollectSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&req.Platform, "platform", "p", "", "платформа: facebook, instagram, youtube (по умолчанию по ссылке)")
	f.IntVarP(&req.Limit, "limit", "n", 0, "сколько постов собрать (по умолчанию DEFAULT_MAX_POSTS)")
	f.StringVar(&req.From, "from", "", "начало периода, 2006-01-02 или RFC3339")
	f.StringVar(&req.To, "to", "", "конец периода, 2006-01-02 или RFC3339")
	f.BoolVarP(&req.WithComments, "comments", "c", false, "собирать комментарии")
	f.IntVar(&req.CommentsPerPost, "comments-per-post", 0, "сколько комментариев на пост")
	f.StringVar(&req.CommentMode, "comment-mode", "", "batch или individual")
	f.BoolVar(&req.WithReactions, "reactions", false, "собирать разбивку реакций (Facebook)")
	f.BoolVar(&req.Fresh, "fresh", false, "не брать результат из кэша")
	f.BoolVar(&asJSON, "json", false, "вывести результат в JSON")
	return cmd
}

type collectOutput struct {
	RunID           string            `json:"run_id"`
	Platform        domain.Platform   `json:"platform"`
	Posts           []domain.Post     `json:"posts"`
	Dropped         int               `json:"dropped"`
	FromCache       bool              `json:"from_cache"`
	RawPath         string            `json:"raw_path,omitempty"`
	ReactionsMerged int               `json:"reactions_merged"`
	CommentFailures map[string]string `json:"comment_failures,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
}

func collectOutputOf(res scrape.Result) collectOutput {
	out := collectOutput{
		RunID:           res.RunID,
		Platform:        res.Platform,
		Posts:           res.Posts,
		Dropped:         res.Dropped,
		FromCache:       res.FromCache,
		RawPath:         res.RawPath,
		ReactionsMerged: res.ReactionsMerged,
		Warnings:        res.Warnings,
	}
	if len(res.CommentFailures) > 0 {
		out.CommentFailures = make(map[string]string, len(res.CommentFailures))
		for _, f := range res.CommentFailures {
			out.CommentFailures[f.PostID] = f.Err.Error()
		}
	}
	return out
}

func printCollectSummary(w io.Writer, res scrape.Result) {
	fmt.Fprintf(w, "Запуск %s (%s)\n", res.RunID, res.Platform)
	fmt.Fprintf(w, "Постов: %d, комментариев: %d", len(res.Posts), comments.CountComments(res.Posts))
	if res.Dropped > 0 {
		fmt.Fprintf(w, ", отброшено записей: %d", res.Dropped)
	}
	fmt.Fprintln(w)
	if res.ReactionsMerged > 0 {
		fmt.Fprintf(w, "Постов с реакциями: %d\n", res.ReactionsMerged)
	}
	if res.FromCache {
		fmt.Fprintln(w, "Результат взят из кэша")
	}
	if res.RawPath != "" {
		fmt.Fprintf(w, "Сырые данные: %s\n", res.RawPath)
	}
	for _, f := range res.CommentFailures {
		fmt.Fprintf(w, "Комментарии %s: %v\n", f.PostID, f.Err)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "Предупреждение: %s\n", warning)
	}
	top := analytics.TopPosts(res.Posts, analytics.MetricEngagement, 5)
	if len(top) == 0 {
		return
	}
	fmt.Fprintln(w, "\nЛучшие посты:")
	for i, rp := range top {
		fmt.Fprintf(w, "%d. [%d] %s\n", i+1, rp.Value, postTitle(rp.Post))
	}
}

func postTitle(p domain.Post) string {
	if p.URL != "" {
		return p.URL
	}
	return p.ID
}
