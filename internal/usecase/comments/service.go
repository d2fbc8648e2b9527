package comments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// ErrUnknownMode — стратегия загрузки комментариев не распознана.
var ErrUnknownMode = errors.New("неизвестный режим загрузки комментариев")

var errNoPostURL = errors.New("у поста нет ссылки")

// Service догружает комментарии к уже собранным постам.
type Service struct {
	runner  domain.ActorRunner
	log     zerolog.Logger
	workers int
	delay   time.Duration
}

// NewService создаёт сервис. workers ограничивает параллельные запуски
// в поштучном режиме, delay — паузу между запусками.
func NewService(runner domain.ActorRunner, logger zerolog.Logger, workers int, delay time.Duration) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{runner: runner, log: logger, workers: workers, delay: delay}
}

// Options выбирает стратегию и лимит на пост.
type Options struct {
	Mode         domain.CommentMode
	LimitPerPost int
}

// Failure описывает сбой загрузки комментариев. PostID пуст для пакетного запуска.
type Failure struct {
	PostID string
	Err    error
}

// Result — итог фазы комментариев. Posts — тот же срез, что передан на вход.
type Result struct {
	Mode      domain.CommentMode
	Posts     []domain.Post
	Attached  int
	Unmatched int
	Dropped   int
	Failures  []Failure
}

// Fetch запускает выбранную вызывающим стратегию. Пустой режим — пакетный.
func (s *Service) Fetch(ctx context.Context, adapter domain.PlatformAdapter, posts []domain.Post, opts Options) (Result, error) {
	switch opts.Mode {
	case domain.CommentModeBatch, "":
		return s.FetchBatch(ctx, adapter, posts, opts.LimitPerPost)
	case domain.CommentModeIndividual:
		return s.FetchIndividual(ctx, adapter, posts, opts.LimitPerPost)
	}
	return Result{Mode: opts.Mode, Posts: posts}, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
}

// FetchBatch собирает комментарии всех постов одним запуском. Актор ограничивает
// выдачу суммарно, поэтому лимит запуска — число ссылок × limitPerPost. Записи
// раскладываются по постам по ссылке или идентификатору, лишние отбрасываются.
// При сбое запуска посты возвращаются без изменений.
func (s *Service) FetchBatch(ctx context.Context, adapter domain.PlatformAdapter, posts []domain.Post, limitPerPost int) (Result, error) {
	result := Result{Mode: domain.CommentModeBatch, Posts: posts}
	if len(posts) == 0 || limitPerPost <= 0 {
		return result, nil
	}
	urls := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.URL != "" {
			urls = append(urls, p.URL)
		}
	}
	if len(urls) == 0 {
		return result, nil
	}
	platform := string(adapter.Platform())
	logger := s.log.With().Str("platform", platform).Str("mode", string(result.Mode)).Logger()

	req := adapter.BuildCommentsJob(urls, len(urls)*limitPerPost)
	res, err := s.runner.Run(ctx, req)
	if err != nil {
		metrics.CommentFailures.WithLabelValues(platform, string(result.Mode)).Inc()
		logger.Warn().Err(err).Int("posts", len(posts)).Msg("comments: пакетная загрузка не удалась, посты остаются без комментариев")
		result.Failures = append(result.Failures, Failure{Err: err})
		return result, fmt.Errorf("пакетная загрузка комментариев: %w", err)
	}

	buckets := make([][]domain.Comment, len(posts))
	for _, rec := range res.Records {
		c, ok := adapter.NormalizeComment(rec)
		if !ok {
			result.Dropped++
			continue
		}
		idx := matchPost(posts, c.ParentPostRef)
		if idx < 0 {
			result.Unmatched++
			continue
		}
		buckets[idx] = append(buckets[idx], c)
	}
	for i := range posts {
		if len(buckets[i]) == 0 {
			continue
		}
		posts[i].Comments = append(posts[i].Comments, buckets[i]...)
		result.Attached += len(buckets[i])
	}

	metrics.CommentsFetched.WithLabelValues(platform, string(result.Mode)).Add(float64(result.Attached))
	logger.Info().
		Int("records", len(res.Records)).
		Int("attached", result.Attached).
		Int("unmatched", result.Unmatched).
		Int("dropped", result.Dropped).
		Msg("comments: пакетная загрузка завершена")
	return result, nil
}

// FetchIndividual запускает актор по каждому посту через ограниченный пул
// с паузой между запусками. Сбой одного поста не прерывает остальные.
// Комментарии добавляются к постам только после завершения всех воркеров.
func (s *Service) FetchIndividual(ctx context.Context, adapter domain.PlatformAdapter, posts []domain.Post, limitPerPost int) (Result, error) {
	result := Result{Mode: domain.CommentModeIndividual, Posts: posts}
	if len(posts) == 0 || limitPerPost <= 0 {
		return result, nil
	}
	platform := string(adapter.Platform())
	logger := s.log.With().Str("platform", platform).Str("mode", string(result.Mode)).Logger()

	limit := rate.Inf
	if s.delay > 0 {
		limit = rate.Every(s.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	buckets := make([][]domain.Comment, len(posts))
	dropped := make([]int, len(posts))
	errs := make([]error, len(posts))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range posts {
		postURL := posts[i].URL
		if postURL == "" {
			errs[i] = errNoPostURL
			continue
		}
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				errs[i] = err
				return nil
			}
			res, err := s.runner.Run(ctx, adapter.BuildCommentsJob([]string{postURL}, limitPerPost))
			if err != nil {
				errs[i] = err
				return nil
			}
			for _, rec := range res.Records {
				c, ok := adapter.NormalizeComment(rec)
				if !ok {
					dropped[i]++
					continue
				}
				if c.ParentPostRef == "" {
					c.ParentPostRef = postURL
				}
				buckets[i] = append(buckets[i], c)
			}
			return nil
		})
	}
	// Воркеры не возвращают ошибок, сбои постов лежат в errs.
	g.Wait()

	for i := range posts {
		result.Dropped += dropped[i]
		if errs[i] != nil {
			metrics.CommentFailures.WithLabelValues(platform, string(result.Mode)).Inc()
			logger.Warn().Err(errs[i]).Str("post_id", posts[i].ID).Msg("comments: не удалось загрузить комментарии поста")
			result.Failures = append(result.Failures, Failure{PostID: posts[i].ID, Err: errs[i]})
			continue
		}
		posts[i].Comments = append(posts[i].Comments, buckets[i]...)
		result.Attached += len(buckets[i])
	}

	metrics.CommentsFetched.WithLabelValues(platform, string(result.Mode)).Add(float64(result.Attached))
	logger.Info().
		Int("posts", len(posts)).
		Int("attached", result.Attached).
		Int("failures", len(result.Failures)).
		Msg("comments: поштучная загрузка завершена")
	return result, nil
}

func matchPost(posts []domain.Post, ref string) int {
	for i := range posts {
		if domain.MatchesPost(ref, posts[i]) {
			return i
		}
	}
	return -1
}

// CountComments возвращает общее число комментариев в постах.
func CountComments(posts []domain.Post) int {
	total := 0
	for _, p := range posts {
		total += len(p.Comments)
	}
	return total
}
