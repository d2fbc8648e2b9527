package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
	"social-pulse/internal/usecase/comments"
)

// Limits задаёт значения по умолчанию для задач и параметры догрузки реакций.
type Limits struct {
	MaxPosts        int
	MaxComments     int
	ReactionsBatch  int
	ReactionsPerRun int
	ReactionsDelay  time.Duration
}

// DefaultLimits совпадают со значениями конфигурации по умолчанию.
func DefaultLimits() Limits {
	return Limits{MaxPosts: 10, MaxComments: 25, ReactionsBatch: 5, ReactionsPerRun: 500, ReactionsDelay: 2 * time.Second}
}

// Result — итог одного прохода конвейера.
type Result struct {
	RunID           string
	Platform        domain.Platform
	Posts           []domain.Post
	Dropped         int
	FromCache       bool
	RawPath         string
	ReactionsMerged int
	CommentFailures []comments.Failure
	Warnings        []string
}

// Service собирает посты профиля: запуск актора, нормализация, обогащение
// реакциями и комментариями, сохранение и журнал запуска.
type Service struct {
	runner   domain.ActorRunner
	resolver domain.TargetResolver
	comments *comments.Service
	log      zerolog.Logger
	limits   Limits

	cache    domain.Cache
	cacheTTL time.Duration
	archive  domain.RawArchive
	sinks    []domain.PostRepo
	runs     []domain.RunRepo

	now   func() time.Time
	newID func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithCache включает кэш нормализованных постов.
func WithCache(cache domain.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithArchive сохраняет сырые записи актора.
func WithArchive(archive domain.RawArchive) Option {
	return func(s *Service) { s.archive = archive }
}

// WithSinks добавляет хранилища постов.
func WithSinks(sinks ...domain.PostRepo) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithRunRepos добавляет журналы запусков.
func WithRunRepos(repos ...domain.RunRepo) Option {
	return func(s *Service) { s.runs = append(s.runs, repos...) }
}

// WithLimits переопределяет лимиты.
func WithLimits(limits Limits) Option {
	return func(s *Service) { s.limits = limits }
}

// NewService создаёт конвейер сбора.
func NewService(runner domain.ActorRunner, resolver domain.TargetResolver, commentsSvc *comments.Service, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		runner:   runner,
		resolver: resolver,
		comments: commentsSvc,
		log:      logger,
		limits:   DefaultLimits(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limits.ReactionsBatch < 1 {
		s.limits.ReactionsBatch = 1
	}
	return s
}

// Collect выполняет задачу сбора. Ошибка возвращается, только если не удалось
// получить посты; сбои реакций, комментариев и хранилищ попадают в Warnings.
func (s *Service) Collect(ctx context.Context, job domain.FetchJob) (Result, error) {
	start := time.Now()
	defer func() { metrics.CollectSeconds.Observe(time.Since(start).Seconds()) }()

	adapter, err := s.resolver.Resolve(job.Platform, job.TargetURL)
	if err != nil {
		return Result{}, err
	}
	job = s.withDefaults(job, adapter.Platform())
	platform := string(job.Platform)
	logger := s.log.With().Str("platform", platform).Str("target", job.TargetURL).Logger()

	key := cacheKey(job)
	if !job.Fresh {
		if posts, ok := s.cached(ctx, key, logger); ok {
			return Result{Platform: job.Platform, Posts: posts, FromCache: true}, nil
		}
	}

	run := domain.ScrapeRun{
		ID:        s.newID(),
		Platform:  job.Platform,
		TargetURL: job.TargetURL,
		Status:    domain.RunStarted,
		StartedAt: s.now(),
	}
	s.startRun(ctx, run, logger)
	result := Result{RunID: run.ID, Platform: job.Platform}

	res, err := s.runner.Run(ctx, adapter.BuildPostsJob(job.TargetURL, job.Limit, job.DateRange))
	if err != nil {
		s.finishRun(ctx, run, nil, err, logger)
		return result, fmt.Errorf("сбор постов %s: %w", job.TargetURL, err)
	}
	if s.archive != nil {
		path, err := s.archive.SaveRaw(ctx, job.Platform, res.Records)
		if err != nil {
			logger.Warn().Err(err).Msg("collector: не удалось сохранить сырые записи")
			result.Warnings = append(result.Warnings, "сырые записи не сохранены")
		}
		result.RawPath = path
	}

	posts, dropped := domain.NormalizePosts(adapter, res.Records)
	result.Dropped = dropped
	if dropped > 0 {
		metrics.RecordsDropped.WithLabelValues(platform, "post").Add(float64(dropped))
		logger.Debug().Int("dropped", dropped).Msg("collector: отброшены записи без идентификатора")
	}
	if len(posts) == 0 && len(res.Records) > 0 {
		err := fmt.Errorf("%w: ни одна из %d записей не содержит идентификатора", domain.ErrNoPosts, len(res.Records))
		s.finishRun(ctx, run, nil, err, logger)
		return result, err
	}
	posts = FilterByDate(posts, job.DateRange)
	if len(posts) > job.Limit {
		posts = posts[:job.Limit]
	}
	if len(posts) == 0 {
		result.Warnings = append(result.Warnings, "актор не вернул постов")
	}
	metrics.PostsCollected.WithLabelValues(platform).Add(float64(len(posts)))

	if job.WithReactions && len(posts) > 0 {
		if src, ok := adapter.(domain.ReactionSource); ok {
			merged, warnings := s.enrichReactions(ctx, src, posts, logger)
			result.ReactionsMerged = merged
			result.Warnings = append(result.Warnings, warnings...)
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("разбивка реакций для %s не поддерживается", platform))
		}
	}

	if job.WithComments && len(posts) > 0 {
		if s.comments == nil {
			result.Warnings = append(result.Warnings, "загрузка комментариев не настроена")
		} else {
			cres, err := s.comments.Fetch(ctx, adapter, posts, comments.Options{Mode: job.CommentMode, LimitPerPost: job.CommentsPerPost})
			result.CommentFailures = cres.Failures
			switch {
			case err != nil:
				result.Warnings = append(result.Warnings, "комментарии не загружены: "+userMessage(err))
			case len(cres.Failures) > 0:
				result.Warnings = append(result.Warnings, fmt.Sprintf("комментарии не загружены для %d из %d постов", len(cres.Failures), len(posts)))
			}
		}
	}

	result.Posts = posts
	if warnings := s.persist(ctx, posts, logger); len(warnings) > 0 {
		result.Warnings = append(result.Warnings, warnings...)
	}
	if len(result.CommentFailures) == 0 && len(posts) > 0 {
		s.store(ctx, key, posts, logger)
	}
	s.finishRun(ctx, run, posts, nil, logger)

	logger.Info().
		Str("run_id", run.ID).
		Int("posts", len(posts)).
		Int("comments", comments.CountComments(posts)).
		Int("warnings", len(result.Warnings)).
		Msg("collector: сбор завершён")
	return result, nil
}

func (s *Service) withDefaults(job domain.FetchJob, p domain.Platform) domain.FetchJob {
	job.Platform = p
	if job.Limit <= 0 {
		job.Limit = s.limits.MaxPosts
	}
	if job.CommentsPerPost <= 0 {
		job.CommentsPerPost = s.limits.MaxComments
	}
	if job.CommentMode == "" {
		job.CommentMode = domain.CommentModeBatch
	}
	return job
}

// enrichReactions догружает разбивку реакций пачками постов с паузой между
// запусками. Сбой пачки не прерывает остальные.
func (s *Service) enrichReactions(ctx context.Context, src domain.ReactionSource, posts []domain.Post, logger zerolog.Logger) (int, []string) {
	limit := rate.Inf
	if s.limits.ReactionsDelay > 0 {
		limit = rate.Every(s.limits.ReactionsDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	merged := 0
	var warnings []string
	for from := 0; from < len(posts); from += s.limits.ReactionsBatch {
		to := min(from+s.limits.ReactionsBatch, len(posts))
		batch := posts[from:to]
		urls := make([]string, 0, len(batch))
		for _, p := range batch {
			if p.URL != "" {
				urls = append(urls, p.URL)
			}
		}
		if len(urls) == 0 {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			warnings = append(warnings, "догрузка реакций прервана")
			break
		}
		res, err := s.runner.Run(ctx, src.BuildReactionsJob(urls, s.limits.ReactionsPerRun))
		if err != nil {
			logger.Warn().Err(err).Int("from", from).Int("to", to).Msg("collector: реакции не загружены")
			warnings = append(warnings, fmt.Sprintf("реакции для постов %d-%d не загружены: %s", from+1, to, userMessage(err)))
			continue
		}
		merged += src.MergeReactions(batch, res.Records)
	}
	return merged, warnings
}

func (s *Service) persist(ctx context.Context, posts []domain.Post, logger zerolog.Logger) []string {
	if len(posts) == 0 {
		return nil
	}
	var warnings []string
	for _, sink := range s.sinks {
		if err := sink.SavePosts(ctx, posts); err != nil {
			logger.Error().Err(err).Str("sink", fmt.Sprintf("%T", sink)).Msg("collector: сохранение постов не удалось")
			warnings = append(warnings, "посты не сохранены в одно из хранилищ")
		}
	}
	return warnings
}

func (s *Service) startRun(ctx context.Context, run domain.ScrapeRun, logger zerolog.Logger) {
	for _, repo := range s.runs {
		if err := repo.StartRun(ctx, run); err != nil {
			logger.Warn().Err(err).Str("run_id", run.ID).Msg("collector: не удалось записать старт запуска")
		}
	}
}

func (s *Service) finishRun(ctx context.Context, run domain.ScrapeRun, posts []domain.Post, runErr error, logger zerolog.Logger) {
	run.FinishedAt = s.now()
	run.PostsCount = len(posts)
	run.CommentsCount = comments.CountComments(posts)
	run.Status = domain.RunCompleted
	if runErr != nil {
		run.Status = domain.RunFailed
		run.Error = runErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for _, repo := range s.runs {
		if err := repo.FinishRun(ctx, run); err != nil {
			logger.Warn().Err(err).Str("run_id", run.ID).Msg("collector: не удалось записать итог запуска")
		}
	}
}

func (s *Service) cached(ctx context.Context, key string, logger zerolog.Logger) ([]domain.Post, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("collector: кэш недоступен")
		}
		return nil, false
	}
	var posts []domain.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		logger.Warn().Err(err).Msg("collector: повреждённая запись кэша")
		return nil, false
	}
	logger.Debug().Int("posts", len(posts)).Msg("collector: посты взяты из кэша")
	return posts, true
}

func (s *Service) store(ctx context.Context, key string, posts []domain.Post, logger zerolog.Logger) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(posts)
	if err != nil {
		logger.Warn().Err(err).Msg("collector: не удалось сериализовать посты для кэша")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		logger.Warn().Err(err).Msg("collector: не удалось записать кэш")
	}
}

// FilterByDate оставляет посты внутри периода. Посты без даты не отбрасываются.
func FilterByDate(posts []domain.Post, dr domain.DateRange) []domain.Post {
	if dr.IsZero() {
		return posts
	}
	out := posts[:0:0]
	for _, p := range posts {
		if dr.Contains(p.PublishedAt) {
			out = append(out, p)
		}
	}
	return out
}

func cacheKey(job domain.FetchJob) string {
	key := fmt.Sprintf("posts:%s:%s:%d", job.Platform, domain.NormalizeRef(job.TargetURL), job.Limit)
	if job.DateRange.From != nil {
		key += ":from=" + job.DateRange.From.UTC().Format("2006-01-02")
	}
	if job.DateRange.To != nil {
		key += ":to=" + job.DateRange.To.UTC().Format("2006-01-02")
	}
	if job.WithComments {
		key += fmt.Sprintf(":c=%d:%s", job.CommentsPerPost, job.CommentMode)
	}
	if job.WithReactions {
		key += ":r"
	}
	return key
}

func userMessage(err error) string {
	if ae, ok := domain.AsActorError(err); ok {
		return ae.UserMessage
	}
	return err.Error()
}
