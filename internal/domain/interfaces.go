package domain

import (
	"context"
	"time"
)

// ActorRunner запускает актор и возвращает его датасет.
type ActorRunner interface {
	Run(ctx context.Context, req JobRequest) (JobResult, error)
}

// PostRepo сохраняет и читает нормализованные посты.
type PostRepo interface {
	SavePosts(ctx context.Context, posts []Post) error
	ListPosts(ctx context.Context, platform Platform, limit int) ([]Post, error)
}

// RunRepo ведёт журнал запусков сбора.
type RunRepo interface {
	StartRun(ctx context.Context, run ScrapeRun) error
	FinishRun(ctx context.Context, run ScrapeRun) error
}

// RunReader читает журнал запусков. GetRun возвращает ErrRunNotFound,
// если запуска нет.
type RunReader interface {
	GetRun(ctx context.Context, id string) (ScrapeRun, error)
}

// Cache используется для простых TTL-хранилищ. Get возвращает ErrCacheMiss,
// если ключа нет.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// RawArchive сохраняет сырые записи актора до нормализации.
type RawArchive interface {
	SaveRaw(ctx context.Context, platform Platform, records []Record) (string, error)
}

// TargetResolver выбирает адаптер по платформе и ссылке.
type TargetResolver interface {
	Resolve(p Platform, rawURL string) (PlatformAdapter, error)
}

// Notifier отправляет короткие отчёты о запусках.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// PlatformAdapter переводит запросы и записи актора конкретной платформы
// в общую схему постов и комментариев. Реализации не хранят состояния.
type PlatformAdapter interface {
	Platform() Platform
	ValidateTargetURL(raw string) bool
	BuildPostsJob(target string, limit int, dateRange DateRange) JobRequest
	BuildCommentsJob(postURLs []string, totalCap int) JobRequest
	// NormalizePost возвращает false, если у записи нет идентификатора.
	NormalizePost(raw Record) (Post, bool)
	NormalizeComment(raw Record) (Comment, bool)
	EngagementRate(post Post) float64
}

// ReactionSource — платформа, умеющая собирать разбивку реакций отдельным актором.
type ReactionSource interface {
	BuildReactionsJob(postURLs []string, limit int) JobRequest
	MergeReactions(posts []Post, records []Record) int
}
