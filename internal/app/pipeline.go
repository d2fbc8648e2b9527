// Package app собирает зависимости конвейера сбора из конфигурации.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"social-pulse/internal/adapters/platform"
	"social-pulse/internal/adapters/repo"
	"social-pulse/internal/adapters/telegram"
	"social-pulse/internal/domain"
	"social-pulse/internal/infra/apify"
	"social-pulse/internal/infra/cache"
	"social-pulse/internal/infra/config"
	"social-pulse/internal/infra/db"
	"social-pulse/internal/infra/queue"
	"social-pulse/internal/usecase/comments"
	"social-pulse/internal/usecase/scrape"
)

const connectTimeout = 10 * time.Second

// Pipeline — собранный конвейер и его хранилища.
type Pipeline struct {
	Scrape   *scrape.Service
	Registry *platform.Registry
	Files    *repo.Files
	// Posts — хранилище для чтения: Postgres, затем MongoDB, иначе файлы.
	Posts    domain.PostRepo
	// Runs читает журнал запусков; nil без Postgres и MongoDB.
	Runs     domain.RunReader
	Redis    *redis.Client
	Cache    domain.Cache
	Notifier domain.Notifier

	closers []func()
}

// Build подключает хранилища, заданные в конфигурации. Отсутствующие
// адреса просто отключают соответствующий слой.
func Build(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Pipeline, error) {
	p := &Pipeline{
		Registry: platform.NewRegistry(cfg.Actors),
		Files:    repo.NewFiles(cfg.DataDir),
	}
	p.Posts = p.Files
	sinks := []domain.PostRepo{p.Files}
	var runs []domain.RunRepo

	if cfg.PGDSN != "" {
		connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		pool, err := db.Connect(connCtx, cfg.PGDSN)
		cancel()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		p.closers = append(p.closers, pool.Close)
		pg := repo.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			p.Close()
			return nil, err
		}
		sinks = append(sinks, pg)
		runs = append(runs, pg)
		p.Posts = pg
		p.Runs = pg
	}

	if cfg.MongoURI != "" {
		connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		client, err := db.ConnectMongo(connCtx, cfg.MongoURI)
		cancel()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("mongo: %w", err)
		}
		p.closers = append(p.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(closeCtx)
		})
		mg := repo.NewMongo(client.Database(cfg.MongoDB))
		if err := mg.EnsureIndexes(ctx); err != nil {
			p.Close()
			return nil, err
		}
		sinks = append(sinks, mg)
		runs = append(runs, mg)
		if cfg.PGDSN == "" {
			p.Posts = mg
			p.Runs = mg
		}
	}

	opts := []scrape.Option{
		scrape.WithArchive(p.Files),
		scrape.WithSinks(sinks...),
		scrape.WithRunRepos(runs...),
		scrape.WithLimits(scrape.Limits{
			MaxPosts:        cfg.Limits.MaxPosts,
			MaxComments:     cfg.Limits.MaxComments,
			ReactionsBatch:  cfg.Limits.ReactionsBatch,
			ReactionsPerRun: cfg.Limits.ReactionsPerRun,
			ReactionsDelay:  cfg.Limits.ReactionsDelay,
		}),
	}

	if cfg.RedisAddr != "" {
		p.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		p.closers = append(p.closers, func() { _ = p.Redis.Close() })
		p.Cache = cache.NewRedis(p.Redis, "social-pulse:")
		opts = append(opts, scrape.WithCache(p.Cache, cfg.CacheTTL))
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		n, err := telegram.NewBotNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn().Err(err).Msg("app: отчёты в Telegram отключены")
		} else {
			p.Notifier = n
		}
	}

	client := apify.New(cfg.Apify.BaseURL, cfg.Apify.Token,
		apify.WithTimeout(cfg.Apify.Timeout),
		apify.WithPollInterval(cfg.Apify.PollInterval),
		apify.WithRetryPolicy(apify.RetryPolicy{
			MaxAttempts: cfg.Apify.MaxAttempts,
			BaseDelay:   cfg.Apify.BaseDelay,
			MaxDelay:    cfg.Apify.MaxDelay,
			Jitter:      apify.DefaultRetryPolicy().Jitter,
		}),
		apify.WithLogger(logger.With().Str("component", "apify").Logger()),
	)
	commentsSvc := comments.NewService(client, logger.With().Str("component", "comments").Logger(),
		cfg.Limits.CommentWorkers, cfg.Limits.CommentDelay)
	p.Scrape = scrape.NewService(client, p.Registry, commentsSvc, logger.With().Str("component", "scrape").Logger(), opts...)
	return p, nil
}

// OpenQueue открывает очередь задач выбранного бэкенда.
func (p *Pipeline) OpenQueue(cfg config.AppConfig) (domain.FetchQueue, error) {
	switch cfg.Queues.Backend {
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("queue: не указан RABBITMQ_URL")
		}
		q, err := queue.NewRabbitFetchQueue(cfg.RabbitURL, cfg.Queues.Fetch)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func() { _ = q.Close() })
		return q, nil
	case "redis", "":
		if p.Redis == nil {
			return nil, fmt.Errorf("queue: не указан REDIS_ADDR")
		}
		return queue.NewRedisFetchQueue(p.Redis, cfg.Queues.Fetch), nil
	}
	return nil, fmt.Errorf("queue: неизвестный бэкенд %q", cfg.Queues.Backend)
}

// Close освобождает подключения в обратном порядке.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}
