package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// Postgres хранит посты и журнал запусков в Postgres.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PostRepo  = (*Postgres)(nil)
	_ domain.RunRepo   = (*Postgres)(nil)
	_ domain.RunReader = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
    platform       TEXT        NOT NULL,
    post_id        TEXT        NOT NULL,
    published_at   TIMESTAMPTZ,
    author         TEXT        NOT NULL DEFAULT '',
    text           TEXT        NOT NULL DEFAULT '',
    url            TEXT        NOT NULL DEFAULT '',
    likes          INT         NOT NULL DEFAULT 0,
    comments_count INT         NOT NULL DEFAULT 0,
    shares         INT         NOT NULL DEFAULT 0,
    views          INT         NOT NULL DEFAULT 0,
    reactions      JSONB       NOT NULL DEFAULT '{}'::jsonb,
    comments       JSONB       NOT NULL DEFAULT '[]'::jsonb,
    extra          JSONB       NOT NULL DEFAULT '{}'::jsonb,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (platform, post_id)
)`,
	`CREATE INDEX IF NOT EXISTS posts_platform_published_idx ON posts (platform, published_at DESC)`,
	`CREATE TABLE IF NOT EXISTS scrape_runs (
    id             TEXT PRIMARY KEY,
    platform       TEXT        NOT NULL,
    target_url     TEXT        NOT NULL,
    status         TEXT        NOT NULL,
    posts_count    INT         NOT NULL DEFAULT 0,
    comments_count INT         NOT NULL DEFAULT 0,
    error          TEXT        NOT NULL DEFAULT '',
    started_at     TIMESTAMPTZ NOT NULL,
    finished_at    TIMESTAMPTZ
)`,
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицы, если их нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	for _, stmt := range schema {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
		if err != nil {
			return fmt.Errorf("postgres: schema: %w", err)
		}
	}
	return nil
}

// SavePosts сохраняет посты батчем. Повторный сбор обновляет счётчики,
// а ранее загруженные комментарии сохраняются, если новых нет.
func (p *Postgres) SavePosts(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, post := range posts {
		reactions, comments, extra, err := encodeJSONColumns(post)
		if err != nil {
			return fmt.Errorf("postgres: encode post %s: %w", post.ID, err)
		}
		batch.Queue(`
INSERT INTO posts (platform, post_id, published_at, author, text, url, likes, comments_count, shares, views, reactions, comments, extra, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
ON CONFLICT (platform, post_id) DO UPDATE SET
    published_at = COALESCE(EXCLUDED.published_at, posts.published_at),
    author = EXCLUDED.author,
    text = EXCLUDED.text,
    url = EXCLUDED.url,
    likes = EXCLUDED.likes,
    comments_count = EXCLUDED.comments_count,
    shares = EXCLUDED.shares,
    views = EXCLUDED.views,
    reactions = EXCLUDED.reactions,
    comments = CASE WHEN jsonb_array_length(EXCLUDED.comments) > 0 THEN EXCLUDED.comments ELSE posts.comments END,
    extra = EXCLUDED.extra,
    updated_at = now()
`, string(post.Platform), post.ID, nullTime(post.PublishedAt), post.Author, post.Text, post.URL,
			post.Engagement.Likes, post.Engagement.Comments, post.Engagement.Shares, post.Engagement.Views,
			reactions, comments, extra)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "posts_send_batch", "posts", start, nil)
	defer br.Close()
	for range posts {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "posts_batch_exec", "posts", start, err)
		if err != nil {
			return fmt.Errorf("postgres: upsert posts: %w", err)
		}
	}
	return nil
}

// ListPosts возвращает последние посты платформы; пустая платформа — все.
func (p *Postgres) ListPosts(ctx context.Context, platform domain.Platform, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT platform, post_id, published_at, author, text, url, likes, comments_count, shares, views, reactions, comments, extra
FROM posts
WHERE $1 = '' OR platform = $1
ORDER BY published_at DESC NULLS LAST
LIMIT $2
`, string(platform), limit)
	metrics.ObserveNetworkRequest("postgres", "posts_list", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			post                       domain.Post
			platformRaw                string
			published                  *time.Time
			reactions, comments, extra []byte
		)
		if err := rows.Scan(&platformRaw, &post.ID, &published, &post.Author, &post.Text, &post.URL,
			&post.Engagement.Likes, &post.Engagement.Comments, &post.Engagement.Shares, &post.Engagement.Views,
			&reactions, &comments, &extra); err != nil {
			return nil, err
		}
		post.Platform = domain.Platform(platformRaw)
		if published != nil {
			post.PublishedAt = published.UTC()
		}
		if err := decodeJSONColumns(&post, reactions, comments, extra); err != nil {
			return nil, fmt.Errorf("postgres: decode post %s: %w", post.ID, err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// StartRun записывает начало запуска сбора.
func (p *Postgres) StartRun(ctx context.Context, run domain.ScrapeRun) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO scrape_runs (id, platform, target_url, status, started_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO NOTHING
`, run.ID, string(run.Platform), run.TargetURL, string(run.Status), run.StartedAt)
	metrics.ObserveNetworkRequest("postgres", "scrape_runs_start", "scrape_runs", start, err)
	return err
}

// FinishRun фиксирует итог запуска.
func (p *Postgres) FinishRun(ctx context.Context, run domain.ScrapeRun) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO scrape_runs (id, platform, target_url, status, posts_count, comments_count, error, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    posts_count = EXCLUDED.posts_count,
    comments_count = EXCLUDED.comments_count,
    error = EXCLUDED.error,
    finished_at = EXCLUDED.finished_at
`, run.ID, string(run.Platform), run.TargetURL, string(run.Status), run.PostsCount, run.CommentsCount, run.Error, run.StartedAt, nullTime(run.FinishedAt))
	metrics.ObserveNetworkRequest("postgres", "scrape_runs_finish", "scrape_runs", start, err)
	return err
}

// GetRun возвращает запись о запуске.
func (p *Postgres) GetRun(ctx context.Context, id string) (domain.ScrapeRun, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		run      domain.ScrapeRun
		platform string
		status   string
		finished *time.Time
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, platform, target_url, status, posts_count, comments_count, error, started_at, finished_at
FROM scrape_runs WHERE id = $1
`, id).Scan(&run.ID, &platform, &run.TargetURL, &status, &run.PostsCount, &run.CommentsCount, &run.Error, &run.StartedAt, &finished)
	metrics.ObserveNetworkRequest("postgres", "scrape_runs_get", "scrape_runs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScrapeRun{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.ScrapeRun{}, err
	}
	run.Platform = domain.Platform(platform)
	run.Status = domain.RunStatus(status)
	if finished != nil {
		run.FinishedAt = *finished
	}
	return run, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func encodeJSONColumns(post domain.Post) (reactions, comments, extra []byte, err error) {
	r := post.Engagement.Reactions
	if r == nil {
		r = map[string]int{}
	}
	if reactions, err = json.Marshal(r); err != nil {
		return nil, nil, nil, err
	}
	c := post.Comments
	if c == nil {
		c = []domain.Comment{}
	}
	if comments, err = json.Marshal(c); err != nil {
		return nil, nil, nil, err
	}
	e := post.Extra
	if e == nil {
		e = map[string]any{}
	}
	if extra, err = json.Marshal(e); err != nil {
		return nil, nil, nil, err
	}
	return reactions, comments, extra, nil
}

func decodeJSONColumns(post *domain.Post, reactions, comments, extra []byte) error {
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &post.Engagement.Reactions); err != nil {
			return err
		}
		if len(post.Engagement.Reactions) == 0 {
			post.Engagement.Reactions = nil
		}
	}
	post.Comments = []domain.Comment{}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &post.Comments); err != nil {
			return err
		}
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &post.Extra); err != nil {
			return err
		}
		if len(post.Extra) == 0 {
			post.Extra = nil
		}
	}
	return nil
}
