package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"social-pulse/internal/adapters/platform"
	"social-pulse/internal/domain"
	"social-pulse/internal/infra/config"
)

type fakeQueue struct {
	jobs []domain.FetchJob
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job domain.FetchJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Receive(context.Context) (domain.FetchJob, domain.AckFunc, error) {
	return domain.FetchJob{}, nil, errors.New("not implemented")
}

type memoryCache struct {
	keys map[string]bool
}

func (c *memoryCache) Once(_ context.Context, key string, _ time.Duration, fn func() error) error {
	if c.keys == nil {
		c.keys = map[string]bool{}
	}
	if c.keys[key] {
		return nil
	}
	c.keys[key] = true
	if err := fn(); err != nil {
		delete(c.keys, key)
		return err
	}
	return nil
}

func (c *memoryCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (c *memoryCache) Get(context.Context, string) ([]byte, error) { return nil, domain.ErrCacheMiss }

func newRegistry() *platform.Registry {
	return platform.NewRegistry(config.ActorSet{FacebookPosts: "fb", InstagramPosts: "ig", YouTubePosts: "yt"})
}

func TestTickEnqueuesKnownTargets(t *testing.T) {
	q := &fakeQueue{}
	svc := NewService([]string{
		"https://www.facebook.com/nasa",
		" https://www.facebook.com/nasa/ ",
		"https://www.youtube.com/@nasa",
		"https://example.com/blog",
		"",
	}, newRegistry(), q, nil, Options{Limit: 20, WithComments: true}, zerolog.Nop())

	if got := len(svc.Targets()); got != 3 {
		t.Fatalf("ожидали 3 уникальные ссылки, получили %d", got)
	}

	n, err := svc.Tick(context.Background(), time.Date(2024, 5, 1, 6, 0, 30, 0, time.UTC))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if n != 2 || len(q.jobs) != 2 {
		t.Fatalf("ожидали 2 задачи, получили %d", len(q.jobs))
	}
	job := q.jobs[0]
	if job.Platform != domain.PlatformFacebook || job.Cause != domain.FetchCauseScheduled || job.Limit != 20 || !job.WithComments {
		t.Fatalf("неверная задача: %+v", job)
	}
	if !job.RequestedAt.Equal(time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)) || job.ID == "" {
		t.Fatalf("ожидали слот с точностью до минуты и идентификатор: %+v", job)
	}
	if q.jobs[1].Platform != domain.PlatformYouTube {
		t.Fatalf("ожидали задачу YouTube, получили %s", q.jobs[1].Platform)
	}
}

func TestTickSkipsProcessedSlot(t *testing.T) {
	q := &fakeQueue{}
	cache := &memoryCache{}
	svc := NewService([]string{"https://www.instagram.com/nasa/"}, newRegistry(), q, cache, Options{}, zerolog.Nop())
	now := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

	if n, _ := svc.Tick(context.Background(), now); n != 1 {
		t.Fatalf("первое срабатывание должно поставить задачу")
	}
	if n, _ := svc.Tick(context.Background(), now.Add(20*time.Second)); n != 0 {
		t.Fatalf("повтор в том же слоте не должен ставить задачу")
	}
	if n, _ := svc.Tick(context.Background(), now.Add(time.Hour)); n != 1 {
		t.Fatalf("следующий слот должен поставить задачу")
	}
	if len(q.jobs) != 2 {
		t.Fatalf("ожидали 2 задачи, получили %d", len(q.jobs))
	}
}

func TestTickReleasesSlotOnQueueError(t *testing.T) {
	q := &fakeQueue{err: errors.New("down")}
	cache := &memoryCache{}
	svc := NewService([]string{"https://www.instagram.com/nasa/"}, newRegistry(), q, cache, Options{}, zerolog.Nop())
	now := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

	if _, err := svc.Tick(context.Background(), now); err == nil {
		t.Fatalf("ожидали ошибку очереди")
	}
	q.err = nil
	if n, err := svc.Tick(context.Background(), now); err != nil || n != 1 {
		t.Fatalf("после сбоя слот должен освобождаться: n=%d err=%v", n, err)
	}
}

func TestLoadLocation(t *testing.T) {
	for _, raw := range []string{"Europe/Moscow", "europe/moscow", "America/New York", "UTC"} {
		if _, err := LoadLocation(raw); err != nil {
			t.Fatalf("%q: неожиданная ошибка %v", raw, err)
		}
	}
	for _, raw := range []string{"", "Mars/Olympus"} {
		if _, err := LoadLocation(raw); !errors.Is(err, ErrInvalidTimezone) {
			t.Fatalf("%q: ожидали ErrInvalidTimezone, получили %v", raw, err)
		}
	}
}
