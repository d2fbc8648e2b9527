package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	httpinfra "social-pulse/internal/infra/http"
	"social-pulse/internal/usecase/comments"
	"social-pulse/internal/usecase/scrape"
)

type fakeCollector struct {
	jobs []domain.FetchJob
	res  scrape.Result
	err  error
}

func (f *fakeCollector) Collect(_ context.Context, job domain.FetchJob) (scrape.Result, error) {
	f.jobs = append(f.jobs, job)
	return f.res, f.err
}

type fakePosts struct {
	posts    []domain.Post
	platform domain.Platform
	limit    int
}

func (f *fakePosts) SavePosts(context.Context, []domain.Post) error { return nil }

func (f *fakePosts) ListPosts(_ context.Context, p domain.Platform, limit int) ([]domain.Post, error) {
	f.platform, f.limit = p, limit
	return f.posts, nil
}

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

func (q *fakeQueue) Len(context.Context) (int64, error) {
	return int64(len(q.jobs)), q.err
}

type fakeRuns map[string]domain.ScrapeRun

func (f fakeRuns) GetRun(_ context.Context, id string) (domain.ScrapeRun, error) {
	run, ok := f[id]
	if !ok {
		return domain.ScrapeRun{}, domain.ErrRunNotFound
	}
	return run, nil
}

func newTestRouter(h *handlers) http.Handler {
	if h.now == nil {
		h.now = func() time.Time { return time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC) }
	}
	h.log = zerolog.Nop()
	srv := httpinfra.NewServer(zerolog.Nop(), time.Second)
	srv.Router.Route("/api/v1", func(r chi.Router) { h.routes(r) })
	return srv.Router
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCollectReturnsPostsAndFailures(t *testing.T) {
	col := &fakeCollector{res: scrape.Result{
		RunID:           "run-1",
		Platform:        domain.PlatformFacebook,
		Posts:           []domain.Post{{ID: "1"}},
		CommentFailures: []comments.Failure{{PostID: "1", Err: errors.New("boom")}},
	}}
	router := newTestRouter(&handlers{collect: col, posts: &fakePosts{}})

	rec := do(t, router, http.MethodPost, "/api/v1/collect", `{"target_url":"https://www.facebook.com/nasa","limit":3,"with_comments":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", rec.Code, rec.Body.String())
	}
	var resp collectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("тело не JSON: %v", err)
	}
	if resp.RunID != "run-1" || len(resp.Posts) != 1 || len(resp.CommentFailures) != 1 || resp.CommentFailures[0].Error != "boom" {
		t.Fatalf("неожиданный ответ: %+v", resp)
	}
	if resp.Warnings == nil {
		t.Fatalf("warnings должен быть пустым массивом")
	}
	if len(col.jobs) != 1 || col.jobs[0].Limit != 3 || col.jobs[0].Cause != domain.FetchCauseManual {
		t.Fatalf("неверная задача: %+v", col.jobs)
	}
}

func TestCollectMapsActorErrors(t *testing.T) {
	col := &fakeCollector{err: domain.NewActorError(domain.KindRateLimited, "429", nil)}
	router := newTestRouter(&handlers{collect: col, posts: &fakePosts{}})

	rec := do(t, router, http.MethodPost, "/api/v1/collect", `{"target_url":"https://www.facebook.com/nasa"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("ожидали 429, получили %d", rec.Code)
	}
	var body httpinfra.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Kind != "rate_limited" || !body.Retriable {
		t.Fatalf("неожиданное тело ошибки: %+v", body)
	}
}

func TestCollectRejectsBadInput(t *testing.T) {
	col := &fakeCollector{}
	router := newTestRouter(&handlers{collect: col, posts: &fakePosts{}})

	for _, body := range []string{`{`, `{}`, `{"target_url":"x","platform":"tiktok"}`, `{"target_url":"x","from":"завтра"}`} {
		if rec := do(t, router, http.MethodPost, "/api/v1/collect", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: ожидали 400, получили %d", body, rec.Code)
		}
	}
	if len(col.jobs) != 0 {
		t.Fatalf("сбор не должен запускаться при ошибке ввода")
	}
}

func TestEnqueue(t *testing.T) {
	q := &fakeQueue{}
	router := newTestRouter(&handlers{collect: &fakeCollector{}, posts: &fakePosts{}, queue: q})

	rec := do(t, router, http.MethodPost, "/api/v1/jobs", `{"target_url":"https://www.youtube.com/@nasa","platform":"youtube"}`)
	if rec.Code != http.StatusAccepted || len(q.jobs) != 1 || q.jobs[0].Platform != domain.PlatformYouTube {
		t.Fatalf("ожидали постановку задачи, получили %d %+v", rec.Code, q.jobs)
	}

	q.err = errors.New("down")
	if rec := do(t, router, http.MethodPost, "/api/v1/jobs", `{"target_url":"x"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ожидали 503, получили %d", rec.Code)
	}
}

func TestEnqueueWithoutQueue(t *testing.T) {
	router := newTestRouter(&handlers{collect: &fakeCollector{}, posts: &fakePosts{}})
	if rec := do(t, router, http.MethodPost, "/api/v1/jobs", `{"target_url":"x"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ожидали 503, получили %d", rec.Code)
	}
}

func TestPostsAndAnalytics(t *testing.T) {
	store := &fakePosts{posts: []domain.Post{
		{ID: "1", Platform: domain.PlatformInstagram, Text: "great #go", Engagement: domain.Engagement{Likes: 5}},
	}}
	router := newTestRouter(&handlers{collect: &fakeCollector{}, posts: store})

	rec := do(t, router, http.MethodGet, "/api/v1/posts?platform=instagram&limit=5", "")
	if rec.Code != http.StatusOK || store.platform != domain.PlatformInstagram || store.limit != 5 {
		t.Fatalf("неожиданный ответ %d, фильтры %s/%d", rec.Code, store.platform, store.limit)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/analytics?platform=instagram&metric=likes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var body struct {
		Report struct {
			Summary struct {
				Posts int `json:"posts"`
			} `json:"summary"`
		} `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Report.Summary.Posts != 1 {
		t.Fatalf("неожиданная аналитика: %s", rec.Body.String())
	}

	for _, path := range []string{"/api/v1/posts?platform=tiktok", "/api/v1/posts?limit=0", "/api/v1/analytics?metric=retweets"} {
		if rec := do(t, router, http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: ожидали 400, получили %d", path, rec.Code)
		}
	}
}

func TestQueueStats(t *testing.T) {
	q := &fakeQueue{jobs: []domain.FetchJob{{ID: "a"}, {ID: "b"}}}
	router := newTestRouter(&handlers{collect: &fakeCollector{}, posts: &fakePosts{}, queue: q})

	rec := do(t, router, http.MethodGet, "/api/v1/jobs", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pending":2`) {
		t.Fatalf("ожидали длину очереди 2, получили %d %s", rec.Code, rec.Body.String())
	}
}

func TestRunLookup(t *testing.T) {
	runs := fakeRuns{"run-1": {ID: "run-1", Status: domain.RunCompleted, PostsCount: 3}}
	router := newTestRouter(&handlers{collect: &fakeCollector{}, posts: &fakePosts{}, runs: runs})

	rec := do(t, router, http.MethodGet, "/api/v1/runs/run-1", "")
	var run domain.ScrapeRun
	if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &run) != nil || run.PostsCount != 3 {
		t.Fatalf("неожиданный ответ %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodGet, "/api/v1/runs/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("ожидали 404, получили %d", rec.Code)
	}

	router = newTestRouter(&handlers{collect: &fakeCollector{}, posts: &fakePosts{}})
	if rec := do(t, router, http.MethodGet, "/api/v1/runs/run-1", ""); rec.Code != http.StatusNotImplemented {
		t.Fatalf("без журнала ожидали 501, получили %d", rec.Code)
	}
}
