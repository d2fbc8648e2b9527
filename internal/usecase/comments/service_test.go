package comments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
)

type stubAdapter struct{}

func (stubAdapter) Platform() domain.Platform          { return domain.PlatformFacebook }
func (stubAdapter) ValidateTargetURL(string) bool      { return true }
func (stubAdapter) EngagementRate(domain.Post) float64 { return 0 }

func (stubAdapter) BuildPostsJob(target string, limit int, dr domain.DateRange) domain.JobRequest {
	return domain.JobRequest{Kind: domain.JobKindPosts, TargetRefs: []string{target}, Limit: limit, DateRange: dr}
}

func (stubAdapter) BuildCommentsJob(urls []string, totalCap int) domain.JobRequest {
	return domain.JobRequest{Kind: domain.JobKindComments, ActorID: "comments", TargetRefs: urls, Limit: totalCap}
}

func (stubAdapter) NormalizePost(domain.Record) (domain.Post, bool) { return domain.Post{}, false }

func (stubAdapter) NormalizeComment(r domain.Record) (domain.Comment, bool) {
	id, _ := r["id"].(string)
	if id == "" {
		return domain.Comment{}, false
	}
	ref, _ := r["post"].(string)
	return domain.Comment{ID: id, ParentPostRef: ref}, true
}

type stubRunner struct {
	mu       sync.Mutex
	requests []domain.JobRequest
	handle   func(domain.JobRequest) (domain.JobResult, error)
}

func (s *stubRunner) Run(_ context.Context, req domain.JobRequest) (domain.JobResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.handle(req)
}

func testPosts() []domain.Post {
	return []domain.Post{
		{ID: "a", URL: "https://www.facebook.com/page/posts/a"},
		{ID: "b", URL: "https://www.facebook.com/page/posts/b"},
		{ID: "c", URL: "https://www.facebook.com/page/posts/c"},
	}
}

func rec(id, post string) domain.Record { return domain.Record{"id": id, "post": post} }

func TestFetchBatchScalesCapByPostCount(t *testing.T) {
	runner := &stubRunner{handle: func(domain.JobRequest) (domain.JobResult, error) {
		return domain.JobResult{Status: domain.JobSucceeded}, nil
	}}
	svc := NewService(runner, zerolog.Nop(), 3, 0)

	if _, err := svc.FetchBatch(context.Background(), stubAdapter{}, testPosts(), 10); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(runner.requests) != 1 {
		t.Fatalf("ожидали один запуск, получили %d", len(runner.requests))
	}
	req := runner.requests[0]
	if req.Limit != 30 {
		t.Fatalf("ожидали лимит 30, получили %d", req.Limit)
	}
	if len(req.TargetRefs) != 3 {
		t.Fatalf("ожидали три ссылки, получили %v", req.TargetRefs)
	}
}

func TestFetchBatchCapCountsOnlyLinkedPosts(t *testing.T) {
	runner := &stubRunner{handle: func(domain.JobRequest) (domain.JobResult, error) {
		return domain.JobResult{Status: domain.JobSucceeded}, nil
	}}
	svc := NewService(runner, zerolog.Nop(), 3, 0)
	posts := append(testPosts(), domain.Post{ID: "d"}, domain.Post{ID: "e"})

	if _, err := svc.FetchBatch(context.Background(), stubAdapter{}, posts, 10); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	req := runner.requests[0]
	if len(req.TargetRefs) != 3 || req.Limit != 30 {
		t.Fatalf("посты без ссылки не должны увеличивать лимит: %d ссылок, лимит %d", len(req.TargetRefs), req.Limit)
	}
}

func TestFetchBatchMergesByPostReference(t *testing.T) {
	runner := &stubRunner{handle: func(domain.JobRequest) (domain.JobResult, error) {
		return domain.JobResult{Status: domain.JobSucceeded, Records: []domain.Record{
			rec("a1", "https://facebook.com/page/posts/a"),
			rec("b1", "https://m.facebook.com/page/posts/b/?comment_id=1"),
			rec("a2", "a"),
			rec("x1", "https://facebook.com/page/posts/zzz"),
			rec("a3", "https://www.facebook.com/page/posts/a#top"),
			rec("b2", "b"),
			{"post": "a"},
		}}, nil
	}}
	svc := NewService(runner, zerolog.Nop(), 3, 0)
	posts := testPosts()

	res, err := svc.FetchBatch(context.Background(), stubAdapter{}, posts, 10)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got := ids(posts[0].Comments); got != "a1,a2,a3" {
		t.Fatalf("ожидали комментарии a1,a2,a3 у поста A, получили %s", got)
	}
	if got := ids(posts[1].Comments); got != "b1,b2" {
		t.Fatalf("ожидали комментарии b1,b2 у поста B, получили %s", got)
	}
	if len(posts[2].Comments) != 0 {
		t.Fatalf("ожидали пустой пост C, получили %d", len(posts[2].Comments))
	}
	if res.Attached != 5 || res.Unmatched != 1 || res.Dropped != 1 {
		t.Fatalf("неожиданные счётчики: %+v", res)
	}
	if CountComments(res.Posts) != 5 {
		t.Fatalf("ожидали 5 комментариев в результате")
	}
}

func TestFetchBatchFailureKeepsPosts(t *testing.T) {
	runErr := domain.NewActorError(domain.KindServer, "boom", nil)
	runner := &stubRunner{handle: func(domain.JobRequest) (domain.JobResult, error) {
		return domain.JobResult{Status: domain.JobFailed, Err: runErr}, runErr
	}}
	svc := NewService(runner, zerolog.Nop(), 3, 0)
	posts := testPosts()

	res, err := svc.FetchBatch(context.Background(), stubAdapter{}, posts, 5)
	if err == nil {
		t.Fatalf("ожидали ошибку пакетной загрузки")
	}
	if domain.ErrorKindOf(err) != domain.KindServer {
		t.Fatalf("ожидали сохранение вида ошибки, получили %s", domain.ErrorKindOf(err))
	}
	if len(res.Posts) != 3 || CountComments(res.Posts) != 0 {
		t.Fatalf("ожидали исходные посты без комментариев")
	}
	if len(res.Failures) != 1 || res.Failures[0].PostID != "" {
		t.Fatalf("ожидали один общий сбой, получили %+v", res.Failures)
	}
}

func TestFetchIndividualIsolatesFailures(t *testing.T) {
	runner := &stubRunner{handle: func(req domain.JobRequest) (domain.JobResult, error) {
		target := req.TargetRefs[0]
		if target == "https://www.facebook.com/page/posts/b" {
			return domain.JobResult{}, domain.NewActorError(domain.KindRateLimited, "429", nil)
		}
		return domain.JobResult{Status: domain.JobSucceeded, Records: []domain.Record{
			rec("1-"+target[len(target)-1:], ""),
			rec("2-"+target[len(target)-1:], ""),
		}}, nil
	}}
	svc := NewService(runner, zerolog.Nop(), 3, 0)
	posts := testPosts()

	res, err := svc.FetchIndividual(context.Background(), stubAdapter{}, posts, 7)
	if err != nil {
		t.Fatalf("сбой одного поста не должен быть общей ошибкой: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].PostID != "b" {
		t.Fatalf("ожидали один сбой по посту b, получили %+v", res.Failures)
	}
	if domain.ErrorKindOf(res.Failures[0].Err) != domain.KindRateLimited {
		t.Fatalf("ожидали ошибку rate_limited, получили %v", res.Failures[0].Err)
	}
	if got := ids(posts[0].Comments); got != "1-a,2-a" {
		t.Fatalf("ожидали комментарии поста a, получили %s", got)
	}
	if len(posts[1].Comments) != 0 {
		t.Fatalf("пост b не должен получить комментарии")
	}
	if got := ids(posts[2].Comments); got != "1-c,2-c" {
		t.Fatalf("ожидали комментарии поста c, получили %s", got)
	}
	if posts[0].Comments[0].ParentPostRef != posts[0].URL {
		t.Fatalf("ожидали ссылку на родительский пост, получили %q", posts[0].Comments[0].ParentPostRef)
	}
	for _, req := range runner.requests {
		if req.Limit != 7 || len(req.TargetRefs) != 1 {
			t.Fatalf("ожидали запуск на один пост с лимитом 7, получили %+v", req)
		}
	}
}

func TestFetchIndividualCanceledRecordsEveryPost(t *testing.T) {
	runner := &stubRunner{handle: func(domain.JobRequest) (domain.JobResult, error) {
		return domain.JobResult{Status: domain.JobSucceeded}, nil
	}}
	svc := NewService(runner, zerolog.Nop(), 2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.FetchIndividual(ctx, stubAdapter{}, testPosts(), 5)
	if err != nil {
		t.Fatalf("сбои постов не должны становиться общей ошибкой: %v", err)
	}
	if len(res.Failures) != 3 || len(runner.requests) != 0 {
		t.Fatalf("ожидали сбой каждого поста без запусков, получили %d сбоев и %d запусков", len(res.Failures), len(runner.requests))
	}
	for _, f := range res.Failures {
		if !errors.Is(f.Err, context.Canceled) {
			t.Fatalf("пост %s: ожидали context.Canceled, получили %v", f.PostID, f.Err)
		}
	}
}

func TestFetchIndividualRespectsWorkerLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	runner := &stubRunner{handle: func(domain.JobRequest) (domain.JobResult, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return domain.JobResult{Status: domain.JobSucceeded}, nil
	}}
	svc := NewService(runner, zerolog.Nop(), 2, 0)
	posts := append(testPosts(), domain.Post{ID: "d", URL: "https://facebook.com/page/posts/d"}, domain.Post{ID: "e", URL: "https://facebook.com/page/posts/e"})

	if _, err := svc.FetchIndividual(context.Background(), stubAdapter{}, posts, 3); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if maxSeen > 2 {
		t.Fatalf("ожидали не больше двух параллельных запусков, получили %d", maxSeen)
	}
	if len(runner.requests) != 5 {
		t.Fatalf("ожидали пять запусков, получили %d", len(runner.requests))
	}
}

func TestFetchIndividualSpacesCalls(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	runner := &stubRunner{handle: func(domain.JobRequest) (domain.JobResult, error) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		return domain.JobResult{Status: domain.JobSucceeded}, nil
	}}
	svc := NewService(runner, zerolog.Nop(), 3, 30*time.Millisecond)

	start := time.Now()
	if _, err := svc.FetchIndividual(context.Background(), stubAdapter{}, testPosts(), 3); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("ожидали паузы между запусками, прошло %s", elapsed)
	}
	if len(times) != 3 {
		t.Fatalf("ожидали три запуска, получили %d", len(times))
	}
}

func TestFetchDispatchesByMode(t *testing.T) {
	runner := &stubRunner{handle: func(domain.JobRequest) (domain.JobResult, error) {
		return domain.JobResult{Status: domain.JobSucceeded}, nil
	}}
	svc := NewService(runner, zerolog.Nop(), 3, 0)

	res, err := svc.Fetch(context.Background(), stubAdapter{}, testPosts(), Options{Mode: domain.CommentModeIndividual, LimitPerPost: 2})
	if err != nil || res.Mode != domain.CommentModeIndividual || len(runner.requests) != 3 {
		t.Fatalf("ожидали поштучный режим: %v %+v", err, res)
	}
	_, err = svc.Fetch(context.Background(), stubAdapter{}, testPosts(), Options{Mode: "parallel", LimitPerPost: 2})
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("ожидали ErrUnknownMode, получили %v", err)
	}
}

func ids(comments []domain.Comment) string {
	out := ""
	for i, c := range comments {
		if i > 0 {
			out += ","
		}
		out += c.ID
	}
	return out
}
