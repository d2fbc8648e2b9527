package apify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"social-pulse/internal/domain"
)

// fakeApify эмулирует эндпоинты запусков и датасетов.
type fakeApify struct {
	mu sync.Mutex

	submitFailures []int
	submits        int
	polls          int
	itemRequests   int

	runStatus   string
	statusMsg   string
	datasetID   string
	neverFinish bool
	items       int
	auth        string
	lastInput   map[string]any
	lastPath    string
}

func (f *fakeApify) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/acts/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submits++
		f.auth = r.Header.Get("Authorization")
		f.lastPath = r.URL.Path
		if len(f.submitFailures) > 0 {
			status := f.submitFailures[0]
			f.submitFailures = f.submitFailures[1:]
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"type":"x","message":"fail"}}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.lastInput)
		writeRun(w, "run-1", "RUNNING", "", "")
	})
	mux.HandleFunc("/v2/actor-runs/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.polls++
		if f.neverFinish {
			writeRun(w, "run-1", "RUNNING", "", "")
			return
		}
		status := f.runStatus
		if status == "" {
			status = "SUCCEEDED"
		}
		writeRun(w, "run-1", status, f.datasetID, f.statusMsg)
	})
	mux.HandleFunc("/v2/datasets/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.itemRequests++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var page []map[string]any
		for i := offset; i < f.items && len(page) < limit; i++ {
			page = append(page, map[string]any{"id": fmt.Sprintf("item-%d", i)})
		}
		if page == nil {
			page = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	return mux
}

type fakeCounts struct {
	submits      int
	itemRequests int
	auth         string
	lastPath     string
	lastInput    map[string]any
}

func (f *fakeApify) counts() fakeCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeCounts{submits: f.submits, itemRequests: f.itemRequests, auth: f.auth, lastPath: f.lastPath, lastInput: f.lastInput}
}

func writeRun(w http.ResponseWriter, id, status, dataset, msg string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
		"id":               id,
		"status":           status,
		"defaultDatasetId": dataset,
		"statusMessage":    msg,
	}})
}

func newTestClient(t *testing.T, fake *fakeApify, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	base := []Option{
		WithRetryPolicy(fastPolicy()),
		WithPollInterval(5 * time.Millisecond),
		WithTimeout(5 * time.Second),
	}
	return New(srv.URL, "secret", append(base, opts...)...)
}

func TestSubmitAndWaitSuccess(t *testing.T) {
	fake := &fakeApify{datasetID: "ds-1", items: 25}
	client := newTestClient(t, fake)

	res, err := client.SubmitAndWait(context.Background(), "apify/instagram-scraper", map[string]any{"resultsLimit": 10}, RunOptions{ItemCap: 10})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Status != domain.JobSucceeded || res.RunID != "run-1" || res.DatasetID != "ds-1" {
		t.Fatalf("неожиданный результат: %+v", res)
	}
	if len(res.Records) != 10 {
		t.Fatalf("ожидали 10 записей, получили %d", len(res.Records))
	}
	if fake.counts().auth != "Bearer secret" {
		t.Fatalf("ожидали bearer-токен, получили %q", fake.counts().auth)
	}
	if fake.counts().lastPath != "/v2/acts/apify~instagram-scraper/runs" {
		t.Fatalf("неожиданный путь запуска: %s", fake.counts().lastPath)
	}
	if fake.counts().lastInput["resultsLimit"] != float64(10) {
		t.Fatalf("вход актора не передан: %v", fake.counts().lastInput)
	}
}

func TestRateLimitedRetryCount(t *testing.T) {
	for n := 0; n < 4; n++ {
		failures := make([]int, n)
		for i := range failures {
			failures[i] = http.StatusTooManyRequests
		}
		fake := &fakeApify{datasetID: "ds", items: 1, submitFailures: failures}
		client := newTestClient(t, fake)

		_, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{})
		if err != nil {
			t.Fatalf("n=%d: не ожидали ошибку: %v", n, err)
		}
		if retries := fake.counts().submits - 1; retries != n {
			t.Fatalf("n=%d: ожидали %d повторов, получили %d", n, n, retries)
		}
	}
}

func TestRateLimitedExhaustsAttempts(t *testing.T) {
	fake := &fakeApify{submitFailures: []int{429, 429, 429, 429, 429, 429}}
	client := newTestClient(t, fake)

	res, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{})
	ae, ok := domain.AsActorError(err)
	if !ok || ae.Kind != domain.KindRateLimited {
		t.Fatalf("ожидали rate_limited, получили %v", err)
	}
	if !ae.Retriable || ae.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("неожиданные поля ошибки: %+v", ae)
	}
	if fake.counts().submits != 4 {
		t.Fatalf("ожидали ровно 4 попытки, получили %d", fake.counts().submits)
	}
	if res.Status != domain.JobFailed || res.Err == nil {
		t.Fatalf("ожидали failed с ошибкой в результате: %+v", res)
	}
}

func TestAuthErrorIsNotRetried(t *testing.T) {
	fake := &fakeApify{submitFailures: []int{http.StatusUnauthorized}}
	client := newTestClient(t, fake)

	_, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{})
	ae, ok := domain.AsActorError(err)
	if !ok || ae.Kind != domain.KindAuth || ae.Retriable {
		t.Fatalf("ожидали неповторяемую auth, получили %v", err)
	}
	if ae.UserMessage == "" {
		t.Fatalf("ожидали сообщение для пользователя")
	}
	if fake.counts().submits != 1 {
		t.Fatalf("auth не должен повторяться, попыток %d", fake.counts().submits)
	}
}

func TestServerErrorsRecover(t *testing.T) {
	fake := &fakeApify{datasetID: "ds", items: 2, submitFailures: []int{502, 503}}
	client := newTestClient(t, fake)

	res, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(res.Records) != 2 || fake.counts().submits != 3 {
		t.Fatalf("ожидали 2 записи за 3 попытки, получили %d за %d", len(res.Records), fake.counts().submits)
	}
}

func TestMissingDatasetIsValidationError(t *testing.T) {
	fake := &fakeApify{}
	client := newTestClient(t, fake)

	_, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{})
	ae, ok := domain.AsActorError(err)
	if !ok || ae.Kind != domain.KindValidation || ae.Retriable {
		t.Fatalf("ожидали validation, получили %v", err)
	}
}

func TestFailedRunIsUnknown(t *testing.T) {
	fake := &fakeApify{runStatus: "FAILED", statusMsg: "actor crashed"}
	client := newTestClient(t, fake)

	res, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{})
	ae, ok := domain.AsActorError(err)
	if !ok || ae.Kind != domain.KindUnknown {
		t.Fatalf("ожидали unknown, получили %v", err)
	}
	if res.Status != domain.JobFailed {
		t.Fatalf("ожидали статус failed, получили %s", res.Status)
	}
}

func TestSubmitAndWaitTimeout(t *testing.T) {
	fake := &fakeApify{neverFinish: true}
	client := newTestClient(t, fake)
	timeout := 200 * time.Millisecond

	start := time.Now()
	res, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{Timeout: timeout})
	elapsed := time.Since(start)

	ae, ok := domain.AsActorError(err)
	if !ok || ae.Kind != domain.KindTimeout {
		t.Fatalf("ожидали timeout, получили %v", err)
	}
	if res.Status != domain.JobTimedOut {
		t.Fatalf("ожидали статус timed_out, получили %s", res.Status)
	}
	if elapsed > timeout+time.Second {
		t.Fatalf("вызов длился %s, дольше таймаута", elapsed)
	}
}

func TestMalformedResponseIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()
	client := New(srv.URL, "t", WithRetryPolicy(fastPolicy()))

	_, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{})
	if domain.ErrorKindOf(err) != domain.KindUnknown {
		t.Fatalf("ожидали unknown, получили %v", err)
	}
}

func TestConnectionFailureIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := New(url, "t", WithRetryPolicy(fastPolicy()))

	_, err := client.SubmitAndWait(context.Background(), "a/b", nil, RunOptions{Timeout: 2 * time.Second})
	ae, ok := domain.AsActorError(err)
	if !ok || ae.Kind != domain.KindServer {
		t.Fatalf("ожидали server, получили %v", err)
	}
}

func TestFetchResultRecordsPaginates(t *testing.T) {
	fake := &fakeApify{items: 25}
	client := newTestClient(t, fake, WithPageSize(10))

	records, err := client.FetchResultRecords(context.Background(), "ds", 0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 25 || fake.counts().itemRequests != 3 {
		t.Fatalf("ожидали 25 записей за 3 страницы, получили %d за %d", len(records), fake.counts().itemRequests)
	}
	if records[24]["id"] != "item-24" {
		t.Fatalf("порядок записей нарушен: %v", records[24])
	}
}

func TestFetchResultRecordsStopsAtCap(t *testing.T) {
	fake := &fakeApify{items: 100}
	client := newTestClient(t, fake, WithPageSize(10))

	records, err := client.FetchResultRecords(context.Background(), "ds", 15)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 15 || fake.counts().itemRequests != 2 {
		t.Fatalf("ожидали 15 записей за 2 запроса, получили %d за %d", len(records), fake.counts().itemRequests)
	}
}

func TestRunUsesJobRequest(t *testing.T) {
	fake := &fakeApify{datasetID: "ds", items: 50}
	client := newTestClient(t, fake)

	res, err := client.Run(context.Background(), domain.JobRequest{ActorID: "x/y", Limit: 30, Input: map[string]any{"a": 1}})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(res.Records) != 30 {
		t.Fatalf("ожидали 30 записей по лимиту запроса, получили %d", len(res.Records))
	}
}

func TestFetchResultRecordsKeepsLargeIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"postId":1234567890123456789},{"postId":1234567890123456790}]`))
	}))
	defer srv.Close()
	client := New(srv.URL, "t", WithRetryPolicy(fastPolicy()))

	records, err := client.FetchResultRecords(context.Background(), "ds", 0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ожидали 2 записи, получили %d", len(records))
	}
	if records[0]["postId"] != json.Number("1234567890123456789") || records[1]["postId"] != json.Number("1234567890123456790") {
		t.Fatalf("идентификаторы потеряли точность: %v, %v", records[0]["postId"], records[1]["postId"])
	}
}
