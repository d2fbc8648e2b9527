package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

const (
	// DefaultBaseURL — публичный API Apify.
	DefaultBaseURL = "https://api.apify.com"

	defaultTimeout      = 300 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultPageSize     = 1000
	maxWaitForFinish    = 60 * time.Second
	maxResponseBytes    = 64 << 20
)

const (
	statusSucceeded = "SUCCEEDED"
	statusFailed    = "FAILED"
	statusAborted   = "ABORTED"
	statusTimedOut  = "TIMED-OUT"
)

// Client запускает акторы Apify и читает их датасеты.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	policy       RetryPolicy
	timeout      time.Duration
	pollInterval time.Duration
	pageSize     int
	log          zerolog.Logger
}

var _ domain.ActorRunner = (*Client)(nil)

// Option настраивает клиента.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryPolicy задаёт политику повторов.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p.normalized() }
}

// WithTimeout задаёт таймаут запуска по умолчанию.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPollInterval задаёт паузу между опросами статуса запуска.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithPageSize задаёт размер страницы при чтении датасета.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// New создаёт клиента Apify.
func New(baseURL, token string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      baseURL,
		token:        token,
		httpClient:   &http.Client{Timeout: maxWaitForFinish + 30*time.Second},
		policy:       DefaultRetryPolicy(),
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
		pageSize:     defaultPageSize,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunOptions ограничивает один запуск.
type RunOptions struct {
	// Timeout ограничивает весь цикл запуск+опрос+чтение. Ноль — таймаут клиента.
	Timeout time.Duration
	// ItemCap ограничивает число читаемых записей. Ноль — без ограничения.
	ItemCap int
}

type runInfo struct {
	ID               string `json:"id"`
	ActID            string `json:"actId"`
	Status           string `json:"status"`
	StatusMessage    string `json:"statusMessage"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

func (r runInfo) terminal() bool {
	switch r.Status {
	case statusSucceeded, statusFailed, statusAborted, statusTimedOut:
		return true
	}
	return false
}

type runEnvelope struct {
	Data runInfo `json:"data"`
}

// Run запускает актор из JobRequest с таймаутом клиента.
func (c *Client) Run(ctx context.Context, req domain.JobRequest) (domain.JobResult, error) {
	return c.SubmitAndWait(ctx, req.ActorID, req.Input, RunOptions{ItemCap: req.Limit})
}

// SubmitAndWait запускает актор, дожидается завершения и читает датасет.
// Любая ошибка возвращается как *domain.ActorError и дублируется в JobResult.Err.
func (c *Client) SubmitAndWait(ctx context.Context, actorID string, input map[string]any, opts RunOptions) (domain.JobResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	runLog := c.log.With().Str("actor", actorID).Logger()

	result, err := c.submitAndWait(ctx, runLog, actorID, input, opts.ItemCap)
	if err != nil {
		ae := toActorError(ctx, err)
		result.Err = ae
		result.Status = domain.JobFailed
		if ae.Kind == domain.KindTimeout {
			result.Status = domain.JobTimedOut
		}
		metrics.ObserveActorRun(actorID, string(result.Status), start)
		runLog.Warn().Str("kind", string(ae.Kind)).Str("run_id", result.RunID).Err(ae).Msg("apify: запуск завершился ошибкой")
		return result, ae
	}
	result.Status = domain.JobSucceeded
	metrics.ObserveActorRun(actorID, string(result.Status), start)
	runLog.Info().
		Str("run_id", result.RunID).
		Int("records", len(result.Records)).
		Dur("elapsed", time.Since(start)).
		Msg("apify: запуск завершён")
	return result, nil
}

func (c *Client) submitAndWait(ctx context.Context, logger zerolog.Logger, actorID string, input map[string]any, itemCap int) (domain.JobResult, error) {
	var result domain.JobResult
	if strings.TrimSpace(actorID) == "" {
		return result, domain.NewActorError(domain.KindValidation, "actor id is empty", nil)
	}
	if input == nil {
		input = map[string]any{}
	}

	run, err := c.startRun(ctx, actorID, input)
	if err != nil {
		return result, err
	}
	result.RunID = run.ID
	logger.Debug().Str("run_id", run.ID).Str("status", run.Status).Msg("apify: запуск создан")

	for !run.terminal() {
		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return result, err
		}
		run, err = c.getRun(ctx, actorID, run.ID)
		if err != nil {
			return result, err
		}
		logger.Debug().Str("run_id", run.ID).Str("status", run.Status).Msg("apify: статус запуска")
	}

	switch run.Status {
	case statusSucceeded:
	case statusTimedOut:
		ae := domain.NewActorError(domain.KindTimeout, "actor run timed out on the platform", nil)
		ae.Retriable = false
		return result, ae
	default:
		detail := fmt.Sprintf("run %s finished with status %s", run.ID, run.Status)
		if run.StatusMessage != "" {
			detail += ": " + run.StatusMessage
		}
		return result, domain.NewActorError(domain.KindUnknown, detail, nil)
	}

	if run.DefaultDatasetID == "" {
		return result, domain.NewActorError(domain.KindValidation, "run "+run.ID+" produced no dataset", nil)
	}
	result.DatasetID = run.DefaultDatasetID

	records, err := c.FetchResultRecords(ctx, run.DefaultDatasetID, itemCap)
	result.Records = records
	if err != nil {
		return result, err
	}
	return result, nil
}

func (c *Client) startRun(ctx context.Context, actorID string, input map[string]any) (runInfo, error) {
	path := "/v2/acts/" + url.PathEscape(strings.ReplaceAll(actorID, "/", "~")) + "/runs"
	var env runEnvelope
	_, err := c.withRetry(ctx, "run_start", func(ctx context.Context) error {
		env = runEnvelope{}
		return c.do(ctx, "run_start", actorID, http.MethodPost, path, nil, input, &env)
	})
	if err != nil {
		return runInfo{}, err
	}
	if env.Data.ID == "" {
		return runInfo{}, domain.NewActorError(domain.KindUnknown, "run id missing in response", nil)
	}
	return env.Data, nil
}

func (c *Client) getRun(ctx context.Context, actorID, runID string) (runInfo, error) {
	path := "/v2/actor-runs/" + url.PathEscape(runID)
	query := url.Values{}
	if wait := waitForFinish(ctx); wait > 0 {
		query.Set("waitForFinish", strconv.Itoa(wait))
	}
	var env runEnvelope
	_, err := c.withRetry(ctx, "run_get", func(ctx context.Context) error {
		env = runEnvelope{}
		return c.do(ctx, "run_get", actorID, http.MethodGet, path, query, nil, &env)
	})
	if err != nil {
		return runInfo{}, err
	}
	if env.Data.ID == "" {
		env.Data.ID = runID
	}
	return env.Data, nil
}

// FetchResultRecords постранично читает датасет, пока не наберёт itemCap записей
// или не встретит неполную страницу.
func (c *Client) FetchResultRecords(ctx context.Context, datasetID string, itemCap int) ([]domain.Record, error) {
	if strings.TrimSpace(datasetID) == "" {
		return nil, domain.NewActorError(domain.KindValidation, "dataset id is empty", nil)
	}
	path := "/v2/datasets/" + url.PathEscape(datasetID) + "/items"
	var out []domain.Record
	offset := 0
	for {
		pageSize := c.pageSize
		if itemCap > 0 {
			remaining := itemCap - len(out)
			if remaining <= 0 {
				break
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}
		query := url.Values{}
		query.Set("offset", strconv.Itoa(offset))
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("clean", "true")
		query.Set("format", "json")

		var page []domain.Record
		_, err := c.withRetry(ctx, "dataset_items", func(ctx context.Context) error {
			page = nil
			return c.do(ctx, "dataset_items", datasetID, http.MethodGet, path, query, nil, &page)
		})
		if err != nil {
			return out, toActorError(ctx, err)
		}
		out = append(out, page...)
		offset += len(page)
		if len(page) < pageSize {
			break
		}
	}
	if itemCap > 0 && len(out) > itemCap {
		out = out[:itemCap]
	}
	return out, nil
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, op, target, method, path string, query url.Values, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("apify", op, target, start, err)
	}()

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return domain.NewActorError(domain.KindValidation, "encode input: "+mErr.Error(), mErr)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return domain.NewActorError(domain.KindUnknown, "build request: "+err.Error(), err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransport(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	// Числовые идентификаторы записей длиннее 2^53 не переживают float64.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return domain.NewActorError(domain.KindUnknown, "decode response: "+err.Error(), err)
	}
	return nil
}

func waitForFinish(ctx context.Context) int {
	wait := maxWaitForFinish
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline) - time.Second; remaining < wait {
			wait = remaining
		}
	}
	if wait < time.Second {
		return 0
	}
	return int(wait / time.Second)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
