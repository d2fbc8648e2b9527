package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"social-pulse/internal/adapters/platform"
	"social-pulse/internal/app"
	"social-pulse/internal/domain"
	"social-pulse/internal/infra/config"
	httpinfra "social-pulse/internal/infra/http"
	applog "social-pulse/internal/infra/log"
	"social-pulse/internal/infra/metrics"
	"social-pulse/internal/usecase/analytics"
	"social-pulse/internal/usecase/scrape"
)

const maxBodyBytes = 1 << 20

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось собрать конвейер")
	}
	defer pipeline.Close()

	fetchQueue, err := pipeline.OpenQueue(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("api: очередь недоступна, /api/v1/jobs отключён")
	}

	h := &handlers{
		log:      logger.With().Str("component", "api").Logger(),
		pipeline: pipeline,
		queue:    fetchQueue,
		now:      time.Now,
	}

	srv := httpinfra.NewServer(logger, cfg.HTTPTimeout)
	srv.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(httpinfra.APIKeyMiddleware(cfg.APIKey))
		h.routes(r)
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: ошибка остановки сервера")
		}
	}()

	if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil {
		logger.Fatal().Err(err).Msg("api: сервер остановлен с ошибкой")
	}
	logger.Info().Msg("api: остановлен")
}

// collector — часть конвейера, нужная обработчикам.
type collector interface {
	Collect(ctx context.Context, job domain.FetchJob) (scrape.Result, error)
}

type handlers struct {
	log      zerolog.Logger
	pipeline *app.Pipeline
	collect  collector
	posts    domain.PostRepo
	runs     domain.RunReader
	registry *platform.Registry
	queue    domain.FetchQueue
	now      func() time.Time
}

func (h *handlers) routes(r chi.Router) {
	if h.pipeline != nil {
		if h.collect == nil {
			h.collect = h.pipeline.Scrape
		}
		if h.posts == nil {
			h.posts = h.pipeline.Posts
		}
		if h.runs == nil {
			h.runs = h.pipeline.Runs
		}
		if h.registry == nil {
			h.registry = h.pipeline.Registry
		}
	}
	r.Post("/collect", h.handleCollect)
	r.Post("/jobs", h.handleEnqueue)
	r.Get("/jobs", h.handleQueueStats)
	r.Get("/runs/{id}", h.handleRun)
	r.Get("/posts", h.handlePosts)
	r.Get("/analytics", h.handleAnalytics)
}

type commentFailure struct {
	PostID string `json:"post_id,omitempty"`
	Error  string `json:"error"`
}

type collectResponse struct {
	RunID           string           `json:"run_id"`
	Platform        domain.Platform  `json:"platform"`
	Posts           []domain.Post    `json:"posts"`
	Dropped         int              `json:"dropped"`
	FromCache       bool             `json:"from_cache"`
	RawPath         string           `json:"raw_path,omitempty"`
	ReactionsMerged int              `json:"reactions_merged"`
	CommentFailures []commentFailure `json:"comment_failures"`
	Warnings        []string         `json:"warnings"`
}

func (h *handlers) handleCollect(w http.ResponseWriter, r *http.Request) {
	job, ok := h.decodeJob(w, r)
	if !ok {
		return
	}
	logger := h.log.With().Str("job_id", job.ID).Str("target", job.TargetURL).Logger()

	res, err := h.collect.Collect(r.Context(), job)
	if err != nil {
		logger.Warn().Err(err).Msg("api: сбор завершился ошибкой")
		status, resp := httpinfra.ErrorFor(err)
		httpinfra.WriteError(w, r, status, resp)
		return
	}

	resp := collectResponse{
		RunID:           res.RunID,
		Platform:        res.Platform,
		Posts:           res.Posts,
		Dropped:         res.Dropped,
		FromCache:       res.FromCache,
		RawPath:         res.RawPath,
		ReactionsMerged: res.ReactionsMerged,
		CommentFailures: make([]commentFailure, 0, len(res.CommentFailures)),
		Warnings:        res.Warnings,
	}
	for _, f := range res.CommentFailures {
		resp.CommentFailures = append(resp.CommentFailures, commentFailure{PostID: f.PostID, Error: f.Err.Error()})
	}
	if resp.Posts == nil {
		resp.Posts = []domain.Post{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httpinfra.WriteError(w, r, http.StatusServiceUnavailable, httpinfra.ErrorResponse{Error: "очередь задач не настроена", Kind: string(domain.KindServer), Retriable: true})
		return
	}
	job, ok := h.decodeJob(w, r)
	if !ok {
		return
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("job_id", job.ID).Msg("api: не удалось поставить задачу")
		httpinfra.WriteError(w, r, http.StatusServiceUnavailable, httpinfra.ErrorResponse{Error: "очередь недоступна", Kind: string(domain.KindServer), Retriable: true})
		return
	}
	httpinfra.WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// queueLen — очередь, умеющая сообщить свою длину.
type queueLen interface {
	Len(ctx context.Context) (int64, error)
}

func (h *handlers) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	q, ok := h.queue.(queueLen)
	if !ok {
		httpinfra.WriteError(w, r, http.StatusServiceUnavailable, httpinfra.ErrorResponse{Error: "очередь задач не настроена", Kind: string(domain.KindServer), Retriable: true})
		return
	}
	n, err := q.Len(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("api: не удалось получить длину очереди")
		httpinfra.WriteError(w, r, http.StatusServiceUnavailable, httpinfra.ErrorResponse{Error: "очередь недоступна", Kind: string(domain.KindServer), Retriable: true})
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]int64{"pending": n})
}

func (h *handlers) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		httpinfra.WriteError(w, r, http.StatusNotImplemented, httpinfra.ErrorResponse{Error: "журнал запусков не настроен", Kind: string(domain.KindUnknown)})
		return
	}
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, resp := httpinfra.ErrorFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Msg("api: не удалось прочитать запуск")
		}
		httpinfra.WriteError(w, r, status, resp)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, run)
}

func (h *handlers) handlePosts(w http.ResponseWriter, r *http.Request) {
	platform, limit, ok := listParams(w, r)
	if !ok {
		return
	}
	posts, err := h.posts.ListPosts(r.Context(), platform, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("api: не удалось прочитать посты")
		status, resp := httpinfra.ErrorFor(err)
		httpinfra.WriteError(w, r, status, resp)
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"posts": posts, "count": len(posts)})
}

func (h *handlers) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	platform, limit, ok := listParams(w, r)
	if !ok {
		return
	}
	metric, err := analytics.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		httpinfra.WriteError(w, r, http.StatusBadRequest, httpinfra.BadRequest(err))
		return
	}
	posts, err := h.posts.ListPosts(r.Context(), platform, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("api: не удалось прочитать посты")
		status, resp := httpinfra.ErrorFor(err)
		httpinfra.WriteError(w, r, status, resp)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, app.Analyze(h.registry, platform, posts, analytics.Options{Metric: metric}))
}

func (h *handlers) decodeJob(w http.ResponseWriter, r *http.Request) (domain.FetchJob, bool) {
	defer r.Body.Close()
	var req app.CollectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httpinfra.WriteError(w, r, http.StatusBadRequest, httpinfra.BadRequest(errors.New("некорректное тело запроса")))
		return domain.FetchJob{}, false
	}
	job, err := req.Job(domain.FetchCauseManual, h.now())
	if err != nil {
		if errors.Is(err, app.ErrBadRequest) {
			httpinfra.WriteError(w, r, http.StatusBadRequest, httpinfra.BadRequest(err))
		} else {
			status, resp := httpinfra.ErrorFor(err)
			httpinfra.WriteError(w, r, status, resp)
		}
		return domain.FetchJob{}, false
	}
	return job, true
}

func listParams(w http.ResponseWriter, r *http.Request) (domain.Platform, int, bool) {
	q := r.URL.Query()
	var platform domain.Platform
	if raw := q.Get("platform"); raw != "" {
		p, ok := domain.ParsePlatform(raw)
		if !ok {
			httpinfra.WriteError(w, r, http.StatusBadRequest, httpinfra.BadRequest(domain.ErrUnsupportedPlatform))
			return "", 0, false
		}
		platform = p
	}
	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			httpinfra.WriteError(w, r, http.StatusBadRequest, httpinfra.BadRequest(errors.New("limit должен быть от 1 до 1000")))
			return "", 0, false
		}
		limit = n
	}
	return platform, limit, true
}
