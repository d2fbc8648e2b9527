package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ActorRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apify_runs_total",
		Help: "Завершённые запуски акторов по статусу",
	}, []string{"actor", "status"})

	ActorRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apify_retries_total",
		Help: "Повторы запросов к Apify по виду ошибки",
	}, []string{"kind"})

	ActorRunSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apify_run_seconds",
		Help:    "Длительность запуска актора от отправки до получения датасета",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 240, 300, 450, 600},
	}, []string{"actor"})

	PostsCollected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_collected_total",
		Help: "Нормализованные посты по платформам",
	}, []string{"platform"})

	RecordsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "records_dropped_total",
		Help: "Записи без идентификатора, отброшенные при нормализации",
	}, []string{"platform", "kind"})

	CommentsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_fetched_total",
		Help: "Комментарии, привязанные к постам",
	}, []string{"platform", "mode"})

	CommentFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comment_fetch_failures_total",
		Help: "Сбои загрузки комментариев",
	}, []string{"platform", "mode"})

	CollectSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "collect_seconds",
		Help:    "Время полного прохода конвейера сбора",
		Buckets: prometheus.DefBuckets,
	})

	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collect_cache_total",
		Help: "Обращения к кэшу результатов сбора",
	}, []string{"result"})

	FetchJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_jobs_total",
		Help: "Задачи на сбор из очереди по итогу обработки",
	}, []string{"outcome"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ActorRunsTotal,
		ActorRetriesTotal,
		ActorRunSeconds,
		PostsCollected,
		RecordsDropped,
		CommentsFetched,
		CommentFailures,
		CollectSeconds,
		CacheHits,
		FetchJobsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveActorRun фиксирует итог запуска актора.
func ObserveActorRun(actor, status string, start time.Time) {
	ActorRunsTotal.WithLabelValues(actor, status).Inc()
	ActorRunSeconds.WithLabelValues(actor).Observe(time.Since(start).Seconds())
}

// IncRetry увеличивает счётчик повторов по виду ошибки.
func IncRetry(kind string) {
	ActorRetriesTotal.WithLabelValues(kind).Inc()
}

// ObserveCache фиксирует попадание или промах кэша.
func ObserveCache(hit bool) {
	if hit {
		CacheHits.WithLabelValues("hit").Inc()
		return
	}
	CacheHits.WithLabelValues("miss").Inc()
}
