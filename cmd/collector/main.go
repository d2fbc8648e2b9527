package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"social-pulse/internal/app"
	"social-pulse/internal/domain"
	"social-pulse/internal/infra/config"
	applog "social-pulse/internal/infra/log"
	"social-pulse/internal/infra/metrics"
	"social-pulse/internal/usecase/scrape"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if cfg.Apify.Token == "" {
		logger.Fatal().Msg("collector: не указан токен Apify (APIFY_TOKEN)")
	}

	pipeline, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось собрать конвейер")
	}
	defer pipeline.Close()

	fetchQueue, err := pipeline.OpenQueue(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось открыть очередь")
	}

	worker := &jobWorker{
		log:         logger,
		queue:       fetchQueue,
		collect:     pipeline.Scrape,
		notifier:    pipeline.Notifier,
		maxAttempts: cfg.Limits.MaxAttempts,
	}

	logger.Info().Str("backend", cfg.Queues.Backend).Msg("collector: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("collector: остановлен")
}

type collector interface {
	Collect(ctx context.Context, job domain.FetchJob) (scrape.Result, error)
}

type jobWorker struct {
	log         zerolog.Logger
	queue       domain.FetchQueue
	collect     collector
	notifier    domain.Notifier
	maxAttempts int
	// pause — задержка после ошибки чтения очереди.
	pause time.Duration
}

type jobOutcome int

const (
	jobOutcomeCompleted jobOutcome = iota
	jobOutcomeRetry
	jobOutcomeFailed
)

func (o jobOutcome) String() string {
	switch o {
	case jobOutcomeRetry:
		return "retry"
	case jobOutcomeFailed:
		return "failed"
	}
	return "completed"
}

func (w *jobWorker) Run(ctx context.Context) {
	pause := w.pause
	if pause <= 0 {
		pause = time.Second
	}
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("collector: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(pause):
			}
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("platform", string(job.Platform)).
			Str("target", job.TargetURL).
			Str("cause", string(job.Cause)).
			Int("attempt", job.Attempt+1).
			Logger()

		if job.ID == "" || job.TargetURL == "" {
			jobLog.Error().Msg("collector: получена неполная задача, подтверждаем и пропускаем")
			metrics.FetchJobsTotal.WithLabelValues("invalid").Inc()
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось подтвердить неполную задачу")
			}
			continue
		}

		outcome := w.handleJob(ctx, job, jobLog)

		if outcome == jobOutcomeRetry && job.Attempt+1 < w.maxAttempts {
			jobLog.Warn().Msg("collector: задача завершилась ошибкой, повторим позже")
			metrics.FetchJobsTotal.WithLabelValues(outcome.String()).Inc()
			if err := ack(false); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось вернуть задачу после ошибки")
			}
			continue
		}
		if outcome == jobOutcomeRetry {
			jobLog.Error().Msg("collector: достигнут предел попыток, снимаем задачу")
			outcome = jobOutcomeFailed
		}

		metrics.FetchJobsTotal.WithLabelValues(outcome.String()).Inc()
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось подтвердить задачу")
		}
	}
}

// handleJob запускает сбор. Повторяются только сбои, которые клиент акторов
// считает временными; отчёт уходит, когда повторов больше не будет.
func (w *jobWorker) handleJob(ctx context.Context, job domain.FetchJob, jobLog zerolog.Logger) jobOutcome {
	start := time.Now()
	res, err := w.collect.Collect(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return jobOutcomeRetry
		}
		retriable := false
		if ae, ok := domain.AsActorError(err); ok {
			retriable = ae.Retriable
		}
		jobLog.Warn().Err(err).Bool("retriable", retriable).Dur("took", time.Since(start)).Msg("collector: сбор не удался")
		if retriable && job.Attempt+1 < w.maxAttempts {
			return jobOutcomeRetry
		}
		w.report(ctx, job, res, err, jobLog)
		if retriable {
			return jobOutcomeRetry
		}
		return jobOutcomeFailed
	}

	jobLog.Info().
		Str("run_id", res.RunID).
		Int("posts", len(res.Posts)).
		Int("comment_failures", len(res.CommentFailures)).
		Bool("from_cache", res.FromCache).
		Dur("took", time.Since(start)).
		Msg("collector: сбор завершён")
	w.report(ctx, job, res, nil, jobLog)
	return jobOutcomeCompleted
}

func (w *jobWorker) report(ctx context.Context, job domain.FetchJob, res scrape.Result, runErr error, jobLog zerolog.Logger) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, scrape.FormatReport(job, res, runErr)); err != nil {
		jobLog.Error().Err(err).Msg("collector: не удалось отправить отчёт")
	}
}
