package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"social-pulse/internal/app"
	"social-pulse/internal/infra/config"
	applog "social-pulse/internal/infra/log"
	"social-pulse/internal/infra/metrics"
	"social-pulse/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if len(cfg.Schedule.Targets) == 0 {
		logger.Fatal().Msg("scheduler: не заданы ссылки для обхода (SCHEDULE_TARGETS)")
	}
	loc, err := schedule.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.Schedule.Timezone).Msg("scheduler: некорректный часовой пояс")
	}

	pipeline, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось собрать конвейер")
	}
	defer pipeline.Close()

	fetchQueue, err := pipeline.OpenQueue(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось открыть очередь")
	}

	planner := schedule.NewService(cfg.Schedule.Targets, pipeline.Registry, fetchQueue, pipeline.Cache, schedule.Options{
		Limit:        cfg.Limits.MaxPosts,
		WithComments: cfg.Schedule.WithComments,
		DedupTTL:     cfg.Schedule.DedupTTL,
	}, logger.With().Str("component", "scheduler").Logger())

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.Schedule.Cron, tickFunc(ctx, planner, logger, time.Now)); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.Schedule.Cron).Msg("scheduler: некорректное расписание")
	}
	c.Start()
	logger.Info().
		Str("cron", cfg.Schedule.Cron).
		Str("tz", loc.String()).
		Int("targets", len(planner.Targets())).
		Msg("scheduler: запущен")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("scheduler: остановлен")
}

type ticker interface {
	Tick(ctx context.Context, now time.Time) (int, error)
}

func tickFunc(ctx context.Context, planner ticker, logger zerolog.Logger, now func() time.Time) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		start := now()
		n, err := planner.Tick(ctx, start)
		if err != nil {
			logger.Error().Err(err).Int("enqueued", n).Msg("scheduler: срабатывание завершилось с ошибками")
			return
		}
		logger.Info().Int("enqueued", n).Dur("took", time.Since(start)).Msg("scheduler: срабатывание обработано")
	}
}
