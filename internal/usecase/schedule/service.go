package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
)

// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Detector подбирает адаптер платформы по ссылке.
type Detector interface {
	Detect(rawURL string) (domain.PlatformAdapter, bool)
}

// Options задаёт параметры плановых задач.
type Options struct {
	Limit        int
	WithComments bool
	// DedupTTL — сколько помнить уже поставленный слот расписания.
	DedupTTL time.Duration
}

// Service ставит плановые задачи на сбор для списка ссылок.
type Service struct {
	targets []string
	detect  Detector
	queue   domain.FetchQueue
	cache   domain.Cache
	opts    Options
	log     zerolog.Logger
}

// NewService создаёт планировщик. cache может быть nil, тогда повторные
// срабатывания одного слота не отсекаются.
func NewService(targets []string, detect Detector, queue domain.FetchQueue, cache domain.Cache, opts Options, logger zerolog.Logger) *Service {
	cleaned := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := domain.NormalizeRef(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, t)
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = time.Hour
	}
	return &Service{targets: cleaned, detect: detect, queue: queue, cache: cache, opts: opts, log: logger}
}

// Targets возвращает ссылки, которые обходит планировщик.
func (s *Service) Targets() []string {
	return append([]string(nil), s.targets...)
}

// Tick ставит задачу для каждой ссылки. Слот определяется минутой срабатывания,
// поэтому несколько экземпляров планировщика не дублируют задачи.
func (s *Service) Tick(ctx context.Context, now time.Time) (int, error) {
	slot := now.UTC().Truncate(time.Minute)
	enqueued := 0
	var errs []error
	for _, target := range s.targets {
		if err := ctx.Err(); err != nil {
			return enqueued, err
		}
		adapter, ok := s.detect.Detect(target)
		if !ok {
			s.log.Warn().Str("target", target).Msg("scheduler: платформа ссылки не распознана, пропускаем")
			continue
		}
		job := domain.FetchJob{
			ID:           uuid.NewString(),
			Platform:     adapter.Platform(),
			TargetURL:    target,
			Limit:        s.opts.Limit,
			WithComments: s.opts.WithComments,
			RequestedAt:  slot,
			Cause:        domain.FetchCauseScheduled,
		}
		pushed := false
		enqueue := func() error {
			if err := s.queue.Enqueue(ctx, job); err != nil {
				return err
			}
			pushed = true
			return nil
		}

		var err error
		if s.cache != nil {
			key := fmt.Sprintf("schedule:%s:%s:%d", job.Platform, domain.NormalizeRef(target), slot.Unix())
			err = s.cache.Once(ctx, key, s.opts.DedupTTL, enqueue)
		} else {
			err = enqueue()
		}
		if err != nil {
			s.log.Error().Err(err).Str("target", target).Msg("scheduler: не удалось поставить задачу")
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		if !pushed {
			s.log.Debug().Str("target", target).Time("slot", slot).Msg("scheduler: слот уже обработан")
			continue
		}
		enqueued++
		s.log.Info().Str("job_id", job.ID).Str("platform", string(job.Platform)).Str("target", target).Msg("scheduler: задача поставлена")
	}
	return enqueued, errors.Join(errs...)
}

// LoadLocation принимает имя часового пояса в свободном написании
// ("europe/moscow", "America/New York").
func LoadLocation(raw string) (*time.Location, error) {
	name, err := normalizeTimezone(raw)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(name)
}

func normalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", ErrInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}
