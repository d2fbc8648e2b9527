package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"social-pulse/internal/domain"
)

// CollectRequest — параметры сбора, пришедшие из API или CLI.
type CollectRequest struct {
	Platform        string `json:"platform"`
	TargetURL       string `json:"target_url"`
	Limit           int    `json:"limit"`
	From            string `json:"from"`
	To              string `json:"to"`
	WithComments    bool   `json:"with_comments"`
	CommentsPerPost int    `json:"comments_per_post"`
	CommentMode     string `json:"comment_mode"`
	WithReactions   bool   `json:"with_reactions"`
	Fresh           bool   `json:"fresh"`
}

// ErrBadRequest — некорректные параметры сбора.
var ErrBadRequest = errors.New("некорректный запрос")

// Job проверяет параметры и строит задачу на сбор.
func (r CollectRequest) Job(cause domain.FetchJobCause, now time.Time) (domain.FetchJob, error) {
	job := domain.FetchJob{
		ID:              uuid.NewString(),
		TargetURL:       strings.TrimSpace(r.TargetURL),
		Limit:           r.Limit,
		WithComments:    r.WithComments,
		CommentsPerPost: r.CommentsPerPost,
		WithReactions:   r.WithReactions,
		Fresh:           r.Fresh,
		RequestedAt:     now.UTC(),
		Cause:           cause,
	}
	if job.TargetURL == "" {
		return domain.FetchJob{}, fmt.Errorf("%w: target_url обязателен", ErrBadRequest)
	}
	if r.Limit < 0 || r.CommentsPerPost < 0 {
		return domain.FetchJob{}, fmt.Errorf("%w: лимиты не могут быть отрицательными", ErrBadRequest)
	}
	if r.Platform != "" {
		p, ok := domain.ParsePlatform(strings.ToLower(r.Platform))
		if !ok {
			return domain.FetchJob{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, r.Platform)
		}
		job.Platform = p
	}
	switch mode := domain.CommentMode(r.CommentMode); mode {
	case "", domain.CommentModeBatch, domain.CommentModeIndividual:
		job.CommentMode = mode
	default:
		return domain.FetchJob{}, fmt.Errorf("%w: неизвестный режим комментариев %q", ErrBadRequest, r.CommentMode)
	}

	from, err := parseDate(r.From, false)
	if err != nil {
		return domain.FetchJob{}, err
	}
	to, err := parseDate(r.To, true)
	if err != nil {
		return domain.FetchJob{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return domain.FetchJob{}, fmt.Errorf("%w: from позже to", ErrBadRequest)
	}
	job.DateRange = domain.DateRange{From: from, To: to}
	return job, nil
}

// parseDate принимает дату 2006-01-02 или RFC3339. Дата без времени в конце
// диапазона означает конец дня.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: дата %q", ErrBadRequest, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
