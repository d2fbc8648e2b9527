package domain

import (
	"context"
	"time"
)

// JobKind описывает, что собирает актор.
type JobKind string

const (
	JobKindPosts     JobKind = "posts"
	JobKindComments  JobKind = "comments"
	JobKindReactions JobKind = "reactions"
)

// JobRequest — параметры одного запуска актора. После сборки не меняется.
type JobRequest struct {
	Kind       JobKind
	ActorID    string
	TargetRefs []string
	// Limit — суммарный лимит записей в датасете результата.
	Limit     int
	DateRange DateRange
	Extra     map[string]any
	// Input — тело запуска в формате конкретного актора.
	Input map[string]any
}

// JobStatus — итог запуска актора.
type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed_out"
)

// JobResult — результат запуска актора.
type JobResult struct {
	Status    JobStatus
	RunID     string
	DatasetID string
	Records   []Record
	Err       *ActorError
}

// FetchJobCause описывает источник задачи на сбор.
type FetchJobCause string

const (
	// FetchCauseManual — задачу поставили через API или CLI.
	FetchCauseManual FetchJobCause = "manual"
	// FetchCauseScheduled — задачу поставил планировщик.
	FetchCauseScheduled FetchJobCause = "scheduled"
)

// CommentMode выбирает стратегию загрузки комментариев.
type CommentMode string

const (
	CommentModeBatch      CommentMode = "batch"
	CommentModeIndividual CommentMode = "individual"
)

// FetchJob — задача на сбор постов, передаваемая через очередь.
type FetchJob struct {
	ID              string        `json:"job_id,omitempty"`
	Platform        Platform      `json:"platform,omitempty"`
	TargetURL       string        `json:"target_url"`
	Limit           int           `json:"limit"`
	DateRange       DateRange     `json:"date_range"`
	WithComments    bool          `json:"with_comments"`
	CommentsPerPost int           `json:"comments_per_post,omitempty"`
	CommentMode     CommentMode   `json:"comment_mode,omitempty"`
	WithReactions   bool          `json:"with_reactions,omitempty"`
	Fresh           bool          `json:"fresh,omitempty"`
	RequestedAt     time.Time     `json:"requested_at"`
	Cause           FetchJobCause `json:"cause"`
	Attempt         int           `json:"attempt,omitempty"`
}

// FetchQueue описывает очередь задач на сбор.
type FetchQueue interface {
	Enqueue(ctx context.Context, job FetchJob) error
	Receive(ctx context.Context) (FetchJob, AckFunc, error)
}

// AckFunc подтверждает обработку задачи или возвращает её в очередь.
type AckFunc func(success bool) error

// RunStatus — состояние записи о запуске сбора.
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ScrapeRun — журнал одного запуска конвейера сбора.
type ScrapeRun struct {
	ID            string    `json:"id" bson:"_id"`
	Platform      Platform  `json:"platform" bson:"platform"`
	TargetURL     string    `json:"target_url" bson:"target_url"`
	Status        RunStatus `json:"status" bson:"status"`
	PostsCount    int       `json:"posts_count" bson:"posts_count"`
	CommentsCount int       `json:"comments_count" bson:"comments_count"`
	Error         string    `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt     time.Time `json:"started_at" bson:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}
