// Package queue is the Redis-list job queue between the gate recording path
// and the guardian alert dispatcher. Attendance handlers push, the worker
// pops; a job that keeps failing lands in the dead-letter list for manual
// inspection instead of looping forever.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueAlerts is the Redis list holding pending guardian alert jobs.
	QueueAlerts = "worker:alerts"
	// QueueDLQ receives jobs that exhausted their retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries bounds delivery attempts per job.
	MaxRetries = 3
	// RetryBackoff is how long the worker sleeps after a failed attempt.
	RetryBackoff = 10 * time.Second
)

// JobType discriminates the job envelope.
type JobType string

const (
	JobTypeGuardianAlert JobType = "guardian_alert"
)

// GuardianAlertPayload carries one gate passage to the messaging gateway.
// Enqueued inside the attendance record path, after the access event row is
// committed.
type GuardianAlertPayload struct {
	SchoolID    int64     `json:"school_id"`
	SchoolName  string    `json:"school_name"`
	StudentID   int64     `json:"student_id"`
	StudentName string    `json:"student_name"`
	Phone       string    `json:"phone"`
	Kind        string    `json:"kind"` // arrival | departure
	RecordedAt  time.Time `json:"recorded_at"`
}

// Job wraps a payload with delivery bookkeeping.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue moves jobs through Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func (q *Queue) push(ctx context.Context, list string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, list, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", list, err)
	}
	return nil
}

// EnqueueGuardianAlert queues one alert for the dispatcher.
func (q *Queue) EnqueueGuardianAlert(ctx context.Context, payload GuardianAlertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeGuardianAlert,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	if err := q.push(ctx, QueueAlerts, job); err != nil {
		return err
	}
	q.logger.Debug("alert queued",
		zap.String("job_id", job.ID),
		zap.Int64("school_id", payload.SchoolID),
		zap.Int64("student_id", payload.StudentID),
	)
	return nil
}

// Dequeue blocks until a job arrives or ctx ends. A malformed entry is
// dropped with a warning rather than wedging the worker. The second return
// is the list the job came from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueAlerts).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("dropping malformed job", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-queues the job with its attempt count bumped, or parks it in the
// dead-letter list once MaxRetries is reached.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.String("job_id", job.ID), zap.Error(err))
			return err
		}
		q.logger.Warn("job dead-lettered", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, QueueAlerts, job); err != nil {
		return err
	}
	q.logger.Info("job requeued", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
