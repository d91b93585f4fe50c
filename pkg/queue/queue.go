package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueDocuments is the Redis list key for document processing jobs.
	QueueDocuments = "worker:documents"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of attempts before a job moves to the DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// pollTimeout bounds each BLPOP so the worker notices shutdown.
	pollTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	// JobTypeDocumentProcess summarizes, tags and embeds a document.
	JobTypeDocumentProcess JobType = "document_process"
)

// DocumentProcessPayload is the payload for document processing jobs.
type DocumentProcessPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	UserID     uuid.UUID `json:"user_id"`
	Reprocess  bool      `json:"reprocess,omitempty"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Final reports whether the job has no retries left after the current attempt.
func (j *Job) Final() bool {
	return j.Attempt+1 >= MaxRetries
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// NewJob builds a job envelope for the given payload.
func NewJob(jobType JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EnqueueDocumentProcess enqueues a document processing job.
func (q *Queue) EnqueueDocumentProcess(ctx context.Context, payload DocumentProcessPayload) error {
	job, err := NewJob(JobTypeDocumentProcess, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueDocuments, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued document job", zap.String("job_id", job.ID), zap.String("document_id", payload.DocumentID.String()))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue waits up to a short poll timeout for a job. A nil job with nil error means nothing arrived.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, pollTimeout, QueueDocuments).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
// It reports whether the job went to the DLQ.
func (q *Queue) Retry(ctx context.Context, job *Job) (bool, error) {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	if err := q.push(ctx, QueueDocuments, job); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// Requeue puts job back at the head of the queue without counting an attempt. Used when
// processing was interrupted rather than failed.
func (q *Queue) Requeue(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, QueueDocuments, raw).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	q.logger.Info("job requeued", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Depth returns the number of pending jobs and dead-lettered jobs.
func (q *Queue) Depth(ctx context.Context) (pending, dead int64, err error) {
	if pending, err = q.client.LLen(ctx, QueueDocuments).Result(); err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", QueueDocuments, err)
	}
	if dead, err = q.client.LLen(ctx, QueueDLQ).Result(); err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", QueueDLQ, err)
	}
	return pending, dead, nil
}
