// Package worker runs background document processing.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/activity"
	"github.com/docuflow/backend/internal/ai"
	"github.com/docuflow/backend/internal/documents"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/notifications"
	"github.com/docuflow/backend/pkg/i18n"
	"github.com/docuflow/backend/pkg/metrics"
	"github.com/docuflow/backend/pkg/queue"
)

// Job results reported to metrics.
const (
	ResultOK     = "ok"
	ResultRetry  = "retry"
	ResultFailed = "failed"
	// ResultRequeued means shutdown interrupted the job and it went back to the queue.
	ResultRequeued = "requeued"
)

// DocumentStore is the document persistence the processor needs.
type DocumentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	MarkReady(ctx context.Context, id uuid.UUID, a documents.Analysis) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// Analyzer summarizes and embeds document text.
type Analyzer interface {
	Summarize(ctx context.Context, title, text string) (*ai.Summary, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// JobQueue is the queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
	Requeue(ctx context.Context, job *queue.Job) error
}

// DocumentProcessor summarizes, tags and embeds queued documents.
type DocumentProcessor struct {
	docs     DocumentStore
	analyzer Analyzer
	queue    JobQueue
	notifier notifications.Notifier
	activity activity.Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	backoff  time.Duration
}

// NewDocumentProcessor creates a document processor. notifier, rec and m may be nil.
func NewDocumentProcessor(docs DocumentStore, analyzer Analyzer, q JobQueue, notifier notifications.Notifier,
	rec activity.Recorder, m *metrics.Metrics, logger *zap.Logger) *DocumentProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentProcessor{
		docs: docs, analyzer: analyzer, queue: q, notifier: notifier,
		activity: rec, metrics: m, logger: logger, backoff: queue.RetryBackoff,
	}
}

// Process executes one document job. A document deleted since enqueueing is skipped.
func (p *DocumentProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeDocumentProcess {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.DocumentProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	doc, err := p.docs.GetByID(ctx, payload.DocumentID)
	if errors.Is(err, documents.ErrNotFound) {
		p.logger.Info("document gone, skipping", zap.String("document_id", payload.DocumentID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.Status == models.DocumentReady && !payload.Reprocess {
		p.logger.Info("document already processed", zap.String("document_id", doc.ID.String()))
		return nil
	}

	text := strings.TrimSpace(doc.Content)
	if text == "" {
		text = doc.Title
	}
	summary, err := p.analyzer.Summarize(ctx, doc.Title, text)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	vec, err := p.analyzer.Embed(ctx, embeddingInput(doc, summary))
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	analysis := documents.Analysis{
		Category:  doc.Category,
		Summary:   summary.Summary,
		Tags:      models.NormalizeTags(append(append([]string{}, doc.Tags...), summary.Tags...)),
		Embedding: vec,
	}
	if strings.TrimSpace(doc.Title) == "" {
		analysis.Title = summary.Title
	}
	if doc.Category == "" || doc.Category == models.CategoryOther {
		analysis.Category = models.NormalizeCategory(summary.Category)
	}
	if err := p.docs.MarkReady(ctx, doc.ID, analysis); err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	title := doc.Title
	if analysis.Title != "" {
		title = analysis.Title
	}
	notifications.Send(ctx, p.notifier, p.logger, notifications.Notice{
		UserID:     doc.UserID,
		Type:       models.NotificationDocumentReady,
		Link:       documentLink(doc.ID),
		TitleKey:   i18n.KeyDocumentReadyTitle,
		MessageKey: i18n.KeyDocumentReadyMessage,
		Args:       []interface{}{title},
	})
	activity.Log(ctx, p.activity, p.logger, activity.Entry(doc.UserID, doc.OrganizationID,
		models.ActionDocumentProcessed, models.EntityDocument, &doc.ID, activity.Meta{"category": analysis.Category}))
	p.logger.Info("document processed", zap.String("document_id", doc.ID.String()), zap.String("category", analysis.Category))
	return nil
}

// Fail marks the job's document failed and tells its owner. Called after the final attempt.
func (p *DocumentProcessor) Fail(ctx context.Context, job *queue.Job) {
	var payload queue.DocumentProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return
	}
	doc, err := p.docs.GetByID(ctx, payload.DocumentID)
	if err != nil {
		return
	}
	if err := p.docs.MarkFailed(ctx, doc.ID); err != nil {
		p.logger.Error("mark document failed", zap.String("document_id", doc.ID.String()), zap.Error(err))
		return
	}
	notifications.Send(ctx, p.notifier, p.logger, notifications.Notice{
		UserID:     doc.UserID,
		Type:       models.NotificationDocumentFailed,
		Link:       documentLink(doc.ID),
		TitleKey:   i18n.KeyDocumentFailedTitle,
		MessageKey: i18n.KeyDocumentFailedMessage,
		Args:       []interface{}{doc.Title},
	})
}

// settleTimeout bounds the queue and store writes made after a job's context ends.
const settleTimeout = 5 * time.Second

// Handle processes job and schedules a retry on failure. It reports the job result.
// A job interrupted by cancellation of ctx is requeued without spending an attempt.
func (p *DocumentProcessor) Handle(ctx context.Context, job *queue.Job) string {
	start := time.Now()
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)

	// the job is already off the queue, so settling it must outlive a shutdown
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	result := ResultOK
	switch {
	case err == nil:
	case ctx.Err() != nil:
		result = ResultRequeued
		p.logger.Warn("job interrupted", zap.String("job_id", job.ID), zap.Error(err))
		if reErr := p.queue.Requeue(settleCtx, job); reErr != nil {
			p.logger.Error("requeue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		}
	default:
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		result = ResultRetry
		if job.Final() {
			result = ResultFailed
			p.Fail(settleCtx, job)
		}
		if _, reErr := p.queue.Retry(settleCtx, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		}
	}
	p.metrics.JobProcessed(string(job.Type), result, time.Since(start))
	return result
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *DocumentProcessor) Run(ctx context.Context) {
	p.logger.Info("document worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("document worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		if p.Handle(ctx, job) == ResultRetry {
			p.sleep(ctx)
		}
	}
}

func (p *DocumentProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}

func embeddingInput(doc *models.Document, s *ai.Summary) string {
	parts := []string{doc.Title, s.Summary, strings.Join(s.Tags, ", "), doc.Content}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func documentLink(id uuid.UUID) string {
	return "/documents/" + id.String()
}
