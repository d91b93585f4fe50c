package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/documents"
	"github.com/docuflow/backend/internal/models"
)

// ReindexStore lists and updates documents lacking an embedding.
type ReindexStore interface {
	ListMissingEmbeddings(ctx context.Context, limit int) ([]documents.PendingEmbedding, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	SetEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error
}

// Embedder produces embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ReindexResult counts the outcome of a reindex pass.
type ReindexResult struct {
	Indexed int
	Failed  int
}

// Reindex embeds up to limit documents that have none. Individual failures are counted
// and logged; only listing errors abort the pass.
func Reindex(ctx context.Context, store ReindexStore, embedder Embedder, limit int, logger *zap.Logger) (ReindexResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res ReindexResult
	pending, err := store.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}
	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		doc, err := store.GetByID(ctx, item.ID)
		if err != nil {
			res.Failed++
			logger.Warn("reindex load", zap.String("document_id", item.ID.String()), zap.Error(err))
			continue
		}
		text := strings.TrimSpace(strings.Join([]string{doc.Title, doc.Summary, strings.Join(doc.Tags, ", "), doc.Content}, "\n\n"))
		vec, err := embedder.Embed(ctx, text)
		if err == nil {
			err = store.SetEmbedding(ctx, doc.ID, vec)
		}
		if err != nil {
			res.Failed++
			logger.Warn("reindex document", zap.String("document_id", doc.ID.String()), zap.Error(err))
			continue
		}
		res.Indexed++
	}
	return res, nil
}
