package documents

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/organizations"
	"github.com/docuflow/backend/pkg/params"
	"github.com/docuflow/backend/pkg/response"
)

const (
	defaultMatchLimit = 10
	maxMatchLimit     = 50
	maxSimilarLimit   = 20
	maxQueryChars     = 500
)

// Similar handles GET /documents/:id/similar. 409 until the document has an embedding.
func (h *Handler) Similar(c *gin.Context) {
	doc, ok := h.load(c, organizations.PermDocumentsRead)
	if !ok {
		return
	}
	if !doc.HasEmbedding {
		response.Conflict(c, "document is not indexed yet")
		return
	}
	ctx := c.Request.Context()
	vec, err := h.Store.Embedding(ctx, doc.ID)
	if err != nil {
		h.notFoundOrInternal(c, err, "failed to load embedding")
		return
	}
	limit := params.Limit(c.Query("limit"), 5, maxSimilarLimit)
	// one extra row because the document always matches itself
	matches, err := h.Store.Match(ctx, vec, h.opts.MatchThreshold, limit+1, middleware.UserID(c), doc.OrganizationID)
	if err != nil {
		middleware.Internal(c, h.Logger, "failed to find similar documents", err)
		return
	}
	response.OK(c, excludeDocument(matches, doc.ID, limit))
}

// Search handles GET /search?q=&organization_id=&limit= with semantic matching.
func (h *Handler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.BadRequest(c, "q is required")
		return
	}
	if len([]rune(q)) > maxQueryChars {
		response.BadRequest(c, "q is too long")
		return
	}
	orgID, ok := params.OptionalUUID(c.Query("organization_id"))
	if !ok {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	if orgID != nil && !h.requireOrg(c, *orgID, organizations.PermDocumentsRead) {
		return
	}
	if h.Embedder == nil {
		response.ServiceUnavailable(c, "semantic search is not configured")
		return
	}
	ctx := c.Request.Context()
	vec, err := h.Embedder.Embed(ctx, q)
	if err != nil {
		middleware.Internal(c, h.Logger, "failed to embed query", err)
		return
	}
	limit := params.Limit(c.Query("limit"), defaultMatchLimit, maxMatchLimit)
	matches, err := h.Store.Match(ctx, vec, h.opts.MatchThreshold, limit, middleware.UserID(c), orgID)
	if err != nil {
		middleware.Internal(c, h.Logger, "failed to search documents", err)
		return
	}
	response.OK(c, matches)
}

func excludeDocument(matches []models.DocumentMatch, id uuid.UUID, limit int) []models.DocumentMatch {
	out := make([]models.DocumentMatch, 0, len(matches))
	for _, m := range matches {
		if m.ID != id {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
