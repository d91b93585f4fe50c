// Package documents stores, lists, shares and searches documents.
package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/activity"
	"github.com/docuflow/backend/internal/billing"
	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/internal/organizations"
	"github.com/docuflow/backend/internal/validation"
	"github.com/docuflow/backend/pkg/extract"
	"github.com/docuflow/backend/pkg/metrics"
	"github.com/docuflow/backend/pkg/params"
	"github.com/docuflow/backend/pkg/queue"
	"github.com/docuflow/backend/pkg/response"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
	maxContentBytes  = extract.MaxTextBytes
)

// Store is the persistence surface used by Handler.
type Store interface {
	Create(ctx context.Context, d *models.Document) error
	GetVisible(ctx context.Context, id, userID uuid.UUID) (*models.Document, error)
	GetByShareToken(ctx context.Context, token string) (*models.Document, error)
	List(ctx context.Context, f ListFilter) ([]models.Document, error)
	Update(ctx context.Context, id uuid.UUID, ch Changes) (*models.Document, error)
	SetFlag(ctx context.Context, id uuid.UUID, flag Flag, value bool) error
	SetShare(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	ClearShare(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Embedding(ctx context.Context, id uuid.UUID) ([]float32, error)
	Match(ctx context.Context, vec []float32, threshold float64, count int, userID uuid.UUID, orgID *uuid.UUID) ([]models.DocumentMatch, error)
}

// Quota enforces plan document limits.
type Quota interface {
	CheckDocumentQuota(ctx context.Context, scope billing.Scope) error
}

// FileStore keeps the uploaded files.
type FileStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
	PresignDownload(ctx context.Context, key, filename string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Enqueuer schedules AI processing.
type Enqueuer interface {
	EnqueueDocumentProcess(ctx context.Context, payload queue.DocumentProcessPayload) error
}

// Embedder turns a search query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options are the handler's tunables.
type Options struct {
	MaxUploadBytes int64
	MatchThreshold float64
	PublicBaseURL  string
}

// Deps groups the collaborators of Handler. Files and Embedder may be nil when the
// integration is not configured.
type Deps struct {
	Store    Store
	Roles    organizations.RoleLookup
	Quota    Quota
	Files    FileStore
	Queue    Enqueuer
	Embedder Embedder
	Activity activity.Recorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Handler handles document HTTP endpoints.
type Handler struct {
	Deps
	opts Options
	now  func() time.Time
}

// NewHandler creates a documents handler.
func NewHandler(deps Deps, opts Options) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.MatchThreshold == 0 {
		opts.MatchThreshold = 0.5
	}
	return &Handler{Deps: deps, opts: opts, now: time.Now}
}

// CreateRequest is the body for POST /documents.
type CreateRequest struct {
	Title          string     `json:"title" binding:"required,max=255"`
	Content        string     `json:"content" binding:"required"`
	Category       string     `json:"category" binding:"omitempty,doccategory"`
	Tags           []string   `json:"tags" binding:"omitempty,max=20"`
	OrganizationID *uuid.UUID `json:"organization_id"`
}

// UpdateRequest is the body for PATCH /documents/:id.
type UpdateRequest struct {
	Title    *string  `json:"title" binding:"omitempty,min=1,max=255"`
	Category *string  `json:"category" binding:"omitempty,doccategory"`
	Summary  *string  `json:"summary" binding:"omitempty,max=5000"`
	Tags     []string `json:"tags" binding:"omitempty,max=20"`
}

// FlagRequest is the body for the favorite, pin and archive endpoints.
type FlagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

// List handles GET /documents.
func (h *Handler) List(c *gin.Context) {
	orgID, ok := params.OptionalUUID(c.Query("organization_id"))
	if !ok {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	userID := middleware.UserID(c)
	if orgID != nil && !h.requireOrg(c, *orgID, organizations.PermDocumentsRead) {
		return
	}
	f := ListFilter{
		UserID:         userID,
		OrganizationID: orgID,
		Favorite:       params.Bool(c.Query("favorite")),
		Pinned:         params.Bool(c.Query("pinned")),
		Query:          c.Query("q"),
		Sort:           c.Query("sort"),
		Limit:          params.Limit(c.Query("limit"), defaultListLimit, maxListLimit),
		Offset:         params.Offset(c.Query("offset")),
	}
	if archived := params.Bool(c.Query("archived")); archived != nil {
		f.Archived = *archived
	}
	if cat := strings.ToLower(c.Query("category")); cat != "" {
		if !models.IsCategory(cat) {
			response.BadRequest(c, "unknown category")
			return
		}
		f.Category = cat
	}
	docs, err := h.Store.List(c.Request.Context(), f)
	if err != nil {
		middleware.Internal(c, h.Logger, "failed to list documents", err)
		return
	}
	response.OK(c, docs)
}

// Create handles POST /documents for text documents.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		response.BadRequest(c, "content must not be blank")
		return
	}
	if len(content) > maxContentBytes {
		response.PayloadTooLarge(c, "content is too large")
		return
	}
	userID := middleware.UserID(c)
	if !h.checkCreate(c, userID, body.OrganizationID) {
		return
	}
	category := models.CategoryOther
	if body.Category != "" {
		category = body.Category
	}
	doc := &models.Document{
		UserID:         userID,
		OrganizationID: body.OrganizationID,
		Title:          strings.TrimSpace(body.Title),
		Category:       category,
		Tags:           models.NormalizeTags(body.Tags),
		Content:        content,
		FileSize:       int64(len(content)),
		MIMEType:       "text/plain",
		Status:         models.DocumentProcessing,
	}
	if err := h.Store.Create(c.Request.Context(), doc); err != nil {
		middleware.Internal(c, h.Logger, "failed to create document", err)
		return
	}
	h.afterCreate(c, doc, models.ActionDocumentCreated)
	response.Created(c, doc)
}

// Get handles GET /documents/:id.
func (h *Handler) Get(c *gin.Context) {
	doc, ok := h.load(c, organizations.PermDocumentsRead)
	if !ok {
		return
	}
	response.OK(c, doc)
}

// Update handles PATCH /documents/:id.
func (h *Handler) Update(c *gin.Context) {
	doc, ok := h.load(c, organizations.PermDocumentsWrite)
	if !ok {
		return
	}
	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return
	}
	ch := Changes{Category: body.Category, Summary: body.Summary}
	if body.Title != nil {
		t := strings.TrimSpace(*body.Title)
		if t == "" {
			response.BadRequest(c, "title must not be blank")
			return
		}
		ch.Title = &t
	}
	if body.Tags != nil {
		ch.Tags = models.NormalizeTags(body.Tags)
	}
	updated, err := h.Store.Update(c.Request.Context(), doc.ID, ch)
	if err != nil {
		h.notFoundOrInternal(c, err, "failed to update document")
		return
	}
	h.log(c, updated, models.ActionDocumentUpdated, nil)
	response.OK(c, updated)
}

// Delete handles DELETE /documents/:id. The stored file is removed best-effort.
func (h *Handler) Delete(c *gin.Context) {
	doc, ok := h.load(c, organizations.PermDocumentsDelete)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.Delete(ctx, doc.ID); err != nil {
		h.notFoundOrInternal(c, err, "failed to delete document")
		return
	}
	if doc.FilePath != "" && h.Files != nil {
		if err := h.Files.Delete(ctx, doc.FilePath); err != nil {
			h.Logger.Warn("delete stored file", zap.String("key", doc.FilePath), zap.Error(err))
		}
	}
	h.log(c, doc, models.ActionDocumentDeleted, activity.Meta{"title": doc.Title})
	response.NoContent(c)
}

// SetFlag returns the handler for POST /documents/:id/{favorite,pin,archive}.
func (h *Handler) SetFlag(flag Flag) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := h.load(c, organizations.PermDocumentsWrite)
		if !ok {
			return
		}
		var body FlagRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, validation.Describe(err))
			return
		}
		if err := h.Store.SetFlag(c.Request.Context(), doc.ID, flag, *body.Value); err != nil {
			h.notFoundOrInternal(c, err, "failed to update document")
			return
		}
		switch flag {
		case FlagFavorite:
			doc.IsFavorite = *body.Value
		case FlagPinned:
			doc.IsPinned = *body.Value
		case FlagArchived:
			doc.IsArchived = *body.Value
		}
		response.OK(c, doc)
	}
}

// Reprocess handles POST /documents/:id/reprocess.
func (h *Handler) Reprocess(c *gin.Context) {
	doc, ok := h.load(c, organizations.PermDocumentsWrite)
	if !ok {
		return
	}
	if h.Queue == nil {
		response.ServiceUnavailable(c, "processing is not configured")
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.MarkProcessing(ctx, doc.ID); err != nil {
		middleware.Internal(c, h.Logger, "failed to reprocess document", err)
		return
	}
	if err := h.Queue.EnqueueDocumentProcess(ctx, queue.DocumentProcessPayload{DocumentID: doc.ID, UserID: doc.UserID, Reprocess: true}); err != nil {
		middleware.Internal(c, h.Logger, "failed to enqueue document", err)
		return
	}
	doc.Status = models.DocumentProcessing
	response.OK(c, doc)
}

// load resolves :id to a document the caller may see and checks perm. Personal documents
// grant everything to their creator; creators may always delete their own documents.
func (h *Handler) load(c *gin.Context, perm organizations.Permission) (*models.Document, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid document id")
		return nil, false
	}
	userID := middleware.UserID(c)
	ctx := c.Request.Context()
	doc, err := h.Store.GetVisible(ctx, id, userID)
	if err != nil {
		h.notFoundOrInternal(c, err, "failed to load document")
		return nil, false
	}
	if doc.Personal() || (perm == organizations.PermDocumentsDelete && doc.UserID == userID) {
		return doc, true
	}
	role, err := h.Roles.GetRole(ctx, *doc.OrganizationID, userID)
	if err != nil {
		if errors.Is(err, organizations.ErrNotMember) {
			response.NotFound(c, ErrNotFound.Error())
		} else {
			middleware.Internal(c, h.Logger, "failed to load membership", err)
		}
		return nil, false
	}
	if !organizations.HasPermission(role, perm) {
		response.Forbidden(c, "insufficient organization permissions")
		return nil, false
	}
	return doc, true
}

// requireOrg checks the caller holds perm in orgID. Non-members get 404.
func (h *Handler) requireOrg(c *gin.Context, orgID uuid.UUID, perm organizations.Permission) bool {
	role, err := h.Roles.GetRole(c.Request.Context(), orgID, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, organizations.ErrNotMember) {
			response.NotFound(c, "organization not found")
		} else {
			middleware.Internal(c, h.Logger, "failed to load membership", err)
		}
		return false
	}
	if !organizations.HasPermission(role, perm) {
		response.Forbidden(c, "insufficient organization permissions")
		return false
	}
	return true
}

// checkCreate verifies write access to the target scope and its plan quota.
func (h *Handler) checkCreate(c *gin.Context, userID uuid.UUID, orgID *uuid.UUID) bool {
	scope := billing.UserScope(userID)
	if orgID != nil {
		if !h.requireOrg(c, *orgID, organizations.PermDocumentsWrite) {
			return false
		}
		scope = billing.OrganizationScope(*orgID)
	}
	if h.Quota == nil {
		return true
	}
	if err := h.Quota.CheckDocumentQuota(c.Request.Context(), scope); err != nil {
		if errors.Is(err, billing.ErrPlanLimitReached) {
			response.ForbiddenCode(c, billing.PlanLimitCode, "your plan's document limit has been reached")
		} else {
			middleware.Internal(c, h.Logger, "failed to check plan limits", err)
		}
		return false
	}
	return true
}

// afterCreate enqueues processing and records the activity. Enqueue failures leave the
// document in processing, from where it can be reprocessed.
func (h *Handler) afterCreate(c *gin.Context, doc *models.Document, action string) {
	if h.Queue != nil {
		if err := h.Queue.EnqueueDocumentProcess(c.Request.Context(), queue.DocumentProcessPayload{DocumentID: doc.ID, UserID: doc.UserID}); err != nil {
			h.Logger.Error("enqueue document", zap.String("document_id", doc.ID.String()), zap.Error(err))
		}
	}
	h.log(c, doc, action, activity.Meta{"title": doc.Title})
}

func (h *Handler) log(c *gin.Context, doc *models.Document, action string, meta activity.Meta) {
	activity.Log(c.Request.Context(), h.Activity, h.Logger,
		activity.Entry(middleware.UserID(c), doc.OrganizationID, action, models.EntityDocument, &doc.ID, meta))
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, ErrNotFound.Error())
		return
	}
	middleware.Internal(c, h.Logger, msg, err)
}
