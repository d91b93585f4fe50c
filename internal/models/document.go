package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the AI processing state of a document.
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentFailed     DocumentStatus = "failed"
)

// CategoryOther is used for anything that does not fit a known category.
const CategoryOther = "other"

// Categories lists the document categories in display order.
var Categories = []string{
	"contract", "invoice", "report", "letter", "resume",
	"research", "legal", "financial", CategoryOther,
}

// MaxTags caps the number of tags stored per document.
const MaxTags = 8

// Document is a stored file or note with its AI-derived metadata.
type Document struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"user_id"`
	OrganizationID *uuid.UUID     `json:"organization_id,omitempty"`
	Title          string         `json:"title"`
	Category       string         `json:"category"`
	Summary        string         `json:"summary"`
	Tags           []string       `json:"tags"`
	Content        string         `json:"content,omitempty"`
	FileName       string         `json:"file_name,omitempty"`
	FilePath       string         `json:"-"`
	FileSize       int64          `json:"file_size"`
	MIMEType       string         `json:"mime_type,omitempty"`
	PageCount      int            `json:"page_count"`
	Status         DocumentStatus `json:"status"`
	IsFavorite     bool           `json:"is_favorite"`
	IsPinned       bool           `json:"is_pinned"`
	IsArchived     bool           `json:"is_archived"`
	ShareToken     *string        `json:"share_token,omitempty"`
	ShareExpiresAt *time.Time     `json:"share_expires_at,omitempty"`
	HasEmbedding   bool           `json:"has_embedding"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Personal reports whether the document is outside any organization.
func (d *Document) Personal() bool {
	return d.OrganizationID == nil
}

// ShareExpired reports whether the share link is past its expiry at now.
func (d *Document) ShareExpired(now time.Time) bool {
	return d.ShareExpiresAt != nil && !now.Before(*d.ShareExpiresAt)
}

// SharedDocument is the public view served for share links.
type SharedDocument struct {
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags"`
	Content   string    `json:"content"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentMatch is a similarity search hit from match_documents.
type DocumentMatch struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Category   string    `json:"category"`
	Similarity float64   `json:"similarity"`
}

// IsCategory reports whether c is a known category.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizeCategory lowercases c and collapses unknown values to "other".
func NormalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if IsCategory(c) {
		return c
	}
	return CategoryOther
}

// NormalizeTags lowercases, trims and deduplicates tags, keeping at most MaxTags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(strings.ToLower(t)), " ")
		t = strings.TrimPrefix(t, "#")
		if t == "" {
			continue
		}
		if len(t) > 40 {
			t = t[:40]
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
