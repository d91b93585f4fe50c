package documents

import (
	"strings"

	"github.com/docuflow/backend/internal/models"
)

// FilterDocuments keeps the documents matching every whitespace-separated term of query,
// case-insensitively, in title, summary, category, file name or any tag. An empty query
// keeps everything. Order is preserved.
func FilterDocuments(docs []models.Document, query string) []models.Document {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return docs
	}
	out := make([]models.Document, 0, len(docs))
	for i := range docs {
		if matchesAll(&docs[i], terms) {
			out = append(out, docs[i])
		}
	}
	return out
}

func matchesAll(d *models.Document, terms []string) bool {
	fields := []string{
		strings.ToLower(d.Title),
		strings.ToLower(d.Summary),
		strings.ToLower(d.Category),
		strings.ToLower(d.FileName),
	}
	for _, t := range d.Tags {
		fields = append(fields, strings.ToLower(t))
	}
	for _, term := range terms {
		found := false
		for _, f := range fields {
			if strings.Contains(f, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
