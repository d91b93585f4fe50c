package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docuflow/backend/internal/models"
)

func TestFilterDocuments(t *testing.T) {
	docs := []models.Document{
		{Title: "Lease Agreement", Category: "contract", Tags: []string{"real estate"}},
		{Title: "Q3 numbers", Summary: "Quarterly revenue report", Category: "financial"},
		{Title: "Scan", FileName: "invoice_0042.pdf", Category: "invoice", Tags: []string{"acme"}},
	}
	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query keeps all", "  ", []string{"Lease Agreement", "Q3 numbers", "Scan"}},
		{"title case-insensitive", "lease", []string{"Lease Agreement"}},
		{"summary", "REVENUE", []string{"Q3 numbers"}},
		{"category", "invoice", []string{"Scan"}},
		{"file name", "0042", []string{"Scan"}},
		{"tag", "estate", []string{"Lease Agreement"}},
		{"every term must match", "acme invoice", []string{"Scan"}},
		{"terms across fields", "acme lease", []string{}},
		{"no match", "payroll", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := make([]string, 0)
			for _, d := range FilterDocuments(docs, tc.query) {
				got = append(got, d.Title)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
