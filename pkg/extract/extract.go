// Package extract validates uploaded files and pulls their plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidFile     = errors.New("file is corrupt or does not match its extension")
	ErrTextTooLarge    = errors.New("extracted text is too large")
)

// MaxTextBytes bounds the plain text kept from any file.
const MaxTextBytes = 1 << 20

// Kind is a supported document format.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindText Kind = "text"
)

// MIME types stored with uploaded documents.
const (
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
)

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	api.DisableConfigDir()
}

// Result is the outcome of a successful extraction.
type Result struct {
	Kind     Kind
	MIMEType string
	Text     string
	Pages    int
}

// Detect resolves the document kind from the file extension and checks the content agrees.
func Detect(filename string, data []byte) (Kind, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	detected := mimetype.Detect(data)
	switch ext {
	case ".pdf":
		if !detected.Is(MIMEPDF) {
			return "", "", ErrInvalidFile
		}
		return KindPDF, MIMEPDF, nil
	case ".docx":
		if !detected.Is(MIMEDOCX) && !detected.Is("application/zip") {
			return "", "", ErrInvalidFile
		}
		return KindDOCX, MIMEDOCX, nil
	case ".txt", ".md", ".markdown":
		if !utf8.Valid(data) {
			return "", "", ErrInvalidFile
		}
		if ext == ".txt" {
			return KindText, MIMEText, nil
		}
		return KindText, MIMEMarkdown, nil
	default:
		return "", "", ErrUnsupportedType
	}
}

// Extract validates data and returns its text. PDFs are validated with pdfcpu and page counted.
func Extract(filename string, data []byte) (*Result, error) {
	kind, mime, err := Detect(filename, data)
	if err != nil {
		return nil, err
	}
	res := &Result{Kind: kind, MIMEType: mime}
	switch kind {
	case KindPDF:
		pages, err := pdfPageCount(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		res.Pages = pages
		text, err := pdfText(data)
		if errors.Is(err, ErrTextTooLarge) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		res.Text = text
	case KindDOCX:
		text, err := docxText(data)
		if errors.Is(err, ErrTextTooLarge) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		res.Text = text
		res.Pages = 0
	case KindText:
		res.Text = string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	}
	res.Text = Clean(res.Text)
	if len(res.Text) > MaxTextBytes {
		return nil, ErrTextTooLarge
	}
	return res, nil
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func pdfPageCount(data []byte) (int, error) {
	conf := pdfConfig()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, plain, MaxTextBytes+1); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	if buf.Len() > MaxTextBytes {
		return "", ErrTextTooLarge
	}
	return buf.String(), nil
}

// Clean normalizes line endings, drops NUL bytes and collapses runs of blank lines.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
