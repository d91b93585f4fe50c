// Package ai summarizes and embeds documents with OpenAI.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/metrics"
	"github.com/docuflow/backend/pkg/retry"
)

// EmbeddingDimensions is the vector size stored in documents.embedding.
const EmbeddingDimensions = 1536

const (
	defaultMaxChars = 12000
	summaryMaxChars = 1200
	titleMaxChars   = 200
)

var (
	ErrNotConfigured = errors.New("openai is not configured")
	ErrEmptyResponse = errors.New("openai returned no content")
	ErrEmptyInput    = errors.New("nothing to embed")
)

const systemPrompt = `You analyze documents for a document management app.
Reply with a JSON object with these keys:
"title": a short descriptive title (only if the given title is a file name or empty, else ""),
"category": one of contract, invoice, report, letter, resume, research, legal, financial, other,
"summary": a concise summary in 2 to 4 sentences, written in the document's language,
"tags": up to 8 short lowercase topical tags.`

// Summary is the AI analysis of a document.
type Summary struct {
	Title    string   `json:"title,omitempty"`
	Category string   `json:"category"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
}

// Config holds model settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	MaxChars       int
	Retry          retry.Policy
}

// Client calls OpenAI chat completions and embeddings with retries.
type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel openai.EmbeddingModel
	maxChars   int
	policy     retry.Policy
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// New creates an OpenAI client. Returns ErrNotConfigured without an API key.
func New(cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c := &Client{
		api:        openai.NewClientWithConfig(oc),
		chatModel:  cfg.ChatModel,
		embedModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		maxChars:   cfg.MaxChars,
		policy:     cfg.Retry,
		metrics:    m,
		logger:     logger,
	}
	if c.chatModel == "" {
		c.chatModel = "gpt-4o-mini"
	}
	if c.embedModel == "" {
		c.embedModel = "text-embedding-3-small"
	}
	if c.maxChars <= 0 {
		c.maxChars = defaultMaxChars
	}
	if c.policy.MaxAttempts == 0 {
		c.policy = retry.DefaultPolicy
	}
	return c, nil
}

// Summarize asks the chat model for a category, summary and tags of text.
func (c *Client) Summarize(ctx context.Context, title, text string) (*Summary, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Title: %s\n\n%s", title, Truncate(text, c.maxChars))},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	}
	var content string
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return retry.Permanent(ErrEmptyResponse)
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	c.metrics.AIRequest("summarize", err)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	return ParseSummary(content)
}

// Embed returns the embedding vector of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	req := openai.EmbeddingRequest{
		Input: []string{Truncate(text, c.maxChars)},
		Model: c.embedModel,
	}
	var vec []float32
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Data) == 0 {
			return retry.Permanent(ErrEmptyResponse)
		}
		vec = resp.Data[0].Embedding
		return nil
	})
	c.metrics.AIRequest("embed", err)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) != EmbeddingDimensions {
		return nil, fmt.Errorf("embed: expected %d dimensions, got %d", EmbeddingDimensions, len(vec))
	}
	return vec, nil
}

// classify marks client errors other than 429 as permanent.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && !retry.RetryableStatus(apiErr.HTTPStatusCode) {
		return retry.Permanent(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && !retry.RetryableStatus(reqErr.HTTPStatusCode) {
		return retry.Permanent(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Permanent(err)
	}
	return err
}

// ParseSummary decodes and normalizes a model reply.
func ParseSummary(content string) (*Summary, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	var s Summary
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	s.Title = Truncate(strings.TrimSpace(s.Title), titleMaxChars)
	s.Summary = Truncate(strings.TrimSpace(s.Summary), summaryMaxChars)
	s.Category = models.NormalizeCategory(s.Category)
	s.Tags = models.NormalizeTags(s.Tags)
	return &s, nil
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
