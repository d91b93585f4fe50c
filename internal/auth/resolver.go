package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/utils"
)

// Identity sources.
const (
	SourceSession = "session"
	SourceAPIKey  = "api_key"
)

// APIKeyHeader carries personal API keys.
const APIKeyHeader = "X-API-Key"

var ErrInvalidAPIKey = errors.New("invalid api key")

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Source string
}

// APIKeyStore looks up API keys by prefix.
type APIKeyStore interface {
	GetByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

// Resolver reads the caller identity from a request.
type Resolver struct {
	verifier   *Verifier
	keys       APIKeyStore
	cookieName string
	logger     *zap.Logger
}

// NewResolver creates a resolver. keys may be nil to disable API key auth.
func NewResolver(verifier *Verifier, keys APIKeyStore, cookieName string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{verifier: verifier, keys: keys, cookieName: cookieName, logger: logger}
}

// Resolve returns the identity for r. It returns nil, nil when the request carries no credentials.
// Tokens are read from the Authorization bearer header, then the session cookie, then the token
// query parameter on WebSocket upgrades.
func (res *Resolver) Resolve(r *http.Request) (*Identity, error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return res.resolveAPIKey(r.Context(), key)
	}
	token := res.token(r)
	if token == "" {
		return nil, nil
	}
	claims, err := res.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	userID, _ := claims.UserID()
	return &Identity{UserID: userID, Email: claims.Email, Source: SourceSession}, nil
}

func (res *Resolver) token(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if res.cookieName != "" {
		if c, err := r.Cookie(res.cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

func (res *Resolver) resolveAPIKey(ctx context.Context, key string) (*Identity, error) {
	if res.keys == nil {
		return nil, ErrInvalidAPIKey
	}
	prefix, secret, ok := ParseAPIKey(key)
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	stored, err := res.keys.GetByPrefix(ctx, prefix)
	if err != nil || stored == nil || !stored.Active() {
		return nil, ErrInvalidAPIKey
	}
	if !utils.CheckSecret(secret, stored.KeyHash) {
		return nil, ErrInvalidAPIKey
	}
	if err := res.keys.TouchLastUsed(ctx, stored.ID); err != nil {
		res.logger.Warn("touch api key", zap.String("key_id", stored.ID.String()), zap.Error(err))
	}
	return &Identity{UserID: stored.UserID, Source: SourceAPIKey}, nil
}
