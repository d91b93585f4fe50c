package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/database"
	"github.com/docuflow/backend/pkg/i18n"
)

var ErrNotFound = errors.New("profile not found")

// Repository handles profiles persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a profiles repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const profileColumns = `id, email, full_name, locale, stripe_customer_id, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Locale, &p.StripeCustomerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Ensure creates the profile for an auth user on first sight and keeps its email current.
func (r *Repository) Ensure(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error) {
	const q = `INSERT INTO profiles (id, email) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email,
			updated_at = CASE WHEN profiles.email = EXCLUDED.email THEN profiles.updated_at ELSE NOW() END
		RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRow(ctx, q, id, strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return p, nil
}

// Get returns a profile by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

// GetByEmail returns a profile by case-insensitive email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

// Update changes the provided fields and returns the profile.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fullName, locale *string) (*models.Profile, error) {
	const q = `UPDATE profiles SET
			full_name = COALESCE($2, full_name),
			locale = COALESCE($3, locale),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, q, id, fullName, locale))
}

// Locale returns the user's stored locale, or the default when the profile is missing.
func (r *Repository) Locale(ctx context.Context, id uuid.UUID) (string, error) {
	var locale string
	err := r.db.QueryRow(ctx, `SELECT locale FROM profiles WHERE id = $1`, id).Scan(&locale)
	if errors.Is(err, pgx.ErrNoRows) {
		return i18n.Default, nil
	}
	if err != nil {
		return i18n.Default, err
	}
	return locale, nil
}

// SetStripeCustomerID stores the Stripe customer used for personal billing.
func (r *Repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`, id, customerID)
	if err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
