package organizations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docuflow/backend/internal/models"
	"github.com/docuflow/backend/pkg/database"
)

var (
	ErrNotFound      = errors.New("organization not found")
	ErrNotMember     = errors.New("not a member of this organization")
	ErrSlugTaken     = errors.New("an organization with this slug already exists")
	ErrAlreadyMember = errors.New("user is already a member")
	ErrMemberMissing = errors.New("member not found")
)

// Repository handles organizations and organization_members persistence.
type Repository struct {
	db database.TxDB
}

// NewRepository creates an organizations repository.
func NewRepository(db database.TxDB) *Repository {
	return &Repository{db: db}
}

const orgColumns = `o.id, o.name, o.slug, o.owner_id, o.created_at, o.updated_at`

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Create inserts the organization and its owner membership in one transaction.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO organizations (name, slug, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, org.Name, org.Slug, org.OwnerID).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO organization_members (organization_id, user_id, role) VALUES ($1, $2, $3)`,
		org.ID, org.OwnerID, string(models.OrgRoleOwner)); err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.db.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations o WHERE o.id = $1`, id))
}

// Rename changes the organization name.
func (r *Repository) Rename(ctx context.Context, id uuid.UUID, name string) (*models.Organization, error) {
	const q = `UPDATE organizations o SET name = $2, updated_at = NOW() WHERE o.id = $1 RETURNING ` + orgColumns
	return scanOrg(r.db.QueryRow(ctx, q, id, name))
}

// Delete removes the organization; members, documents and activity cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRole returns the user's role in the organization, or ErrNotMember.
func (r *Repository) GetRole(ctx context.Context, orgID, userID uuid.UUID) (models.OrgRole, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotMember
		}
		return "", fmt.Errorf("get role: %w", err)
	}
	return models.OrgRole(role), nil
}

// IsMember reports whether the user belongs to the organization.
func (r *Repository) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	_, err := r.GetRole(ctx, orgID, userID)
	if errors.Is(err, ErrNotMember) {
		return false, nil
	}
	return err == nil, err
}

// ListForUser returns the organizations the user belongs to with their role and member count.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.OrganizationWithRole, error) {
	const q = `SELECT ` + orgColumns + `, m.role,
			(SELECT COUNT(*) FROM organization_members c WHERE c.organization_id = o.id)
		FROM organizations o
		INNER JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.name`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	list := make([]models.OrganizationWithRole, 0)
	for rows.Next() {
		var o models.OrganizationWithRole
		var role string
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt, &role, &o.MemberCount); err != nil {
			return nil, err
		}
		o.Role = models.OrgRole(role)
		list = append(list, o)
	}
	return list, rows.Err()
}

const memberColumns = `m.id, m.organization_id, m.user_id, m.role, p.email, p.full_name, m.created_at, m.updated_at`

func scanMember(row pgx.Row) (*models.OrganizationMember, error) {
	var m models.OrganizationMember
	var role string
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &m.Email, &m.FullName, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberMissing
		}
		return nil, err
	}
	m.Role = models.OrgRole(role)
	return &m, nil
}

// ListMembers returns members with profile details, owners first.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	const q = `SELECT ` + memberColumns + `
		FROM organization_members m
		INNER JOIN profiles p ON p.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, p.email`
	rows, err := r.db.Query(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	list := make([]models.OrganizationMember, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// GetMember returns one membership with profile details.
func (r *Repository) GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	const q = `SELECT ` + memberColumns + `
		FROM organization_members m
		INNER JOIN profiles p ON p.id = m.user_id
		WHERE m.organization_id = $1 AND m.user_id = $2`
	return scanMember(r.db.QueryRow(ctx, q, orgID, userID))
}

// AddMember inserts a membership. Returns ErrAlreadyMember when the user already belongs.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, role models.OrgRole) (*models.OrganizationMember, error) {
	const q = `WITH m AS (
			INSERT INTO organization_members (organization_id, user_id, role)
			VALUES ($1, $2, $3)
			RETURNING id, organization_id, user_id, role, created_at, updated_at
		)
		SELECT ` + memberColumns + ` FROM m INNER JOIN profiles p ON p.id = m.user_id`
	m, err := scanMember(r.db.QueryRow(ctx, q, orgID, userID, string(role)))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

// UpdateMemberRole changes a member's role.
func (r *Repository) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.OrgRole) error {
	tag, err := r.db.Exec(ctx, `UPDATE organization_members SET role = $3, updated_at = NOW()
		WHERE organization_id = $1 AND user_id = $2`, orgID, userID, string(role))
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberMissing
	}
	return nil
}

// RemoveMember deletes a membership. Owners are never removed here.
func (r *Repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM organization_members
		WHERE organization_id = $1 AND user_id = $2 AND role <> 'owner'`, orgID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberMissing
	}
	return nil
}

// NormalizeSlug lowercases and trims a requested slug.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
