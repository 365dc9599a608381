package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MemberRepository handles database operations for project memberships
type MemberRepository struct {
	db *db.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(database *db.DB) *MemberRepository {
	return &MemberRepository{db: database}
}

// ListByProject retrieves all members of a project
func (r *MemberRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Member, error) {
	query := `
		SELECT project_id, user_id, role, added_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY user_id ASC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m := &models.Member{}
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// Get retrieves one membership
func (r *MemberRepository) Get(ctx context.Context, projectID uuid.UUID, userID string) (*models.Member, error) {
	query := `
		SELECT project_id, user_id, role, added_at
		FROM project_members
		WHERE project_id = $1 AND user_id = $2
	`

	m := &models.Member{}
	err := r.db.QueryRow(ctx, query, projectID, userID).Scan(&m.ProjectID, &m.UserID, &m.Role, &m.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "member %s in project %s", userID, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return m, nil
}
