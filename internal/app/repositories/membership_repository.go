package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memoria-app/memoria/internal/app/models"
	"github.com/memoria-app/memoria/internal/pkg/apperrors"
	"github.com/memoria-app/memoria/internal/pkg/dberrors"
)

// IMembershipRepository defines the interface for membership database operations
type IMembershipRepository interface {
	Add(ctx context.Context, membership *models.Membership) error
	Remove(ctx context.Context, groupID, userID int64) error
	GetByGroupAndUser(ctx context.Context, groupID, userID int64) (*models.Membership, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	ListByGroupID(ctx context.Context, groupID int64) ([]*models.Membership, error)
	CountByGroupIDs(ctx context.Context, groupIDs []int64) (map[int64]int, error)
}

// MembershipRepository handles database operations for group memberships
type MembershipRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewMembershipRepository creates a new MembershipRepository
func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Add inserts a membership row. A second insert for the same pair
// returns ErrResourceAlreadyExists via the unique constraint.
func (r *MembershipRepository) Add(ctx context.Context, membership *models.Membership) error {
	now := time.Now()

	sql, args, err := r.sb.Insert("group_members").
		Columns("group_id", "user_id", "role", "joined_at").
		Values(membership.GroupID, membership.UserID, membership.Role, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "group_members_group_id_user_id_key") {
			return apperrors.ErrResourceAlreadyExists
		}
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrGroupNotFound
		}
		return fmt.Errorf("error adding membership: %w", err)
	}

	membership.ID = id
	membership.JoinedAt = now
	return nil
}

// Remove deletes the membership row for the given pair
func (r *MembershipRepository) Remove(ctx context.Context, groupID, userID int64) error {
	sql, args, err := r.sb.Delete("group_members").
		Where(squirrel.Eq{"group_id": groupID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error removing membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotGroupMember
	}

	return nil
}

// GetByGroupAndUser retrieves a single membership row
func (r *MembershipRepository) GetByGroupAndUser(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
	sql, args, err := r.sb.Select("id", "group_id", "user_id", "role", "joined_at").
		From("group_members").
		Where(squirrel.Eq{"group_id": groupID, "user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	var membership models.Membership
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&membership.ID,
		&membership.GroupID,
		&membership.UserID,
		&membership.Role,
		&membership.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotGroupMember
		}
		return nil, fmt.Errorf("error retrieving membership: %w", err)
	}

	return &membership, nil
}

// IsMember checks whether the user belongs to the group
func (r *MembershipRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	sql, args, err := r.sb.Select("COUNT(*)").
		From("group_members").
		Where(squirrel.Eq{"group_id": groupID, "user_id": userID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("error building SQL: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("error checking membership: %w", err)
	}

	return count > 0, nil
}

// ListByGroupID retrieves all memberships of a group, oldest first so
// the owner typically leads the list
func (r *MembershipRepository) ListByGroupID(ctx context.Context, groupID int64) ([]*models.Membership, error) {
	sql, args, err := r.sb.Select("id", "group_id", "user_id", "role", "joined_at").
		From("group_members").
		Where(squirrel.Eq{"group_id": groupID}).
		OrderBy("joined_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		var membership models.Membership
		err := rows.Scan(
			&membership.ID,
			&membership.GroupID,
			&membership.UserID,
			&membership.Role,
			&membership.JoinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		memberships = append(memberships, &membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return memberships, nil
}

// CountByGroupIDs retrieves member counts for multiple groups at once
func (r *MembershipRepository) CountByGroupIDs(ctx context.Context, groupIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int)
	if len(groupIDs) == 0 {
		return counts, nil
	}

	sql, args, err := r.sb.Select("group_id", "COUNT(*)").
		From("group_members").
		Where(squirrel.Eq{"group_id": groupIDs}).
		GroupBy("group_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID int64
		var count int
		if err := rows.Scan(&groupID, &count); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		counts[groupID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}
