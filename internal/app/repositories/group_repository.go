package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memoria-app/memoria/internal/app/models"
	"github.com/memoria-app/memoria/internal/pkg/apperrors"
)

// IGroupRepository defines the interface for group database operations
type IGroupRepository interface {
	CreateWithOwner(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	Update(ctx context.Context, group *models.Group) error
	UpdateCoverImage(ctx context.Context, groupID int64, imageURL string) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Group, error)
	ListPublic(ctx context.Context, search *string, limit int) ([]*models.Group, error)
}

// groupQuerier is the subset of *pgxpool.Pool the repository uses,
// narrowed so tests can substitute it
type groupQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// GroupRepository handles database operations for groups
type GroupRepository struct {
	db groupQuerier
	sb squirrel.StatementBuilderType
}

// NewGroupRepository creates a new GroupRepository
func NewGroupRepository(db *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const groupColumns = "id, name, description, image_url, is_private, allow_all_photos, created_by, created_at, updated_at"

func scanGroup(row pgx.Row) (*models.Group, error) {
	var group models.Group
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.ImageURL,
		&group.IsPrivate,
		&group.AllowAllPhotos,
		&group.CreatedBy,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateWithOwner inserts the group and its owner membership in a single
// transaction. Either both rows exist afterwards or neither does.
func (r *GroupRepository) CreateWithOwner(ctx context.Context, group *models.Group) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	sql, args, err := r.sb.Insert("groups").
		Columns("name", "description", "image_url", "is_private", "allow_all_photos", "created_by", "created_at", "updated_at").
		Values(group.Name, group.Description, group.ImageURL, group.IsPrivate, group.AllowAllPhotos, group.CreatedBy, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	var id int64
	if err := tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return fmt.Errorf("error creating group: %w", err)
	}

	sql, args, err = r.sb.Insert("group_members").
		Columns("group_id", "user_id", "role", "joined_at").
		Values(id, group.CreatedBy, models.RoleOwner, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error creating owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	group.ID = id
	group.CreatedAt = now
	group.UpdatedAt = now
	return nil
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	sql, args, err := r.sb.Select(groupColumns).
		From("groups").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	group, err := scanGroup(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, fmt.Errorf("error retrieving group: %w", err)
	}

	return group, nil
}

// Update modifies a group's editable fields
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	sql, args, err := r.sb.Update("groups").
		Set("name", group.Name).
		Set("description", group.Description).
		Set("is_private", group.IsPrivate).
		Set("allow_all_photos", group.AllowAllPhotos).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": group.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrGroupNotFound
	}

	return nil
}

// UpdateCoverImage sets the group's cover image URL
func (r *GroupRepository) UpdateCoverImage(ctx context.Context, groupID int64, imageURL string) error {
	sql, args, err := r.sb.Update("groups").
		Set("image_url", imageURL).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": groupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating group cover image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrGroupNotFound
	}

	return nil
}

// ListByUser retrieves every group the user created or joined, newest
// first. The DISTINCT collapses groups that match both conditions.
func (r *GroupRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Group, error) {
	sql, args, err := r.sb.Select(
		"DISTINCT g.id", "g.name", "g.description", "g.image_url",
		"g.is_private", "g.allow_all_photos", "g.created_by", "g.created_at", "g.updated_at",
	).
		From("groups g").
		LeftJoin("group_members gm ON gm.group_id = g.id").
		Where(squirrel.Or{
			squirrel.Eq{"g.created_by": userID},
			squirrel.Eq{"gm.user_id": userID},
		}).
		OrderBy("g.created_at DESC", "g.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	return r.queryGroups(ctx, sql, args)
}

// ListPublic retrieves public groups newest first, optionally filtered by
// a name search, capped at limit rows.
func (r *GroupRepository) ListPublic(ctx context.Context, search *string, limit int) ([]*models.Group, error) {
	query := r.sb.Select(groupColumns).
		From("groups").
		Where(squirrel.Eq{"is_private": false}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	if search != nil && *search != "" {
		query = query.Where("name ILIKE ?", "%"+*search+"%")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	return r.queryGroups(ctx, sql, args)
}

func (r *GroupRepository) queryGroups(ctx context.Context, sql string, args []interface{}) ([]*models.Group, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return groups, nil
}
