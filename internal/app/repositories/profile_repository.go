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

// IProfileRepository defines the interface for profile database operations
type IProfileRepository interface {
	Upsert(ctx context.Context, profile *models.Profile) error
	GetByUserID(ctx context.Context, userID int64) (*models.Profile, error)
	GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Update(ctx context.Context, profile *models.Profile) error
}

// ProfileRepository handles database operations for user profiles
type ProfileRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert inserts a profile row or refreshes it if one already exists for
// the user. Registration retries land here without erroring.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.Profile) error {
	now := time.Now()

	sql, args, err := r.sb.Insert("profiles").
		Columns("user_id", "name", "username", "phone", "created_at", "updated_at").
		Values(profile.UserID, profile.Name, profile.Username, profile.Phone, now, now).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, username = EXCLUDED.username, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "profiles_username_key") {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("error upserting profile: %w", err)
	}

	return nil
}

// GetByUserID retrieves the profile for a user
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	sql, args, err := r.sb.Select(
		"user_id", "name", "username", "phone", "created_at", "updated_at",
	).
		From("profiles").
		Where(squirrel.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	var profile models.Profile
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&profile.UserID,
		&profile.Name,
		&profile.Username,
		&profile.Phone,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrResourceNotFound
		}
		return nil, fmt.Errorf("error retrieving profile: %w", err)
	}

	return &profile, nil
}

// GetByUserIDs retrieves profiles for multiple users in one query
func (r *ProfileRepository) GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error) {
	profiles := make(map[int64]*models.Profile)
	if len(userIDs) == 0 {
		return profiles, nil
	}

	sql, args, err := r.sb.Select(
		"user_id", "name", "username", "phone", "created_at", "updated_at",
	).
		From("profiles").
		Where(squirrel.Eq{"user_id": userIDs}).
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
		var profile models.Profile
		err := rows.Scan(
			&profile.UserID,
			&profile.Name,
			&profile.Username,
			&profile.Phone,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		profiles[profile.UserID] = &profile
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return profiles, nil
}

// UsernameExists checks whether a username is already taken
func (r *ProfileRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	sql, args, err := r.sb.Select("COUNT(*)").
		From("profiles").
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("error building SQL: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("error checking username existence: %w", err)
	}

	return count > 0, nil
}

// Update modifies an existing profile
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	sql, args, err := r.sb.Update("profiles").
		Set("name", profile.Name).
		Set("username", profile.Username).
		Set("phone", profile.Phone).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"user_id": profile.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "profiles_username_key") {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("error updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrResourceNotFound
	}

	return nil
}
