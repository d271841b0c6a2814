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
)

// IMemoryRepository defines the interface for memory database operations
type IMemoryRepository interface {
	InsertBatch(ctx context.Context, memories []*models.Memory) error
	GetByID(ctx context.Context, id int64) (*models.Memory, error)
	ListByGroupID(ctx context.Context, groupID int64, limit int) ([]*models.Memory, error)
	Delete(ctx context.Context, id int64) error
}

// MemoryRepository handles database operations for memories
type MemoryRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewMemoryRepository creates a new MemoryRepository
func NewMemoryRepository(db *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// InsertBatch inserts one row per uploaded image in a single statement.
// All rows land together or the whole post fails.
func (r *MemoryRepository) InsertBatch(ctx context.Context, memories []*models.Memory) error {
	if len(memories) == 0 {
		return apperrors.ErrNoImages
	}

	now := time.Now()
	query := r.sb.Insert("memories").
		Columns("title", "description", "image_url", "group_id", "created_by", "created_at").
		Suffix("RETURNING id")

	for _, memory := range memories {
		query = query.Values(memory.Title, memory.Description, memory.ImageURL, memory.GroupID, memory.CreatedBy, now)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error inserting memories: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}
		if i < len(memories) {
			memories[i].ID = id
			memories[i].CreatedAt = now
		}
		i++
	}

	return rows.Err()
}

// GetByID retrieves a memory by ID
func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	sql, args, err := r.sb.Select(
		"id", "title", "description", "image_url", "group_id", "created_by", "created_at",
	).
		From("memories").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	var memory models.Memory
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&memory.ID,
		&memory.Title,
		&memory.Description,
		&memory.ImageURL,
		&memory.GroupID,
		&memory.CreatedBy,
		&memory.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMemoryNotFound
		}
		return nil, fmt.Errorf("error retrieving memory: %w", err)
	}

	return &memory, nil
}

// ListByGroupID retrieves a group's memories, newest first, capped at limit
func (r *MemoryRepository) ListByGroupID(ctx context.Context, groupID int64, limit int) ([]*models.Memory, error) {
	sql, args, err := r.sb.Select(
		"id", "title", "description", "image_url", "group_id", "created_by", "created_at",
	).
		From("memories").
		Where(squirrel.Eq{"group_id": groupID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var memories []*models.Memory
	for rows.Next() {
		var memory models.Memory
		err := rows.Scan(
			&memory.ID,
			&memory.Title,
			&memory.Description,
			&memory.ImageURL,
			&memory.GroupID,
			&memory.CreatedBy,
			&memory.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		memories = append(memories, &memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return memories, nil
}

// Delete removes a memory row
func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("memories").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error deleting memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMemoryNotFound
	}

	return nil
}
