package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
	"marginalia/internal/repository/postgres"
)

const commentColumns = `id, user_id, course_id, chapter_index, comment_text, selected_text,
	start_offset, end_offset, text_before, text_after, highlight_id, created_at, updated_at`

// PostgresCommentRepository implements the CommentRepository interface
type PostgresCommentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(config *postgres.RepositoryConfig) annotationRepo.CommentRepository {
	return &PostgresCommentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a comment and fills in its ID and timestamps
func (r *PostgresCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, course_id, chapter_index, comment_text, selected_text,
			start_offset, end_offset, text_before, text_after, highlight_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, r.tables.Comments)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		comment.UserID,
		comment.CourseID,
		comment.ChapterIndex,
		comment.CommentText,
		comment.SelectedText,
		comment.Position.StartOffset,
		comment.Position.EndOffset,
		comment.Position.TextBefore,
		comment.Position.TextAfter,
		comment.HighlightID,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("highlight '%s' already has a comment", comment.HighlightID),
				ResourceType: "comment",
				ResourceID:   comment.HighlightID,
			}
		}
		if postgres.IsPgCheckViolation(err) {
			return fmt.Errorf("invalid comment position: %w", domain.ErrValidation)
		}
		return fmt.Errorf("create comment: %w", err)
	}

	return nil
}

// ListByScope lists a user's comments on one chapter
func (r *PostgresCommentRepository) ListByScope(ctx context.Context, scope models.Scope, userID string) ([]models.Comment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE course_id = $1 AND chapter_index = $2 AND user_id = $3
		ORDER BY created_at ASC
	`, commentColumns, r.tables.Comments)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, scope.CourseID, scope.ChapterIndex, userID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

// GetByID retrieves a comment within a chapter
func (r *PostgresCommentRepository) GetByID(ctx context.Context, scope models.Scope, id string) (*models.Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND course_id = $2 AND chapter_index = $3
	`, commentColumns, r.tables.Comments)

	executor := postgres.GetExecutor(ctx, r.pool)
	comment, err := scanComment(executor.QueryRow(ctx, query, id, scope.CourseID, scope.ChapterIndex))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}

	return comment, nil
}

// UpdateText replaces a comment's text
func (r *PostgresCommentRepository) UpdateText(ctx context.Context, scope models.Scope, id, commentText string, updatedAt time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET comment_text = $1, updated_at = $2
		WHERE id = $3 AND course_id = $4 AND chapter_index = $5
	`, r.tables.Comments)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, commentText, updatedAt, id, scope.CourseID, scope.ChapterIndex)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a comment
func (r *PostgresCommentRepository) Delete(ctx context.Context, scope models.Scope, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND course_id = $2 AND chapter_index = $3
	`, r.tables.Comments)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, scope.CourseID, scope.ChapterIndex)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}

	r.logger.Debug("comment deleted", "id", id, "scope", scope.String())
	return nil
}

func scanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.CourseID,
		&c.ChapterIndex,
		&c.CommentText,
		&c.SelectedText,
		&c.Position.StartOffset,
		&c.Position.EndOffset,
		&c.Position.TextBefore,
		&c.Position.TextAfter,
		&c.HighlightID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
