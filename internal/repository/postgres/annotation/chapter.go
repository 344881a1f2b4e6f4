package annotation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
	"marginalia/internal/repository/postgres"
)

// PostgresChapterRepository implements the ChapterRepository interface
type PostgresChapterRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewChapterRepository creates a new chapter repository
func NewChapterRepository(config *postgres.RepositoryConfig) annotationRepo.ChapterRepository {
	return &PostgresChapterRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// GetChapter retrieves a chapter's content
func (r *PostgresChapterRepository) GetChapter(ctx context.Context, scope models.Scope) (*models.Chapter, error) {
	query := fmt.Sprintf(`
		SELECT course_id, chapter_index, title, content, updated_at
		FROM %s
		WHERE course_id = $1 AND chapter_index = $2
	`, r.tables.Chapters)

	var chapter models.Chapter
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, scope.CourseID, scope.ChapterIndex).Scan(
		&chapter.CourseID,
		&chapter.ChapterIndex,
		&chapter.Title,
		&chapter.Content,
		&chapter.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("chapter %s: %w", scope, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chapter: %w", err)
	}

	return &chapter, nil
}

// Upsert creates or replaces a chapter's content
func (r *PostgresChapterRepository) Upsert(ctx context.Context, chapter *models.Chapter) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (course_id, chapter_index, title, content, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (course_id, chapter_index) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`, r.tables.Chapters)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		chapter.CourseID,
		chapter.ChapterIndex,
		chapter.Title,
		chapter.Content,
		chapter.UpdatedAt,
	).Scan(&chapter.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert chapter: %w", err)
	}

	return nil
}
