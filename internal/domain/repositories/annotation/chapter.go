package annotation

import (
	"context"

	"marginalia/internal/domain/models/annotation"
)

// ChapterRepository provides the rendered content comments anchor into.
type ChapterRepository interface {
	// GetChapter retrieves a chapter's content
	GetChapter(ctx context.Context, scope annotation.Scope) (*annotation.Chapter, error)

	// Upsert creates or replaces a chapter's content
	Upsert(ctx context.Context, chapter *annotation.Chapter) error
}
