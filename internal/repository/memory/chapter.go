package memory

import (
	"context"
	"fmt"
	"time"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
)

type chapterRepository struct {
	db *chapterTable
}

// NewChapterRepository creates a chapter repository backed by db.
func NewChapterRepository(db *DB) annotationRepo.ChapterRepository {
	return &chapterRepository{db: db.chapters}
}

func (r *chapterRepository) GetChapter(_ context.Context, scope models.Scope) (*models.Chapter, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	ch, ok := r.db.t[scope]
	if !ok {
		return nil, fmt.Errorf("chapter %s: %w", scope, domain.ErrNotFound)
	}
	res := *ch
	return &res, nil
}

func (r *chapterRepository) Upsert(_ context.Context, chapter *models.Chapter) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if chapter.UpdatedAt.IsZero() {
		chapter.UpdatedAt = time.Now()
	}
	stored := *chapter
	r.db.t[chapter.Scope()] = &stored
	return nil
}
