package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
)

type commentRepository struct {
	db  *commentTable
	now func() time.Time
}

// NewCommentRepository creates a comment repository backed by db.
func NewCommentRepository(db *DB) annotationRepo.CommentRepository {
	return &commentRepository{db: db.comments, now: time.Now}
}

func (r *commentRepository) Create(_ context.Context, comment *models.Comment) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	for _, c := range r.db.t {
		if c.Scope() == comment.Scope() && c.HighlightID == comment.HighlightID {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("highlight '%s' already has a comment", comment.HighlightID),
				ResourceType: "comment",
				ResourceID:   comment.HighlightID,
			}
		}
	}

	comment.ID = uuid.NewString()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = r.now()
	}
	if comment.UpdatedAt.IsZero() {
		comment.UpdatedAt = comment.CreatedAt
	}
	stored := *comment
	r.db.t[comment.ID] = &stored
	return nil
}

// ListByScope returns matches in map order; callers sort.
func (r *commentRepository) ListByScope(_ context.Context, scope models.Scope, userID string) ([]models.Comment, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	res := make([]models.Comment, 0)
	for _, c := range r.db.t {
		if c.Scope() == scope && c.UserID == userID {
			res = append(res, *c)
		}
	}
	return res, nil
}

func (r *commentRepository) GetByID(_ context.Context, scope models.Scope, id string) (*models.Comment, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	c, ok := r.db.t[id]
	if !ok || c.Scope() != scope {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	res := *c
	return &res, nil
}

func (r *commentRepository) UpdateText(_ context.Context, scope models.Scope, id, commentText string, updatedAt time.Time) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	c, ok := r.db.t[id]
	if !ok || c.Scope() != scope {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	c.CommentText = commentText
	c.UpdatedAt = updatedAt
	return nil
}

func (r *commentRepository) Delete(_ context.Context, scope models.Scope, id string) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	c, ok := r.db.t[id]
	if !ok || c.Scope() != scope {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	delete(r.db.t, id)
	return nil
}
