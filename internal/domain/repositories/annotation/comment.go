package annotation

import (
	"context"
	"time"

	"marginalia/internal/domain/models/annotation"
)

// CommentRepository defines data access operations for chapter comments.
// Implementations need not return comments in any particular order.
type CommentRepository interface {
	// Create persists a new comment and assigns its ID
	Create(ctx context.Context, comment *annotation.Comment) error

	// ListByScope lists a user's comments on one chapter
	ListByScope(ctx context.Context, scope annotation.Scope, userID string) ([]annotation.Comment, error)

	// GetByID retrieves a comment within a chapter
	GetByID(ctx context.Context, scope annotation.Scope, id string) (*annotation.Comment, error)

	// UpdateText replaces a comment's text
	UpdateText(ctx context.Context, scope annotation.Scope, id, commentText string, updatedAt time.Time) error

	// Delete removes a comment
	Delete(ctx context.Context, scope annotation.Scope, id string) error
}
