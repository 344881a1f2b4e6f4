package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	models "marginalia/internal/domain/models/annotation"
	"marginalia/internal/domain/repositories"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
)

// NewClient connects to redisURL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// CachedCommentRepository caches ListByScope results per chapter in a Redis
// hash (one field per user) and drops the chapter's hash on every write.
// Redis errors are logged and the wrapped repository answers instead.
type CachedCommentRepository struct {
	annotationRepo.CommentRepository
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedCommentRepository wraps next with a list cache.
func NewCachedCommentRepository(next annotationRepo.CommentRepository, client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *CachedCommentRepository {
	return &CachedCommentRepository{
		CommentRepository: next,
		client:            client,
		prefix:            prefix,
		ttl:               ttl,
		logger:            logger,
	}
}

// scopeKey returns the Redis key for a chapter's cached comment lists
func (r *CachedCommentRepository) scopeKey(scope models.Scope) string {
	return fmt.Sprintf("%scomments:%s:%d", r.prefix, scope.CourseID, scope.ChapterIndex)
}

// ListByScope serves from cache when possible
func (r *CachedCommentRepository) ListByScope(ctx context.Context, scope models.Scope, userID string) ([]models.Comment, error) {
	key := r.scopeKey(scope)

	data, err := r.client.HGet(ctx, key, userID).Result()
	switch {
	case err == nil:
		var comments []models.Comment
		if err := json.Unmarshal([]byte(data), &comments); err == nil {
			return comments, nil
		}
		r.logger.Warn("discarding unreadable cache entry", "key", key, "user_id", userID)
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("comment cache read failed", "key", key, "error", err)
	}

	comments, err := r.CommentRepository.ListByScope(ctx, scope, userID)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(comments)
	if err != nil {
		return comments, nil
	}
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, userID, encoded)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("comment cache write failed", "key", key, "error", err)
	}

	return comments, nil
}

// Create persists, then invalidates once the write has committed
func (r *CachedCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.CommentRepository.Create(ctx, comment); err != nil {
		return err
	}
	r.invalidate(ctx, comment.Scope())
	return nil
}

// UpdateText persists, then invalidates once the write has committed
func (r *CachedCommentRepository) UpdateText(ctx context.Context, scope models.Scope, id, commentText string, updatedAt time.Time) error {
	if err := r.CommentRepository.UpdateText(ctx, scope, id, commentText, updatedAt); err != nil {
		return err
	}
	r.invalidate(ctx, scope)
	return nil
}

// Delete persists, then invalidates once the write has committed
func (r *CachedCommentRepository) Delete(ctx context.Context, scope models.Scope, id string) error {
	if err := r.CommentRepository.Delete(ctx, scope, id); err != nil {
		return err
	}
	r.invalidate(ctx, scope)
	return nil
}

// invalidate drops the scope's cached lists once the surrounding
// transaction has committed.
func (r *CachedCommentRepository) invalidate(ctx context.Context, scope models.Scope) {
	key := r.scopeKey(scope)
	repositories.OnCommit(ctx, func() {
		if err := r.client.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			r.logger.Warn("comment cache invalidation failed", "key", key, "error", err)
		}
	})
}
