package annotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
)

func TestSessionRegistry(t *testing.T) {
	f := newFixture(t)
	f.putChapter(t, testScope, "<p>The quick brown fox</p>")
	registry := NewSessionRegistry(f.deps)

	s := registry.Session(testUser)
	assert.Same(t, s, registry.Session(testUser))
	assert.NotSame(t, s, registry.Session("user-2"))
	assert.Equal(t, 2, registry.Len())

	_, err := registry.Current(testUser, testScope)
	assert.True(t, errors.Is(err, domain.ErrNotMounted), "session has no chapter open yet")

	_, err = s.Open(context.Background(), testScope)
	require.NoError(t, err)

	current, err := registry.Current(testUser, testScope)
	require.NoError(t, err)
	assert.Same(t, s, current)

	_, err = registry.Current(testUser, models.Scope{CourseID: "course-1", ChapterIndex: 9})
	assert.True(t, errors.Is(err, domain.ErrNotMounted))

	registry.Close("user-2")
	assert.Equal(t, 1, registry.Len())
}

func TestSessionRegistry_PruneIdle(t *testing.T) {
	f := newFixture(t)
	registry := NewSessionRegistry(f.deps)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }

	registry.Session("idle")
	now = now.Add(20 * time.Minute)
	registry.Session("active")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, registry.PruneIdle(30*time.Minute))
	assert.Equal(t, 1, registry.Len())

	_, err := registry.Current("idle", models.Scope{})
	assert.True(t, errors.Is(err, domain.ErrNotMounted))
}
