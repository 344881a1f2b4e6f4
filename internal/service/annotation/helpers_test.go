package annotation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marginalia/internal/anchor"
	"marginalia/internal/config"
	models "marginalia/internal/domain/models/annotation"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
	annotationSvc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/highlight"
	"marginalia/internal/repository/memory"
)

const testUser = "user-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyRepo wraps a repository with injectable failures and gates that hold
// Create or ListByScope until released.
type flakyRepo struct {
	annotationRepo.CommentRepository

	mu          sync.Mutex
	createErr   error
	deleteErr   error
	listGate    chan struct{}
	listStarted chan struct{}

	createGate    chan struct{}
	createStarted chan struct{}
}

func (r *flakyRepo) Create(ctx context.Context, c *models.Comment) error {
	r.mu.Lock()
	err := r.createErr
	gate, started := r.createGate, r.createStarted
	r.mu.Unlock()
	if gate != nil {
		close(started)
		<-gate
	}
	if err != nil {
		return err
	}
	return r.CommentRepository.Create(ctx, c)
}

func (r *flakyRepo) Delete(ctx context.Context, scope models.Scope, id string) error {
	r.mu.Lock()
	err := r.deleteErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.CommentRepository.Delete(ctx, scope, id)
}

func (r *flakyRepo) ListByScope(ctx context.Context, scope models.Scope, userID string) ([]models.Comment, error) {
	r.mu.Lock()
	gate, started := r.listGate, r.listStarted
	r.mu.Unlock()
	if gate != nil {
		close(started)
		<-gate
	}
	return r.CommentRepository.ListByScope(ctx, scope, userID)
}

func (r *flakyRepo) setCreateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func (r *flakyRepo) setDeleteErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteErr = err
}

// holdList makes the next ListByScope block until the returned release is called.
func (r *flakyRepo) holdList() (started <-chan struct{}, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listGate = make(chan struct{})
	r.listStarted = make(chan struct{})
	gate := r.listGate
	return r.listStarted, func() {
		r.mu.Lock()
		r.listGate = nil
		r.mu.Unlock()
		close(gate)
	}
}

// holdCreate makes the next Create block until the returned release is called.
func (r *flakyRepo) holdCreate() (started <-chan struct{}, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createGate = make(chan struct{})
	r.createStarted = make(chan struct{})
	gate := r.createGate
	return r.createStarted, func() {
		r.mu.Lock()
		r.createGate = nil
		r.mu.Unlock()
		close(gate)
	}
}

type fixture struct {
	repo     *flakyRepo
	chapters annotationSvc.ChapterService
	comments annotationSvc.CommentService
	deps     SessionDeps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.Open()
	logger := testLogger()

	repo := &flakyRepo{CommentRepository: memory.NewCommentRepository(db)}
	sanitizer := NewHTMLSanitizer()
	comments := NewCommentService(repo, memory.NewTransactionManager(), logger)
	chapters := NewChapterService(memory.NewChapterRepository(db), sanitizer, logger)

	return &fixture{
		repo:     repo,
		chapters: chapters,
		comments: comments,
		deps: SessionDeps{
			Comments:  comments,
			Chapters:  chapters,
			Codec:     anchor.NewCodec(logger, anchor.CodecOptions{FuzzyRelocation: true}),
			Engine:    highlight.NewEngine(config.DefaultHighlightStyles(), logger),
			Sanitizer: sanitizer,
			Logger:    logger,
		},
	}
}

func (f *fixture) putChapter(t *testing.T, scope models.Scope, content string) {
	t.Helper()
	_, err := f.chapters.PutChapter(context.Background(), &annotationSvc.PutChapterRequest{
		Scope:   scope,
		Title:   "Chapter",
		Content: content,
	})
	require.NoError(t, err)
}

// seed stores a comment directly, bypassing validation.
func (f *fixture) seed(t *testing.T, scope models.Scope, highlightID, selected string, pos models.Position, createdAt time.Time) models.Comment {
	t.Helper()
	c := &models.Comment{
		UserID:       testUser,
		CourseID:     scope.CourseID,
		ChapterIndex: scope.ChapterIndex,
		CommentText:  "note on " + selected,
		SelectedText: selected,
		Position:     pos,
		HighlightID:  highlightID,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	require.NoError(t, f.repo.CommentRepository.Create(context.Background(), c))
	return *c
}

func selectRange(t *testing.T, s *Session, start, end anchor.Boundary) anchor.SelectionSnapshot {
	t.Helper()
	snap, err := s.Select(anchor.SelectionEvent{Start: start, End: end})
	require.NoError(t, err)
	require.False(t, snap.Empty())
	return snap
}

func markerText(s *Session, highlightID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := ""
	for _, m := range s.engine.Markers(s.root, highlightID) {
		text += anchor.TextContent(m)
	}
	return text
}

func markerCount(s *Session, highlightID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engine.Markers(s.root, highlightID))
}

func contentText(s *Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return anchor.TextContent(s.root)
}
