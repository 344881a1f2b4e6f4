package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"marginalia/internal/anchor"
	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	annotationSvc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/highlight"
)

// Point is a screen position used to place floating UI.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ActiveComment is the comment behind an activated highlight.
type ActiveComment struct {
	Comment models.Comment `json:"comment"`
	Anchor  *Point         `json:"anchor,omitempty"` // Top center of the clicked marker
}

// SkippedComment is a comment whose highlight could not be restored.
type SkippedComment struct {
	CommentID   string `json:"comment_id"`
	HighlightID string `json:"highlight_id"`
	Reason      string `json:"reason"`
}

// RestoreReport summarizes one restoration pass.
type RestoreReport struct {
	Restored []string         `json:"restored"` // Highlight IDs
	Skipped  []SkippedComment `json:"skipped"`
}

func (r *RestoreReport) clone() *RestoreReport {
	if r == nil {
		return nil
	}
	return &RestoreReport{
		Restored: append([]string{}, r.Restored...),
		Skipped:  append([]SkippedComment{}, r.Skipped...),
	}
}

// View is the rendered state of an open chapter.
type View struct {
	Scope             models.Scope     `json:"scope"`
	Title             string           `json:"title"`
	HTML              string           `json:"html"`
	Comments          []models.Comment `json:"comments"`
	ActiveHighlightID string           `json:"active_highlight_id,omitempty"`
	Restore           *RestoreReport   `json:"restore,omitempty"`
}

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Comments  annotationSvc.CommentService
	Chapters  annotationSvc.ChapterService
	Codec     *anchor.Codec
	Engine    *highlight.Engine
	Sanitizer *HTMLSanitizer
	Logger    *slog.Logger
}

// Session is one user's view of one chapter: the mounted content tree, its
// highlights, the current selection and the loaded comments.
//
// Operations are serialized by mu. Store calls run without the lock; their
// results are applied only if the session is still on the chapter (same
// generation) it was on when the call started.
type Session struct {
	userID    string
	comments  annotationSvc.CommentService
	chapters  annotationSvc.ChapterService
	codec     *anchor.Codec
	engine    *highlight.Engine
	sanitizer *HTMLSanitizer
	logger    *slog.Logger

	mu         sync.Mutex
	scope      models.Scope
	generation uint64
	title      string
	root       *html.Node // nil until content is mounted
	cell       commentCell
	pending    map[string]bool // Highlights applied by a create whose store call has not returned
	selection  *anchor.SelectionTracker
	active     string
	report     *RestoreReport
}

// NewSession creates an empty session for userID.
func NewSession(userID string, deps SessionDeps) *Session {
	return &Session{
		userID:    userID,
		comments:  deps.Comments,
		chapters:  deps.Chapters,
		codec:     deps.Codec,
		engine:    deps.Engine,
		sanitizer: deps.Sanitizer,
		logger:    deps.Logger.With("user_id", userID),
		selection: anchor.NewSelectionTracker(nil),
		pending:   make(map[string]bool),
	}
}

// Scope returns the chapter the session is on.
func (s *Session) Scope() models.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Mounted reports whether chapter content is mounted.
func (s *Session) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root != nil
}

// SwitchScope moves the session to another chapter and returns the new
// generation. Content, comments, selection and active state are dropped.
func (s *Session) SwitchScope(scope models.Scope) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.scope = scope
	s.title = ""
	s.root = nil
	s.cell.reset()
	clear(s.pending)
	s.selection.Reset(nil)
	s.active = ""
	s.report = nil

	s.logger.Debug("session switched chapter", "scope", scope.String(), "generation", s.generation)
	return s.generation
}

// Open switches to scope and loads its content and comments concurrently.
// Highlights are restored once both have arrived.
func (s *Session) Open(ctx context.Context, scope models.Scope) (*RestoreReport, error) {
	gen := s.SwitchScope(scope)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		chapter, err := s.chapters.GetChapter(gctx, scope)
		if err != nil {
			return err
		}
		_, err = s.mountAt(gen, &chapter.Title, chapter.Content)
		return err
	})
	g.Go(func() error {
		_, err := s.loadAt(gctx, gen, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return nil, domain.ErrStaleScope
	}
	return s.report.clone(), nil
}

// Mount signals that content for the current chapter is rendered. If the
// chapter's comments are already loaded, their highlights are restored and
// the report is returned; otherwise restoration runs when they arrive.
// The chapter title is kept.
func (s *Session) Mount(content string) (*RestoreReport, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	return s.mountAt(gen, nil, content)
}

// mountAt replaces the content tree; a nil title keeps the current one.
func (s *Session) mountAt(gen uint64, title *string, content string) (*RestoreReport, error) {
	root, err := anchor.ParseContainer(s.sanitizer.Sanitize(content))
	if err != nil {
		return nil, fmt.Errorf("mount chapter content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("discarding stale content", "generation", gen, "current", s.generation)
		return nil, domain.ErrStaleScope
	}

	s.root = root
	if title != nil {
		s.title = *title
	}
	s.selection.Reset(root)
	s.active = ""
	s.report = nil

	if !s.cell.loaded {
		return nil, nil
	}
	return s.restoreLocked(), nil
}

// LoadComments (re)loads the current chapter's comments. Results that
// arrive after the session has moved to another chapter are discarded with
// ErrStaleScope. Restoration waits for mounted content.
func (s *Session) LoadComments(ctx context.Context) (*RestoreReport, error) {
	s.mu.Lock()
	gen, scope := s.generation, s.scope
	s.mu.Unlock()

	return s.loadAt(ctx, gen, scope)
}

func (s *Session) loadAt(ctx context.Context, gen uint64, scope models.Scope) (*RestoreReport, error) {
	comments, err := s.comments.ListComments(ctx, scope, s.userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("discarding stale comment load",
			"scope", scope.String(),
			"current_scope", s.scope.String(),
		)
		return nil, domain.ErrStaleScope
	}

	s.cell.set(comments)
	if s.root == nil {
		return nil, nil
	}
	return s.restoreLocked(), nil
}

// restoreLocked applies every loaded comment's highlight independently and
// removes markers whose comment is gone. Markers of a create still waiting
// on the store are kept. A comment that cannot be anchored is skipped
// without affecting the others.
func (s *Session) restoreLocked() *RestoreReport {
	report := &RestoreReport{Restored: []string{}, Skipped: []SkippedComment{}}

	known := make(map[string]bool, len(s.cell.comments))
	for _, c := range s.cell.comments {
		known[c.HighlightID] = true
	}
	for _, id := range s.engine.HighlightIDs(s.root) {
		if !known[id] && !s.pending[id] {
			s.engine.Remove(s.root, id)
		}
	}
	if !known[s.active] {
		s.active = ""
	}

	for _, c := range s.cell.comments {
		r, err := s.codec.Relocate(s.root, c.Position, c.SelectedText)
		if err == nil {
			_, err = s.engine.Apply(s.root, r, c.HighlightID)
		}
		if err != nil {
			s.logger.Warn("highlight not restored",
				"comment_id", c.ID,
				"highlight_id", c.HighlightID,
				"start_offset", c.Position.StartOffset,
				"end_offset", c.Position.EndOffset,
				"error", err,
			)
			report.Skipped = append(report.Skipped, SkippedComment{
				CommentID:   c.ID,
				HighlightID: c.HighlightID,
				Reason:      err.Error(),
			})
			continue
		}
		report.Restored = append(report.Restored, c.HighlightID)
	}

	s.logger.Info("highlights restored",
		"scope", s.scope.String(),
		"restored", len(report.Restored),
		"skipped", len(report.Skipped),
	)

	s.report = report
	return report.clone()
}

// Select records a selection change reported by the client.
func (s *Session) Select(ev anchor.SelectionEvent) (anchor.SelectionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return anchor.SelectionSnapshot{}, domain.ErrNotMounted
	}
	return s.selection.Observe(ev), nil
}

// Selection returns the current selection.
func (s *Session) Selection() anchor.SelectionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Snapshot()
}

// ClearSelection drops the current selection. Closing the comment dialog
// uses it to discard the pending selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Clear()
}

// CreateComment anchors commentText to the current selection: the selection
// is encoded, highlighted, and then persisted. An encoding failure leaves the
// content untouched. A persistence failure leaves the highlight applied but
// unsaved; the next restoration pass removes it.
func (s *Session) CreateComment(ctx context.Context, commentText string) (*models.Comment, error) {
	text := strings.TrimSpace(commentText)
	if text == "" {
		return nil, fmt.Errorf("%w: comment text cannot be blank", domain.ErrValidation)
	}

	s.mu.Lock()
	if s.root == nil {
		s.mu.Unlock()
		return nil, domain.ErrNotMounted
	}
	snap := s.selection.Snapshot()
	if snap.Empty() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no text selected", domain.ErrValidation)
	}

	pos, err := s.codec.Encode(s.root, *snap.Range)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	highlightID := highlight.NewHighlightID()
	if _, err := s.engine.Apply(s.root, *snap.Range, highlightID); err != nil {
		s.mu.Unlock()
		return nil, &domain.EncodingError{Reason: err.Error()}
	}
	s.selection.Clear()
	s.pending[highlightID] = true
	gen, scope := s.generation, s.scope
	s.mu.Unlock()

	comment, err := s.comments.CreateComment(ctx, &annotationSvc.CreateCommentRequest{
		Scope:        scope,
		UserID:       s.userID,
		CommentText:  text,
		SelectedText: snap.Text,
		Position:     pos,
		HighlightID:  highlightID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, highlightID)

	if err != nil {
		s.logger.Warn("comment not saved, highlight left unsaved",
			"scope", scope.String(),
			"highlight_id", highlightID,
			"error", err,
		)
		return nil, err
	}
	if gen == s.generation {
		s.cell.add(*comment)
	}

	return comment, nil
}

// EditComment replaces a comment's text. The anchor does not change.
func (s *Session) EditComment(ctx context.Context, commentID, commentText string) (*models.Comment, error) {
	s.mu.Lock()
	gen, scope := s.generation, s.scope
	s.mu.Unlock()

	if gen == 0 {
		return nil, domain.ErrNotMounted
	}

	updated, err := s.comments.UpdateComment(ctx, scope, s.userID, commentID, &annotationSvc.UpdateCommentRequest{
		CommentText: commentText,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.cell.replace(*updated)
	}

	return updated, nil
}

// DeleteComment deletes a comment and then removes its markers, returning how
// many markers were removed. When the store call fails the markers stay.
func (s *Session) DeleteComment(ctx context.Context, commentID string) (int, error) {
	s.mu.Lock()
	gen, scope := s.generation, s.scope
	highlightID := ""
	if c, ok := s.cell.byID(commentID); ok {
		highlightID = c.HighlightID
	}
	s.mu.Unlock()

	if gen == 0 {
		return 0, domain.ErrNotMounted
	}

	if highlightID == "" {
		c, err := s.comments.GetComment(ctx, scope, s.userID, commentID)
		if err != nil {
			return 0, err
		}
		highlightID = c.HighlightID
	}

	if err := s.comments.DeleteComment(ctx, scope, s.userID, commentID); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return 0, nil
	}

	s.cell.remove(commentID)
	if s.active == highlightID {
		s.active = ""
	}
	if s.root == nil {
		return 0, nil
	}
	return s.engine.Remove(s.root, highlightID), nil
}

// Activate marks highlightID as the active highlight and resolves its
// comment. rect is the clicked marker's bounding box; the popover anchor is
// its top center.
func (s *Session) Activate(highlightID string, rect *anchor.Rect) (*ActiveComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return nil, domain.ErrNotMounted
	}
	comment, ok := s.cell.byHighlight(highlightID)
	if !ok || len(s.engine.Markers(s.root, highlightID)) == 0 {
		return nil, fmt.Errorf("highlight %s: %w", highlightID, domain.ErrNotFound)
	}

	s.engine.SetActive(s.root, highlightID)
	s.active = highlightID

	active := &ActiveComment{Comment: comment}
	if rect != nil {
		active.Anchor = &Point{X: rect.X + rect.Width/2, Y: rect.Y}
	}
	return active, nil
}

// Deactivate resets every highlight to the resting style.
func (s *Session) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root != nil {
		s.engine.SetActive(s.root, "")
	}
	s.active = ""
}

// Hover intensifies or restores every marker of highlightID.
func (s *Session) Hover(highlightID string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return domain.ErrNotMounted
	}
	if len(s.engine.Markers(s.root, highlightID)) == 0 {
		return fmt.Errorf("highlight %s: %w", highlightID, domain.ErrNotFound)
	}
	s.engine.SetHover(s.root, highlightID, on)
	return nil
}

// Comments returns the loaded comments, oldest first.
func (s *Session) Comments() []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cell.list()
}

// Render returns the mounted content with its markers.
func (s *Session) Render() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return "", domain.ErrNotMounted
	}
	return anchor.RenderContainer(s.root)
}

// View returns the rendered chapter together with its comments.
func (s *Session) View() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return nil, domain.ErrNotMounted
	}
	out, err := anchor.RenderContainer(s.root)
	if err != nil {
		return nil, err
	}
	return &View{
		Scope:             s.scope,
		Title:             s.title,
		HTML:              out,
		Comments:          s.cell.list(),
		ActiveHighlightID: s.active,
		Restore:           s.report.clone(),
	}, nil
}
