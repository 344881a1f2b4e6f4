package annotation

import (
	"fmt"
	"time"
)

// Scope partitions comment storage: one course chapter.
type Scope struct {
	CourseID     string `json:"course_id"`
	ChapterIndex int    `json:"chapter_index"`
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%d", s.CourseID, s.ChapterIndex)
}

// Position locates a selection inside rendered chapter content.
// Offsets are UTF-16 code unit indices into the concatenated text of every
// text node in the content container, in document order.
type Position struct {
	StartOffset int    `json:"start_offset" db:"start_offset"`
	EndOffset   int    `json:"end_offset" db:"end_offset"`
	TextBefore  string `json:"text_before" db:"text_before"` // Up to 100 chars preceding the selection
	TextAfter   string `json:"text_after" db:"text_after"`   // Up to 100 chars following the selection
}

// Comment is a margin note attached to a span of chapter text.
type Comment struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	CourseID     string    `json:"course_id" db:"course_id"`
	ChapterIndex int       `json:"chapter_index" db:"chapter_index"`
	CommentText  string    `json:"comment_text" db:"comment_text"`
	SelectedText string    `json:"selected_text" db:"selected_text"` // Snapshot at creation time
	Position     Position  `json:"position"`
	HighlightID  string    `json:"highlight_id" db:"highlight_id"` // Correlates the comment to its markers
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Scope returns the chapter the comment belongs to.
func (c *Comment) Scope() Scope {
	return Scope{CourseID: c.CourseID, ChapterIndex: c.ChapterIndex}
}
