package annotation

import "time"

// Chapter is rendered course content that comments anchor into.
type Chapter struct {
	CourseID     string    `json:"course_id" db:"course_id"`
	ChapterIndex int       `json:"chapter_index" db:"chapter_index"`
	Title        string    `json:"title" db:"title"`
	Content      string    `json:"content" db:"content"` // Sanitized HTML fragment
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Scope returns the chapter's comment scope.
func (c *Chapter) Scope() Scope {
	return Scope{CourseID: c.CourseID, ChapterIndex: c.ChapterIndex}
}
