package config

const (
	// MaxCommentLength is the maximum length of a comment body.
	// Comments are margin notes, not documents.
	MaxCommentLength = 5000

	// MaxSelectedTextLength bounds the snapshot of commented text.
	// Long enough for a few paragraphs of chapter content.
	MaxSelectedTextLength = 20000

	// MaxCourseIDLength bounds course identifiers taken from URLs.
	MaxCourseIDLength = 255

	// MaxChapterTitleLength bounds chapter titles.
	MaxChapterTitleLength = 255

	// MaxChapterContentLength is the maximum size of a chapter HTML fragment (2MB).
	MaxChapterContentLength = 2 << 20

	// DefaultContextWindow is how much text is captured on each side of a
	// selection for re-anchoring.
	DefaultContextWindow = 100
)
