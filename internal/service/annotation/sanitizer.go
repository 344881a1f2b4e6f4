package annotation

import (
	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer removes dangerous HTML from chapter content before it is
// stored or mounted. Highlight marker attributes are not allowed through, so
// stored content never carries markers of its own.
//
// Thread-safe for concurrent use.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer creates a sanitizer with the UGC policy: common formatting,
// headings, lists, tables and code blocks survive; scripts, event handlers and
// javascript: URLs do not.
func NewHTMLSanitizer() *HTMLSanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()

	return &HTMLSanitizer{policy: policy}
}

// Sanitize returns the cleaned HTML.
func (s *HTMLSanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
