package anchor

import (
	"strings"

	"golang.org/x/net/html"
)

// Range is a span of content between two text boundary points.
// Both containers are text nodes; offsets are UTF-16 units into their data.
type Range struct {
	StartContainer *html.Node
	StartOffset    int
	EndContainer   *html.Node
	EndOffset      int
}

// IsZero reports whether the range has no boundaries.
func (r Range) IsZero() bool {
	return r.StartContainer == nil || r.EndContainer == nil
}

// Clone returns an independent copy of the range.
func (r Range) Clone() *Range {
	c := r
	return &c
}

// Collapsed reports whether start and end are the same point.
func (r Range) Collapsed() bool {
	return r.StartContainer == r.EndContainer && r.StartOffset == r.EndOffset
}

// String returns the text the range covers.
func (r Range) String() string {
	if r.IsZero() {
		return ""
	}
	if r.StartContainer == r.EndContainer {
		return sliceUnits(r.StartContainer.Data, r.StartOffset, r.EndOffset)
	}

	var b strings.Builder
	start := r.StartContainer
	b.WriteString(sliceUnits(start.Data, r.StartOffset, unitLen(start.Data)))
	for n := nextInDocument(start, nil); n != nil; n = nextInDocument(n, nil) {
		if n == r.EndContainer {
			b.WriteString(sliceUnits(n.Data, 0, r.EndOffset))
			break
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
	}
	return b.String()
}

// nextInDocument returns the node after n in pre-order, never leaving root.
// A nil root walks the whole tree.
func nextInDocument(n, root *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	return nextSkippingChildren(n, root)
}

// nextSkippingChildren returns the node after n's subtree in pre-order.
func nextSkippingChildren(n, root *html.Node) *html.Node {
	for ; n != nil && n != root; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}
