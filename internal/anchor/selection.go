package anchor

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"marginalia/internal/domain/models/annotation"
)

// Rect is a client-side bounding box, used only to place floating UI.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Boundary addresses a point in the container: Path lists child indices from
// the container to a node, Offset is a UTF-16 offset for text nodes or a
// child index for elements (as in the DOM Range API).
type Boundary struct {
	Path   []int `json:"path"`
	Offset int   `json:"offset"`
}

// SelectionEvent is a native selection change reported by the client.
type SelectionEvent struct {
	Start Boundary `json:"start"`
	End   Boundary `json:"end"`
	Rect  *Rect    `json:"rect,omitempty"`
}

// SelectionSnapshot is the current in-container selection. Start and End are
// container offsets; Range is resolved against the tree as it is when the
// snapshot is taken.
type SelectionSnapshot struct {
	Text  string `json:"text"`
	Start int    `json:"start_offset"`
	End   int    `json:"end_offset"`
	Range *Range `json:"-"`
	Rect  *Rect  `json:"rect"`
}

// Empty reports whether nothing is selected.
func (s SelectionSnapshot) Empty() bool {
	return s.Range == nil
}

var errNoTextAtBoundary = errors.New("no text at selection boundary")

// SelectionTracker follows the user's selection inside one container.
// The selection is held as container offsets, which survive marker wrapping
// and unwrapping; node references are derived from them on every Snapshot.
// It is not safe for concurrent use; the owning session serializes access.
type SelectionTracker struct {
	root    *html.Node
	current SelectionSnapshot
}

// NewSelectionTracker creates a tracker for root (which may be nil until content is mounted).
func NewSelectionTracker(root *html.Node) *SelectionTracker {
	return &SelectionTracker{root: root}
}

// Reset points the tracker at a new container and clears the selection.
func (t *SelectionTracker) Reset(root *html.Node) {
	t.root = root
	t.current = SelectionSnapshot{}
}

// Observe updates the snapshot from a selection event. Selections that are
// empty, collapsed, whitespace-only, or outside the container clear it.
func (t *SelectionTracker) Observe(ev SelectionEvent) SelectionSnapshot {
	if t.root == nil {
		t.Clear()
		return t.current
	}

	startNode, startOffset, err := ResolveBoundary(t.root, ev.Start)
	if err != nil {
		t.Clear()
		return t.current
	}
	endNode, endOffset, err := ResolveBoundary(t.root, ev.End)
	if err != nil {
		t.Clear()
		return t.current
	}

	m := BuildTextMap(t.root)
	start, okStart := m.Offset(startNode, startOffset)
	end, okEnd := m.Offset(endNode, endOffset)
	if !okStart || !okEnd {
		t.Clear()
		return t.current
	}
	// Backwards selections (focus before anchor) are normalized to document order.
	if end < start {
		start, end = end, start
	}
	if end == start {
		t.Clear()
		return t.current
	}

	r, err := decodeWith(m, annotation.Position{StartOffset: start, EndOffset: end})
	if err != nil {
		t.Clear()
		return t.current
	}
	text := strings.TrimSpace(r.String())
	if text == "" {
		t.Clear()
		return t.current
	}

	t.current = SelectionSnapshot{Text: text, Start: start, End: end}
	if ev.Rect != nil {
		rect := *ev.Rect
		t.current.Rect = &rect
	}
	return t.Snapshot()
}

// Snapshot returns the current selection with its range resolved against the
// container as it is now. A selection that no longer resolves to the same
// text is dropped.
func (t *SelectionTracker) Snapshot() SelectionSnapshot {
	if t.current.Text == "" || t.root == nil {
		return SelectionSnapshot{}
	}

	r, err := decodeWith(BuildTextMap(t.root), annotation.Position{StartOffset: t.current.Start, EndOffset: t.current.End})
	if err != nil || strings.TrimSpace(r.String()) != t.current.Text {
		t.Clear()
		return SelectionSnapshot{}
	}

	s := t.current
	s.Range = &r
	if s.Rect != nil {
		rect := *s.Rect
		s.Rect = &rect
	}
	return s
}

// Clear drops the current selection.
func (t *SelectionTracker) Clear() {
	t.current = SelectionSnapshot{}
}

// ResolveBoundary maps a client boundary onto a text node of root. Element
// boundaries resolve to the start of the next text node, or the end of the
// last text node when they point past an element's children.
func ResolveBoundary(root *html.Node, b Boundary) (*html.Node, int, error) {
	n := root
	for depth, idx := range b.Path {
		c := childAt(n, idx)
		if c == nil {
			return nil, 0, fmt.Errorf("selection path %v leaves the container at depth %d", b.Path, depth)
		}
		n = c
	}

	switch n.Type {
	case html.TextNode:
		if b.Offset < 0 || b.Offset > unitLen(n.Data) {
			return nil, 0, fmt.Errorf("offset %d outside text node", b.Offset)
		}
		return n, b.Offset, nil

	case html.ElementNode:
		count := childCount(n)
		if b.Offset < 0 || b.Offset > count {
			return nil, 0, fmt.Errorf("offset %d outside element with %d children", b.Offset, count)
		}
		if b.Offset < count {
			for x := childAt(n, b.Offset); x != nil; x = nextInDocument(x, root) {
				if x.Type == html.TextNode {
					return x, 0, nil
				}
			}
		}
		if last := lastTextIn(n); last != nil {
			return last, unitLen(last.Data), nil
		}
		return nil, 0, errNoTextAtBoundary

	default:
		return nil, 0, errNoTextAtBoundary
	}
}

// NodePath returns the child-index path from root to n.
func NodePath(root, n *html.Node) ([]int, bool) {
	var path []int
	for x := n; x != root; x = x.Parent {
		if x == nil || x.Parent == nil {
			return nil, false
		}
		idx := 0
		for s := x.Parent.FirstChild; s != x; s = s.NextSibling {
			idx++
		}
		path = append(path, idx)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

func childAt(n *html.Node, idx int) *html.Node {
	if idx < 0 {
		return nil
	}
	c := n.FirstChild
	for i := 0; c != nil && i < idx; i++ {
		c = c.NextSibling
	}
	return c
}

func childCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

func lastTextIn(n *html.Node) *html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.TextNode {
			return c
		}
		if t := lastTextIn(c); t != nil {
			return t
		}
	}
	return nil
}
