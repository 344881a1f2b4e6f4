package anchor

import (
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
)

// Offsets throughout this package count UTF-16 code units, the unit browser
// Range and Selection APIs use, so positions computed by a browser client and
// by the server agree.

// unitLen returns the length of s in UTF-16 code units.
func unitLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// byteOffset converts a UTF-16 offset into a byte index of s, clamped to [0, len(s)].
func byteOffset(s string, units int) int {
	if units <= 0 {
		return 0
	}
	acc := 0
	for i, r := range s {
		if acc >= units {
			return i
		}
		acc += utf16.RuneLen(r)
	}
	return len(s)
}

// sliceUnits returns s[from:to] with from and to in UTF-16 units.
func sliceUnits(s string, from, to int) string {
	if to <= from {
		return ""
	}
	return s[byteOffset(s, from):byteOffset(s, to)]
}

// TextSpan places one text node inside the concatenated container text.
type TextSpan struct {
	Node  *html.Node
	Start int // Inclusive
	End   int // Exclusive
}

// Len returns the node's length in UTF-16 units.
func (s TextSpan) Len() int { return s.End - s.Start }

// TextMap is the concatenation of every text node under a container, in
// document order, together with where each node sits inside it.
type TextMap struct {
	Text  string
	Spans []TextSpan
	total int
}

// BuildTextMap walks root depth-first and records every text node.
func BuildTextMap(root *html.Node) *TextMap {
	m := &TextMap{}
	if root == nil {
		return m
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				l := unitLen(c.Data)
				m.Spans = append(m.Spans, TextSpan{Node: c, Start: m.total, End: m.total + l})
				m.total += l
				b.WriteString(c.Data)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	m.Text = b.String()
	return m
}

// Len returns the total text length in UTF-16 units.
func (m *TextMap) Len() int { return m.total }

// Slice returns the text between two offsets, clamped to the map bounds.
func (m *TextMap) Slice(from, to int) string {
	from = max(from, 0)
	to = min(to, m.total)
	return sliceUnits(m.Text, from, to)
}

// Span returns the span recorded for a text node.
func (m *TextMap) Span(n *html.Node) (TextSpan, bool) {
	for _, s := range m.Spans {
		if s.Node == n {
			return s, true
		}
	}
	return TextSpan{}, false
}

// Offset converts a (text node, offset) boundary into a container offset.
func (m *TextMap) Offset(n *html.Node, offset int) (int, bool) {
	s, ok := m.Span(n)
	if !ok || offset < 0 || offset > s.Len() {
		return 0, false
	}
	return s.Start + offset, true
}

// indexOf returns the position of a text node in Spans, or -1.
func (m *TextMap) indexOf(n *html.Node) int {
	for i, s := range m.Spans {
		if s.Node == n {
			return i
		}
	}
	return -1
}

// Between returns the spans from the one holding start through the one holding end.
func (m *TextMap) Between(start, end *html.Node) []TextSpan {
	si, ei := m.indexOf(start), m.indexOf(end)
	if si < 0 || ei < si {
		return nil
	}
	return m.Spans[si : ei+1]
}

// unitsAt converts a byte index of Text into a UTF-16 offset.
func (m *TextMap) unitsAt(b int) int {
	return unitLen(m.Text[:b])
}
