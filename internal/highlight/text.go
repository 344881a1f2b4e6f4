package highlight

import (
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// textLen returns a text node's length in UTF-16 units.
func textLen(n *html.Node) int {
	l := 0
	for _, r := range n.Data {
		l += utf16.RuneLen(r)
	}
	return l
}

// splitText splits n at a UTF-16 offset, keeping the head in n and returning
// the tail, which is inserted as n's next sibling.
func splitText(n *html.Node, offset int) *html.Node {
	b, acc := len(n.Data), 0
	for i, r := range n.Data {
		if acc >= offset {
			b = i
			break
		}
		acc += utf16.RuneLen(r)
	}

	tail := &html.Node{Type: html.TextNode, Data: n.Data[b:]}
	n.Data = n.Data[:b]
	n.Parent.InsertBefore(tail, n.NextSibling)
	return tail
}

// mergeTextNodes joins adjacent text children of n, matching the tree an
// HTML parser builds from the rendered output.
func mergeTextNodes(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode && next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			n.RemoveChild(next)
			continue
		}
		if c.Type == html.TextNode && c.Data == "" {
			n.RemoveChild(c)
		}
		c = next
	}
}

// acceptsPhrasing reports whether inline markup may appear inside n.
// A marker inside a table row or list wrapper would be moved by the parser.
func acceptsPhrasing(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return true
	}
	switch n.DataAtom {
	case atom.Table, atom.Thead, atom.Tbody, atom.Tfoot, atom.Tr, atom.Colgroup,
		atom.Ul, atom.Ol, atom.Dl, atom.Select, atom.Optgroup, atom.Head, atom.Html:
		return false
	}
	return true
}
