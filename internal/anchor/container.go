package anchor

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseContainer parses a chapter HTML fragment into a detached <div> that
// acts as the content container.
func ParseContainer(content string) (*html.Node, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(content), root)
	if err != nil {
		return nil, fmt.Errorf("parse chapter content: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// RenderContainer serializes the container's children.
func RenderContainer(root *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render chapter content: %w", err)
		}
	}
	return buf.String(), nil
}

// TextContent returns the container's text with all markup removed.
func TextContent(root *html.Node) string {
	return BuildTextMap(root).Text
}
