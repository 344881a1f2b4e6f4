package highlight

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"marginalia/internal/anchor"
	"marginalia/internal/config"
)

const (
	// AttrHighlightID carries the highlight ID on every marker.
	AttrHighlightID = "data-highlight-id"
	// AttrActive marks the markers of the active highlight.
	AttrActive = "data-highlight-active"

	markerSelector = "mark[" + AttrHighlightID + "]"
)

var errEmptyRange = errors.New("range covers no text")

// Engine wraps ranges of a content container in <mark> markers and manages
// their visual state. It keeps no per-container state.
type Engine struct {
	styles *config.HighlightStyles
	logger *slog.Logger
}

// NewEngine creates a highlight engine
func NewEngine(styles *config.HighlightStyles, logger *slog.Logger) *Engine {
	if styles == nil {
		styles = config.DefaultHighlightStyles()
	}
	return &Engine{
		styles: styles,
		logger: logger,
	}
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewHighlightID mints a highlight token: highlight-<unix ms>-<9 random chars>.
func NewHighlightID() string {
	var b strings.Builder
	limit := big.NewInt(int64(len(idAlphabet)))
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		b.WriteByte(idAlphabet[n.Int64()])
	}
	return fmt.Sprintf("highlight-%d-%s", time.Now().UnixMilli(), b.String())
}

// Markers returns every marker carrying highlightID, in document order.
func (e *Engine) Markers(root *html.Node, highlightID string) []*html.Node {
	return e.find(root).FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr(AttrHighlightID)
		return id == highlightID
	}).Nodes
}

// HighlightIDs returns the distinct highlight IDs present under root.
func (e *Engine) HighlightIDs(root *html.Node) []string {
	seen := make(map[string]bool)
	var ids []string
	e.find(root).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr(AttrHighlightID)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	})
	return ids
}

func (e *Engine) find(root *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(root).Find(markerSelector)
}

// Apply wraps every text node intersecting r in a marker tagged with
// highlightID, splitting boundary text nodes so only the selected part is
// wrapped. A highlight that is already present is returned unchanged.
// r must not be reused afterwards: splitting invalidates its offsets.
func (e *Engine) Apply(root *html.Node, r anchor.Range, highlightID string) ([]*html.Node, error) {
	if existing := e.Markers(root, highlightID); len(existing) > 0 {
		return existing, nil
	}
	if r.IsZero() {
		return nil, errEmptyRange
	}

	// Resolve every node and offset before mutating the tree.
	type piece struct {
		node       *html.Node
		start, end int
	}
	var pieces []piece
	for _, span := range anchor.BuildTextMap(root).Between(r.StartContainer, r.EndContainer) {
		start, end := 0, span.Len()
		if span.Node == r.StartContainer {
			start = r.StartOffset
		}
		if span.Node == r.EndContainer {
			end = r.EndOffset
		}
		if start >= end {
			continue
		}
		if !acceptsPhrasing(span.Node.Parent) && strings.TrimSpace(span.Node.Data) == "" {
			continue
		}
		pieces = append(pieces, piece{node: span.Node, start: start, end: end})
	}
	if len(pieces) == 0 {
		e.logger.Warn("no text nodes found in range", "highlight_id", highlightID)
		return nil, errEmptyRange
	}

	markers := make([]*html.Node, 0, len(pieces))
	for _, p := range pieces {
		selected := p.node
		if p.start > 0 {
			selected = splitText(p.node, p.start)
		}
		if length := p.end - p.start; length < textLen(selected) {
			splitText(selected, length)
		}
		markers = append(markers, e.wrap(selected, highlightID))
	}
	return markers, nil
}

// Remove unwraps every marker carrying highlightID, leaving its content in
// place, and returns how many markers were removed.
func (e *Engine) Remove(root *html.Node, highlightID string) int {
	markers := e.Markers(root, highlightID)
	for _, m := range markers {
		parent := m.Parent
		if parent == nil {
			continue
		}
		for c := m.FirstChild; c != nil; {
			next := c.NextSibling
			m.RemoveChild(c)
			parent.InsertBefore(c, m)
			c = next
		}
		parent.RemoveChild(m)
		mergeTextNodes(parent)
	}
	return len(markers)
}

// SetActive gives highlightID's markers the active style and resets every
// other marker. An empty highlightID deactivates all markers.
func (e *Engine) SetActive(root *html.Node, highlightID string) {
	e.find(root).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr(AttrHighlightID)
		if highlightID != "" && id == highlightID {
			s.SetAttr("style", e.styles.Active)
			s.SetAttr(AttrActive, "true")
			return
		}
		s.SetAttr("style", e.styles.Rest)
		s.RemoveAttr(AttrActive)
	})
}

// SetHover intensifies (or restores) every marker of highlightID. Active
// markers keep their active style when the hover ends.
func (e *Engine) SetHover(root *html.Node, highlightID string, on bool) {
	sel := goquery.NewDocumentFromNode(root).Find(markerSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr(AttrHighlightID)
		return id == highlightID
	})
	sel.Each(func(_ int, s *goquery.Selection) {
		switch {
		case on:
			s.SetAttr("style", e.styles.Hover)
		case s.AttrOr(AttrActive, "") == "true":
			s.SetAttr("style", e.styles.Active)
		default:
			s.SetAttr("style", e.styles.Rest)
		}
	})
}

func (e *Engine) wrap(n *html.Node, highlightID string) *html.Node {
	mark := &html.Node{
		Type:     html.ElementNode,
		Data:     "mark",
		DataAtom: atom.Mark,
		Attr: []html.Attribute{
			{Key: AttrHighlightID, Val: highlightID},
			{Key: "class", Val: e.styles.MarkerClass},
			{Key: "style", Val: e.styles.Rest},
		},
	}
	parent, next := n.Parent, n.NextSibling
	parent.RemoveChild(n)
	mark.AppendChild(n)
	parent.InsertBefore(mark, next)
	return mark
}
