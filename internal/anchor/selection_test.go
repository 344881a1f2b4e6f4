package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func TestSelectionTracker_Observe(t *testing.T) {
	root := mustParse(t, "<p>The quick brown fox</p><p>   </p>")
	rect := &Rect{X: 10, Y: 20, Width: 80, Height: 16}

	tests := []struct {
		name     string
		event    SelectionEvent
		wantText string
	}{
		{
			name: "text within one node",
			event: SelectionEvent{
				Start: Boundary{Path: []int{0, 0}, Offset: 4},
				End:   Boundary{Path: []int{0, 0}, Offset: 15},
				Rect:  rect,
			},
			wantText: "quick brown",
		},
		{
			name: "selected text is trimmed",
			event: SelectionEvent{
				Start: Boundary{Path: []int{0, 0}, Offset: 3},
				End:   Boundary{Path: []int{0, 0}, Offset: 10},
			},
			wantText: "quick",
		},
		{
			name: "backwards selection is normalized",
			event: SelectionEvent{
				Start: Boundary{Path: []int{0, 0}, Offset: 15},
				End:   Boundary{Path: []int{0, 0}, Offset: 4},
			},
			wantText: "quick brown",
		},
		{
			name: "element boundary resolves to text",
			event: SelectionEvent{
				Start: Boundary{Path: []int{0}, Offset: 0},
				End:   Boundary{Path: []int{0, 0}, Offset: 3},
			},
			wantText: "The",
		},
		{
			name: "whitespace only clears",
			event: SelectionEvent{
				Start: Boundary{Path: []int{1, 0}, Offset: 0},
				End:   Boundary{Path: []int{1, 0}, Offset: 3},
			},
		},
		{
			name: "collapsed clears",
			event: SelectionEvent{
				Start: Boundary{Path: []int{0, 0}, Offset: 4},
				End:   Boundary{Path: []int{0, 0}, Offset: 4},
			},
		},
		{
			name: "outside the container clears",
			event: SelectionEvent{
				Start: Boundary{Path: []int{5, 0}, Offset: 0},
				End:   Boundary{Path: []int{0, 0}, Offset: 4},
			},
		},
		{
			name: "offset past text clears",
			event: SelectionEvent{
				Start: Boundary{Path: []int{0, 0}, Offset: 0},
				End:   Boundary{Path: []int{0, 0}, Offset: 400},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewSelectionTracker(root)
			// Start from a non-empty selection so clearing is observable.
			tracker.Observe(SelectionEvent{
				Start: Boundary{Path: []int{0, 0}, Offset: 0},
				End:   Boundary{Path: []int{0, 0}, Offset: 3},
			})

			snap := tracker.Observe(tt.event)
			assert.Equal(t, tt.wantText, snap.Text)
			if tt.wantText == "" {
				assert.True(t, snap.Empty())
				assert.Nil(t, snap.Rect)
				return
			}
			require.NotNil(t, snap.Range)
			assert.Contains(t, snap.Range.String(), tt.wantText)
		})
	}
}

func TestSelectionTracker_SnapshotIsACopy(t *testing.T) {
	root := mustParse(t, "<p>The quick brown fox</p>")
	tracker := NewSelectionTracker(root)
	tracker.Observe(SelectionEvent{
		Start: Boundary{Path: []int{0, 0}, Offset: 4},
		End:   Boundary{Path: []int{0, 0}, Offset: 9},
		Rect:  &Rect{X: 1},
	})

	snap := tracker.Snapshot()
	snap.Range.StartOffset = 0
	snap.Rect.X = 99

	again := tracker.Snapshot()
	assert.Equal(t, 4, again.Range.StartOffset)
	assert.Equal(t, "quick", again.Text)
}

// wrapWord splits the paragraph's only text node around [from, to) and wraps
// the middle piece in a span, the way markers are applied.
func wrapWord(p *html.Node, from, to int) {
	text := p.FirstChild
	data := text.Data
	p.RemoveChild(text)
	span := &html.Node{Type: html.ElementNode, DataAtom: atom.Span, Data: "span"}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: data[from:to]})
	p.AppendChild(&html.Node{Type: html.TextNode, Data: data[:from]})
	p.AppendChild(span)
	p.AppendChild(&html.Node{Type: html.TextNode, Data: data[to:]})
}

// unwrapAll replaces the paragraph's children with one merged text node.
func unwrapAll(p *html.Node) {
	data := TextContent(p)
	for c := p.FirstChild; c != nil; c = p.FirstChild {
		p.RemoveChild(c)
	}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: data})
}

func TestSelectionTracker_SurvivesTreeMutation(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		start    Boundary
		end      Boundary
		mutate   func(p *html.Node)
		wantText string
	}{
		{
			name:     "marker applied before the selection",
			markup:   "<p>The quick brown fox</p>",
			start:    Boundary{Path: []int{0, 0}, Offset: 10},
			end:      Boundary{Path: []int{0, 0}, Offset: 15},
			mutate:   func(p *html.Node) { wrapWord(p, 0, 3) },
			wantText: "brown",
		},
		{
			name:     "marker applied over the selection",
			markup:   "<p>The quick brown fox</p>",
			start:    Boundary{Path: []int{0, 0}, Offset: 10},
			end:      Boundary{Path: []int{0, 0}, Offset: 15},
			mutate:   func(p *html.Node) { wrapWord(p, 8, 12) },
			wantText: "brown",
		},
		{
			name:     "markers removed and text merged",
			markup:   "<p>The <span>quick</span> brown fox</p>",
			start:    Boundary{Path: []int{0, 2}, Offset: 1},
			end:      Boundary{Path: []int{0, 2}, Offset: 6},
			mutate:   unwrapAll,
			wantText: "brown",
		},
		{
			name:     "text replaced under the selection",
			markup:   "<p>The quick brown fox</p>",
			start:    Boundary{Path: []int{0, 0}, Offset: 10},
			end:      Boundary{Path: []int{0, 0}, Offset: 15},
			mutate:   func(p *html.Node) { p.FirstChild.Data = "The quick green fox" },
			wantText: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := mustParse(t, tt.markup)
			p := root.FirstChild
			tracker := NewSelectionTracker(root)

			require.Equal(t, "brown", tracker.Observe(SelectionEvent{Start: tt.start, End: tt.end}).Text)

			tt.mutate(p)

			snap := tracker.Snapshot()
			assert.Equal(t, tt.wantText, snap.Text)
			if tt.wantText == "" {
				assert.True(t, snap.Empty())
				return
			}
			require.NotNil(t, snap.Range)
			assert.Equal(t, tt.wantText, snap.Range.String())
			assert.Equal(t, 10, snap.Start)
			assert.Equal(t, 15, snap.End)
			for _, n := range []*html.Node{snap.Range.StartContainer, snap.Range.EndContainer} {
				_, ok := NodePath(root, n)
				assert.True(t, ok, "range node must still be attached")
			}
		})
	}
}

func TestSelectionTracker_ClearAndReset(t *testing.T) {
	root := mustParse(t, "<p>The quick brown fox</p>")
	tracker := NewSelectionTracker(root)
	tracker.Observe(SelectionEvent{
		Start: Boundary{Path: []int{0, 0}, Offset: 4},
		End:   Boundary{Path: []int{0, 0}, Offset: 9},
	})
	require.False(t, tracker.Snapshot().Empty())

	tracker.Clear()
	assert.True(t, tracker.Snapshot().Empty())

	tracker.Observe(SelectionEvent{
		Start: Boundary{Path: []int{0, 0}, Offset: 4},
		End:   Boundary{Path: []int{0, 0}, Offset: 9},
	})
	tracker.Reset(mustParse(t, "<p>other</p>"))
	assert.True(t, tracker.Snapshot().Empty())

	unmounted := NewSelectionTracker(nil)
	snap := unmounted.Observe(SelectionEvent{Start: Boundary{Path: []int{0, 0}}, End: Boundary{Path: []int{0, 0}, Offset: 2}})
	assert.True(t, snap.Empty())
}

func TestNodePath(t *testing.T) {
	root := mustParse(t, "<p>a</p><p>b <em>c</em></p>")
	node := textNode(t, root, 2)

	path, ok := NodePath(root, node)
	require.True(t, ok)
	assert.Equal(t, []int{1, 1, 0}, path)

	resolved, offset, err := ResolveBoundary(root, Boundary{Path: path, Offset: 1})
	require.NoError(t, err)
	assert.Same(t, node, resolved)
	assert.Equal(t, 1, offset)

	_, ok = NodePath(root, mustParse(t, "<p>x</p>").FirstChild)
	assert.False(t, ok)
}
