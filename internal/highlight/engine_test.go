package highlight

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"marginalia/internal/anchor"
	"marginalia/internal/config"
)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultHighlightStyles(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustParse(t *testing.T, content string) *html.Node {
	t.Helper()
	root, err := anchor.ParseContainer(content)
	require.NoError(t, err)
	return root
}

func mustRender(t *testing.T, root *html.Node) string {
	t.Helper()
	out, err := anchor.RenderContainer(root)
	require.NoError(t, err)
	return out
}

func decode(t *testing.T, root *html.Node, start, end int) anchor.Range {
	t.Helper()
	codec := anchor.NewCodec(slog.New(slog.NewTextHandler(io.Discard, nil)), anchor.CodecOptions{})
	r, err := codec.Decode(root, positionOf(start, end))
	require.NoError(t, err)
	return r
}

func markerText(markers []*html.Node) string {
	var b strings.Builder
	for _, m := range markers {
		b.WriteString(anchor.TextContent(m))
	}
	return b.String()
}

func TestApply_SingleTextNode(t *testing.T) {
	engine := newTestEngine()
	root := mustParse(t, "<p>The quick brown fox</p>")

	markers, err := engine.Apply(root, decode(t, root, 4, 15), "h1")
	require.NoError(t, err)
	require.Len(t, markers, 1)

	assert.Equal(t, "quick brown", markerText(markers))
	assert.Equal(t, "The quick brown fox", anchor.TextContent(root))

	out := mustRender(t, root)
	assert.True(t, strings.HasPrefix(out, `<p>The <mark data-highlight-id="h1" class="comment-highlight" style="`), out)
	assert.True(t, strings.HasSuffix(out, `">quick brown</mark> fox</p>`), out)
}

func TestApply_SpansInlineBoundaries(t *testing.T) {
	engine := newTestEngine()
	root := mustParse(t, "<p>The <b>quick</b> brown <i>fox</i> jumps</p>")

	// "quick brown fox" crosses two inline elements.
	r := decode(t, root, 4, 19)
	selected := r.String()
	require.Equal(t, "quick brown fox", selected)

	markers, err := engine.Apply(root, r, "h1")
	require.NoError(t, err)
	assert.Len(t, markers, 3)
	assert.Equal(t, selected, markerText(markers))
	assert.Equal(t, "The quick brown fox jumps", anchor.TextContent(root))

	// Every marker sits inside the element it came from.
	assert.Equal(t, "b", markers[0].Parent.Data)
	assert.Equal(t, "p", markers[1].Parent.Data)
	assert.Equal(t, "i", markers[2].Parent.Data)
}

func TestApply_IsIdempotent(t *testing.T) {
	engine := newTestEngine()
	root := mustParse(t, "<p>The <b>quick</b> brown fox</p>")

	first, err := engine.Apply(root, decode(t, root, 4, 15), "h1")
	require.NoError(t, err)
	once := mustRender(t, root)

	// A second pass re-decodes against the mutated tree, as a restore would.
	second, err := engine.Apply(root, decode(t, root, 4, 15), "h1")
	require.NoError(t, err)

	assert.Equal(t, once, mustRender(t, root))
	assert.Equal(t, first, second)
	assert.Len(t, engine.Markers(root, "h1"), len(first))
}

func TestRemove_IsLossless(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		start, end int
	}{
		{name: "inside one node", content: "<p>The quick brown fox</p>", start: 4, end: 15},
		{name: "whole node", content: "<p>The <b>quick</b> fox</p>", start: 4, end: 9},
		{name: "across blocks", content: "<p>first para</p><p>second para</p>", start: 6, end: 16},
		{name: "container edges", content: "<p>edge to edge</p>", start: 0, end: 12},
		{name: "multibyte text", content: "<p>naïve café 😀 ok</p>", start: 2, end: 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine()
			root := mustParse(t, tt.content)
			before := mustRender(t, root)
			text := anchor.TextContent(root)

			markers, err := engine.Apply(root, decode(t, root, tt.start, tt.end), "h1")
			require.NoError(t, err)
			require.NotEmpty(t, markers)

			removed := engine.Remove(root, "h1")
			assert.Equal(t, len(markers), removed)
			assert.Equal(t, text, anchor.TextContent(root))
			assert.Equal(t, before, mustRender(t, root))
			assert.Empty(t, engine.Markers(root, "h1"))
		})
	}
}

func TestRemove_AllMarkersOfOneHighlight(t *testing.T) {
	engine := newTestEngine()
	root := mustParse(t, "<p>one <b>two</b> three <i>four</i> five</p>")
	text := anchor.TextContent(root)

	// "two three four" becomes three markers; "five" is a second highlight.
	markers, err := engine.Apply(root, decode(t, root, 4, 18), "h1")
	require.NoError(t, err)
	require.Len(t, markers, 3)
	_, err = engine.Apply(root, decode(t, root, 19, 23), "h2")
	require.NoError(t, err)

	assert.Equal(t, 3, engine.Remove(root, "h1"))
	assert.Equal(t, text, anchor.TextContent(root))
	assert.Len(t, engine.Markers(root, "h2"), 1)
	assert.Equal(t, []string{"h2"}, engine.HighlightIDs(root))
}

func TestApply_SkipsWhitespaceBetweenTableCells(t *testing.T) {
	engine := newTestEngine()
	root := mustParse(t, "<table><tbody><tr><td>alpha</td> <td>beta</td></tr></tbody></table>")

	m := anchor.BuildTextMap(root)
	require.Equal(t, "alpha beta", m.Text)

	markers, err := engine.Apply(root, decode(t, root, 0, 10), "h1")
	require.NoError(t, err)
	require.Len(t, markers, 2)
	for _, mark := range markers {
		assert.Equal(t, "td", mark.Parent.Data)
	}
}

func TestSetActive(t *testing.T) {
	engine := newTestEngine()
	styles := config.DefaultHighlightStyles()
	root := mustParse(t, "<p>alpha beta gamma</p>")

	_, err := engine.Apply(root, decode(t, root, 0, 5), "h1")
	require.NoError(t, err)
	_, err = engine.Apply(root, decode(t, root, 11, 16), "h2")
	require.NoError(t, err)

	styleOf := func(id string) string {
		return attr(engine.Markers(root, id)[0], "style")
	}

	engine.SetActive(root, "h1")
	assert.Equal(t, styles.Active, styleOf("h1"))
	assert.Equal(t, styles.Rest, styleOf("h2"))

	engine.SetActive(root, "h2")
	assert.Equal(t, styles.Rest, styleOf("h1"))
	assert.Equal(t, styles.Active, styleOf("h2"))
	assert.Equal(t, "", attr(engine.Markers(root, "h1")[0], AttrActive))

	engine.SetActive(root, "")
	assert.Equal(t, styles.Rest, styleOf("h2"))
}

func TestSetHover(t *testing.T) {
	engine := newTestEngine()
	styles := config.DefaultHighlightStyles()
	root := mustParse(t, "<p>one <b>two</b> three</p>")

	markers, err := engine.Apply(root, decode(t, root, 0, 13), "h1")
	require.NoError(t, err)
	require.Len(t, markers, 3)

	engine.SetHover(root, "h1", true)
	for _, m := range markers {
		assert.Equal(t, styles.Hover, attr(m, "style"))
	}

	engine.SetHover(root, "h1", false)
	for _, m := range markers {
		assert.Equal(t, styles.Rest, attr(m, "style"))
	}

	engine.SetActive(root, "h1")
	engine.SetHover(root, "h1", true)
	engine.SetHover(root, "h1", false)
	for _, m := range markers {
		assert.Equal(t, styles.Active, attr(m, "style"))
	}
}

func TestNewHighlightID(t *testing.T) {
	pattern := regexp.MustCompile(`^highlight-\d+-[0-9a-z]{9}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewHighlightID()
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
