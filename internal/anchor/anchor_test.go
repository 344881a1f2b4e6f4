package anchor

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"marginalia/internal/domain"
	"marginalia/internal/domain/models/annotation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustParse(t *testing.T, content string) *html.Node {
	t.Helper()
	root, err := ParseContainer(content)
	require.NoError(t, err)
	return root
}

// textNode returns the i-th text node of root in document order.
func textNode(t *testing.T, root *html.Node, i int) *html.Node {
	t.Helper()
	spans := BuildTextMap(root).Spans
	require.Less(t, i, len(spans))
	return spans[i].Node
}

func TestEncodeDecode_QuickBrownFox(t *testing.T) {
	root := mustParse(t, "<p>The quick brown fox</p>")
	codec := NewCodec(testLogger(), CodecOptions{})
	node := textNode(t, root, 0)

	r := Range{StartContainer: node, StartOffset: 4, EndContainer: node, EndOffset: 15}
	require.Equal(t, "quick brown", r.String())

	pos, err := codec.Encode(root, r)
	require.NoError(t, err)
	assert.Equal(t, annotation.Position{
		StartOffset: 4,
		EndOffset:   15,
		TextBefore:  "The ",
		TextAfter:   " fox",
	}, pos)

	decoded, err := codec.Decode(root, pos)
	require.NoError(t, err)
	assert.Equal(t, "quick brown", decoded.String())
}

func TestEncode_SpansBlocksAndInlineFormatting(t *testing.T) {
	root := mustParse(t, "<p>The <b>quick</b> brown</p><p>fox jumps</p>")
	codec := NewCodec(testLogger(), CodecOptions{})

	r := Range{
		StartContainer: textNode(t, root, 1), // "quick"
		StartOffset:    0,
		EndContainer:   textNode(t, root, 3), // "fox jumps"
		EndOffset:      3,
	}

	pos, err := codec.Encode(root, r)
	require.NoError(t, err)
	assert.Equal(t, 4, pos.StartOffset)
	assert.Equal(t, 18, pos.EndOffset)
	assert.Equal(t, "The ", pos.TextBefore)
	assert.Equal(t, " jumps", pos.TextAfter)

	decoded, err := codec.Decode(root, pos)
	require.NoError(t, err)
	assert.Equal(t, r.String(), decoded.String())
	assert.Equal(t, "quick brownfox", decoded.String())
}

func TestEncode_ContextWindowsAreTruncated(t *testing.T) {
	body := strings.Repeat("a", 150) + "TARGET" + strings.Repeat("b", 150)
	root := mustParse(t, "<p>"+body+"</p>")
	codec := NewCodec(testLogger(), CodecOptions{})
	node := textNode(t, root, 0)

	pos, err := codec.Encode(root, Range{StartContainer: node, StartOffset: 150, EndContainer: node, EndOffset: 156})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 100), pos.TextBefore)
	assert.Equal(t, strings.Repeat("b", 100), pos.TextAfter)

	// Touching the container edges yields shorter windows.
	pos, err = codec.Encode(root, Range{StartContainer: node, StartOffset: 0, EndContainer: node, EndOffset: 3})
	require.NoError(t, err)
	assert.Equal(t, "", pos.TextBefore)
	assert.Len(t, pos.TextAfter, 100)
}

func TestEncode_BoundaryOutsideContainer(t *testing.T) {
	root := mustParse(t, "<p>inside</p>")
	other := mustParse(t, "<p>elsewhere</p>")
	codec := NewCodec(testLogger(), CodecOptions{})

	foreign := textNode(t, other, 0)
	_, err := codec.Encode(root, Range{StartContainer: foreign, StartOffset: 0, EndContainer: foreign, EndOffset: 4})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEncoding))
	var encErr *domain.EncodingError
	assert.True(t, errors.As(err, &encErr))
}

func TestDecode_Failures(t *testing.T) {
	root := mustParse(t, "<p>short text</p>")
	codec := NewCodec(testLogger(), CodecOptions{})

	tests := []struct {
		name string
		pos  annotation.Position
	}{
		{name: "start beyond content", pos: annotation.Position{StartOffset: 50, EndOffset: 55}},
		{name: "end beyond content", pos: annotation.Position{StartOffset: 2, EndOffset: 99}},
		{name: "negative start", pos: annotation.Position{StartOffset: -1, EndOffset: 3}},
		{name: "empty span", pos: annotation.Position{StartOffset: 3, EndOffset: 3}},
		{name: "reversed", pos: annotation.Position{StartOffset: 5, EndOffset: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(root, tt.pos)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrDecoding))
		})
	}
}

func TestDecode_NodeBoundaries(t *testing.T) {
	// "ab" | "cd": offset 2 starts in the second node, ends in the first.
	root := mustParse(t, "<p>ab<i>cd</i></p>")
	codec := NewCodec(testLogger(), CodecOptions{})

	r, err := codec.Decode(root, annotation.Position{StartOffset: 2, EndOffset: 4})
	require.NoError(t, err)
	assert.Equal(t, textNode(t, root, 1), r.StartContainer)
	assert.Equal(t, 0, r.StartOffset)
	assert.Equal(t, "cd", r.String())

	r, err = codec.Decode(root, annotation.Position{StartOffset: 0, EndOffset: 2})
	require.NoError(t, err)
	assert.Equal(t, textNode(t, root, 0), r.EndContainer)
	assert.Equal(t, 2, r.EndOffset)
	assert.Equal(t, "ab", r.String())
}

func TestRoundTrip_EveryRange(t *testing.T) {
	root := mustParse(t, "<h2>Cells</h2><p>A <em>cell</em> is the <strong>basic unit</strong> of life.</p><ul><li>nucleus</li><li>membrane</li></ul>")
	codec := NewCodec(testLogger(), CodecOptions{})
	m := BuildTextMap(root)

	for start := 0; start < m.Len(); start++ {
		for end := start + 1; end <= m.Len(); end++ {
			pos := annotation.Position{StartOffset: start, EndOffset: end}
			r, err := codec.Decode(root, pos)
			require.NoError(t, err, "decode %d-%d", start, end)
			require.Equal(t, m.Slice(start, end), r.String(), "decode %d-%d", start, end)

			encoded, err := codec.Encode(root, r)
			require.NoError(t, err)
			require.Equal(t, start, encoded.StartOffset)
			require.Equal(t, end, encoded.EndOffset)
		}
	}
}

func TestEncodeDecode_UTF16Offsets(t *testing.T) {
	root := mustParse(t, "<p>😀 smile</p>")
	codec := NewCodec(testLogger(), CodecOptions{})
	node := textNode(t, root, 0)

	// The emoji is a surrogate pair: two units.
	r := Range{StartContainer: node, StartOffset: 3, EndContainer: node, EndOffset: 8}
	require.Equal(t, "smile", r.String())

	pos, err := codec.Encode(root, r)
	require.NoError(t, err)
	assert.Equal(t, 3, pos.StartOffset)
	assert.Equal(t, 8, pos.EndOffset)
	assert.Equal(t, "😀 ", pos.TextBefore)

	decoded, err := codec.Decode(root, pos)
	require.NoError(t, err)
	assert.Equal(t, "smile", decoded.String())
}

func TestRelocate(t *testing.T) {
	original := mustParse(t, "<p>alpha beta gamma</p>")
	fuzzy := NewCodec(testLogger(), CodecOptions{FuzzyRelocation: true})
	strict := NewCodec(testLogger(), CodecOptions{})

	node := textNode(t, original, 0)
	pos, err := fuzzy.Encode(original, Range{StartContainer: node, StartOffset: 6, EndContainer: node, EndOffset: 10})
	require.NoError(t, err)

	t.Run("unchanged content decodes structurally", func(t *testing.T) {
		r, err := fuzzy.Relocate(original, pos, "beta")
		require.NoError(t, err)
		assert.Equal(t, "beta", r.String())
	})

	shifted := mustParse(t, "<p>xx alpha beta gamma</p>")

	t.Run("drifted content is relocated by context", func(t *testing.T) {
		r, err := fuzzy.Relocate(shifted, pos, "beta")
		require.NoError(t, err)
		assert.Equal(t, "beta", r.String())
		assert.Equal(t, 9, r.StartOffset)
	})

	t.Run("relocation disabled keeps structural range", func(t *testing.T) {
		r, err := strict.Relocate(shifted, pos, "beta")
		require.NoError(t, err)
		assert.Equal(t, "ha b", r.String())
	})

	t.Run("out of bounds is never rescued", func(t *testing.T) {
		bad := pos
		bad.StartOffset, bad.EndOffset = 500, 504
		_, err := fuzzy.Relocate(shifted, bad, "beta")
		assert.True(t, errors.Is(err, domain.ErrDecoding))
	})

	t.Run("whitespace differences are not drift", func(t *testing.T) {
		r, err := fuzzy.Relocate(original, annotation.Position{StartOffset: 5, EndOffset: 11}, "beta")
		require.NoError(t, err)
		assert.Equal(t, " beta ", r.String())
	})
}

func TestRelocate_PicksOccurrenceMatchingContext(t *testing.T) {
	original := mustParse(t, "<p>the cat sat. the cat ran.</p>")
	codec := NewCodec(testLogger(), CodecOptions{FuzzyRelocation: true})
	node := textNode(t, original, 0)

	pos, err := codec.Encode(original, Range{StartContainer: node, StartOffset: 17, EndContainer: node, EndOffset: 20})
	require.NoError(t, err)

	edited := mustParse(t, "<p>a the cat sat. the cat ran.</p>")
	r, err := codec.Relocate(edited, pos, "cat")
	require.NoError(t, err)
	assert.Equal(t, "cat", r.String())
	assert.Equal(t, 19, r.StartOffset)
}

func TestRenderContainer_RoundTrip(t *testing.T) {
	content := `<p>The <b>quick</b> brown fox</p>`
	root := mustParse(t, content)

	out, err := RenderContainer(root)
	require.NoError(t, err)
	assert.Equal(t, content, out)
	assert.Equal(t, "The quick brown fox", TextContent(root))
}
