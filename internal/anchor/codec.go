package anchor

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"marginalia/internal/config"
	"marginalia/internal/domain"
	"marginalia/internal/domain/models/annotation"
)

// CodecOptions tunes position encoding and re-anchoring.
type CodecOptions struct {
	ContextWindow   int  // Units captured on each side of a selection
	FuzzyRelocation bool // Use context windows when decoded text has drifted
}

// Codec converts ranges to stored positions and back.
// It holds no per-container state and is safe for concurrent use.
type Codec struct {
	logger *slog.Logger
	window int
	fuzzy  bool
}

// NewCodec creates a codec.
func NewCodec(logger *slog.Logger, opts CodecOptions) *Codec {
	window := opts.ContextWindow
	if window <= 0 {
		window = config.DefaultContextWindow
	}
	return &Codec{
		logger: logger,
		window: window,
		fuzzy:  opts.FuzzyRelocation,
	}
}

// Encode computes the container-relative position of r.
// Returns *domain.EncodingError when either boundary is not a text node of root.
func (c *Codec) Encode(root *html.Node, r Range) (annotation.Position, error) {
	if root == nil {
		return annotation.Position{}, &domain.EncodingError{Reason: "no content container"}
	}
	if r.IsZero() {
		return annotation.Position{}, &domain.EncodingError{Reason: "empty range"}
	}

	m := BuildTextMap(root)
	start, ok := m.Offset(r.StartContainer, r.StartOffset)
	if !ok {
		return annotation.Position{}, &domain.EncodingError{Reason: "range start not found in content"}
	}
	end, ok := m.Offset(r.EndContainer, r.EndOffset)
	if !ok {
		return annotation.Position{}, &domain.EncodingError{Reason: "range end not found in content"}
	}
	if end < start {
		return annotation.Position{}, &domain.EncodingError{Reason: "range end precedes start"}
	}

	// Best effort: a mismatch is reported but the offsets are still used.
	if extracted, selected := m.Slice(start, end), r.String(); extracted != selected {
		c.logger.Warn("selection drift while encoding",
			"start_offset", start,
			"end_offset", end,
			"extracted_len", len(extracted),
			"selected_len", len(selected),
		)
	}

	return annotation.Position{
		StartOffset: start,
		EndOffset:   end,
		TextBefore:  m.Slice(start-c.window, start),
		TextAfter:   m.Slice(end, end+c.window),
	}, nil
}

// Decode rebuilds a range from a stored position against the current content.
// Returns *domain.DecodingError when the offsets fall outside the content.
func (c *Codec) Decode(root *html.Node, pos annotation.Position) (Range, error) {
	if root == nil {
		return Range{}, &domain.DecodingError{Reason: "no content container"}
	}
	return decodeWith(BuildTextMap(root), pos)
}

func decodeWith(m *TextMap, pos annotation.Position) (Range, error) {
	if pos.StartOffset < 0 || pos.EndOffset <= pos.StartOffset {
		return Range{}, &domain.DecodingError{Reason: "invalid offsets"}
	}

	var startSpan, endSpan *TextSpan
	for i := range m.Spans {
		s := &m.Spans[i]
		if startSpan == nil && pos.StartOffset >= s.Start && pos.StartOffset < s.End {
			startSpan = s
		}
		if endSpan == nil && pos.EndOffset > s.Start && pos.EndOffset <= s.End {
			endSpan = s
		}
		if startSpan != nil && endSpan != nil {
			break
		}
	}
	if startSpan == nil || endSpan == nil {
		return Range{}, &domain.DecodingError{Reason: "offsets outside content"}
	}

	startOffset := pos.StartOffset - startSpan.Start
	endOffset := pos.EndOffset - endSpan.Start
	if startOffset < 0 || startOffset > startSpan.Len() {
		return Range{}, &domain.DecodingError{Reason: "start offset outside its text node"}
	}
	if endOffset < 0 || endOffset > endSpan.Len() {
		return Range{}, &domain.DecodingError{Reason: "end offset outside its text node"}
	}

	return Range{
		StartContainer: startSpan.Node,
		StartOffset:    startOffset,
		EndContainer:   endSpan.Node,
		EndOffset:      endOffset,
	}, nil
}

// Relocate decodes pos and checks the result against the text the comment was
// made on. When the text has drifted and fuzzy relocation is enabled, the
// occurrence of selectedText whose surroundings best match the stored context
// windows is used instead. Offsets outside the content are never rescued.
func (c *Codec) Relocate(root *html.Node, pos annotation.Position, selectedText string) (Range, error) {
	if root == nil {
		return Range{}, &domain.DecodingError{Reason: "no content container"}
	}

	m := BuildTextMap(root)
	r, err := decodeWith(m, pos)
	if err != nil {
		return Range{}, err
	}

	decoded := r.String()
	if selectedText == "" || sameText(decoded, selectedText) {
		return r, nil
	}

	if !c.fuzzy {
		c.logger.Warn("selection drift while decoding",
			"start_offset", pos.StartOffset,
			"end_offset", pos.EndOffset,
		)
		return r, nil
	}

	start, end, ok := c.bestOccurrence(m, pos, selectedText)
	if !ok {
		c.logger.Warn("selection drift while decoding, no relocation candidate",
			"start_offset", pos.StartOffset,
			"end_offset", pos.EndOffset,
		)
		return r, nil
	}

	relocated, err := decodeWith(m, annotation.Position{StartOffset: start, EndOffset: end})
	if err != nil {
		return r, nil
	}
	c.logger.Debug("highlight relocated",
		"from_offset", pos.StartOffset,
		"to_offset", start,
	)
	return relocated, nil
}

// bestOccurrence scores every occurrence of text by how much of the stored
// context windows surround it; ties go to the occurrence nearest the stored offset.
func (c *Codec) bestOccurrence(m *TextMap, pos annotation.Position, text string) (int, int, bool) {
	length := unitLen(text)
	bestStart, bestScore, bestDist := -1, -1, 0

	searchFrom, unitsSoFar, bytesSoFar := 0, 0, 0
	for {
		idx := strings.Index(m.Text[searchFrom:], text)
		if idx < 0 {
			break
		}
		b := searchFrom + idx
		unitsSoFar += unitLen(m.Text[bytesSoFar:b])
		bytesSoFar = b
		start := unitsSoFar

		score := commonSuffixLen(m.Slice(start-c.window, start), pos.TextBefore) +
			commonPrefixLen(m.Slice(start+length, start+length+c.window), pos.TextAfter)
		dist := abs(start - pos.StartOffset)
		if score > bestScore || (score == bestScore && dist < bestDist) {
			bestStart, bestScore, bestDist = start, score, dist
		}

		searchFrom = b + 1
		if searchFrom >= len(m.Text) {
			break
		}
	}

	if bestStart < 0 {
		return 0, 0, false
	}
	return bestStart, bestStart + length, true
}

// sameText compares two strings ignoring whitespace differences.
func sameText(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
