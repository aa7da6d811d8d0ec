package syntax

// Span represents a location range in source code, used to attach
// error messages and debug-info snippets to the byte offsets they
// came from.
type Span struct {
	StartLine   uint16
	StartCol    uint16
	StartOffset uint32
	EndLine     uint16
	EndCol      uint16
	EndOffset   uint32
}

// Len reports the number of source bytes covered by the span.
func (s Span) Len() int {
	if s.EndOffset < s.StartOffset {
		return 0
	}
	return int(s.EndOffset - s.StartOffset)
}

// SingleLine reports whether the span starts and ends on the same line.
func (s Span) SingleLine() bool {
	return s.StartLine == s.EndLine
}
