// Package markup parses overlay text with inline alignment and superscript
// directives into structured lines of styled runs.
//
// # Syntax
//
// Two directives are recognized:
//
//   - [left], [center], [right] set the alignment of the line they appear on and
//     of every following line, until another directive changes it.
//   - ^{...} marks a superscript span. Spans do not nest.
//
// Directives are stripped from the rendered text. Malformed markup never fails:
// an unterminated ^{ is kept as literal text and reported as a diagnostic.
//
// # Usage
//
//	lines := markup.Parse("[center]E = mc^{2}\nsecond line")
//	// lines[0] = {Center, [{"E = mc", false}, {"2", true}]}
//	// lines[1] = {Center, [{"second line", false}]}
package markup

// Alignment is the horizontal alignment of a line relative to its anchor X.
type Alignment int

const (
	Left Alignment = iota
	Center
	Right
)

// String returns the directive name of the alignment.
func (a Alignment) String() string {
	switch a {
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "left"
	}
}

// ParseAlignment maps a directive name to an Alignment.
func ParseAlignment(s string) (Alignment, bool) {
	switch s {
	case "left":
		return Left, true
	case "center":
		return Center, true
	case "right":
		return Right, true
	}
	return Left, false
}

// Run is a contiguous span of text rendered with one style.
type Run struct {
	Text        string `json:"text"`
	Superscript bool   `json:"superscript,omitempty"`
}

// Line is one parsed line: its effective alignment and its runs in draw order.
type Line struct {
	Alignment Alignment `json:"alignment"`
	Runs      []Run     `json:"runs"`
}

// Text returns the line's text with styling removed.
func (l Line) Text() string {
	n := 0
	for _, r := range l.Runs {
		n += len(r.Text)
	}
	b := make([]byte, 0, n)
	for _, r := range l.Runs {
		b = append(b, r.Text...)
	}
	return string(b)
}

// Equal reports whether two lines have the same alignment and runs.
func (l Line) Equal(o Line) bool {
	if l.Alignment != o.Alignment || len(l.Runs) != len(o.Runs) {
		return false
	}
	for i := range l.Runs {
		if l.Runs[i] != o.Runs[i] {
			return false
		}
	}
	return true
}
