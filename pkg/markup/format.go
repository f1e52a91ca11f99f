package markup

import "strings"

// Format serializes lines back to markup. An alignment directive is emitted
// only where the alignment changes, mirroring the sticky semantics of Parse,
// so Parse(Format(lines)) reproduces lines.
func Format(lines []Line) string {
	var b strings.Builder
	prev := Left
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if l.Alignment != prev {
			b.WriteByte('[')
			b.WriteString(l.Alignment.String())
			b.WriteByte(']')
			prev = l.Alignment
		}
		for _, r := range l.Runs {
			if r.Superscript {
				b.WriteString(supOpen)
				b.WriteString(r.Text)
				b.WriteByte(supClose)
				continue
			}
			b.WriteString(r.Text)
		}
	}
	return b.String()
}

// PlainText returns text with every directive removed, one line per input line.
func PlainText(text string) string {
	lines := Parse(text)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return strings.Join(out, "\n")
}
