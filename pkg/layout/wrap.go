package layout

import (
	"unicode"

	"github.com/matzehuels/overlay/pkg/markup"
)

// word is a whitespace-delimited token. It may span runs, e.g. "H^{2}O".
type word []markup.Run

// wrap greedily breaks every line at whitespace so that no visual line is wider
// than maxWidth, unless a single word is. Sub-lines keep the parent alignment.
func (e *Engine) wrap(lines []markup.Line, size, maxWidth float64) []markup.Line {
	space := e.Metrics.Advance(" ", size)
	var out []markup.Line
	for _, l := range lines {
		words := splitWords(l.Runs)
		if len(words) == 0 {
			out = append(out, markup.Line{Alignment: l.Alignment})
			continue
		}

		var (
			cur   []word
			width float64
		)
		for _, w := range words {
			ww := e.wordWidth(w, size)
			if len(cur) > 0 && width+space+ww > maxWidth {
				out = append(out, joinWords(l.Alignment, cur))
				cur, width = nil, 0
			}
			if len(cur) > 0 {
				width += space
			}
			cur = append(cur, w)
			width += ww
		}
		out = append(out, joinWords(l.Alignment, cur))
	}
	return out
}

func (e *Engine) wordWidth(w word, size float64) float64 {
	var total float64
	for _, r := range w {
		total += e.Metrics.Advance(r.Text, RunSize(r, size))
	}
	return total
}

// splitWords tokenizes runs on whitespace. Runs that touch without whitespace
// between them belong to the same word.
func splitWords(runs []markup.Run) []word {
	var (
		words []word
		cur   word
	)
	for _, r := range runs {
		start := -1
		for i, c := range r.Text {
			if unicode.IsSpace(c) {
				if start >= 0 {
					cur = append(cur, markup.Run{Text: r.Text[start:i], Superscript: r.Superscript})
					start = -1
				}
				if len(cur) > 0 {
					words = append(words, cur)
					cur = nil
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			cur = append(cur, markup.Run{Text: r.Text[start:], Superscript: r.Superscript})
		}
	}
	if len(cur) > 0 {
		words = append(words, cur)
	}
	return words
}

// joinWords rebuilds a line from words separated by single plain spaces,
// merging neighbouring runs of the same style.
func joinWords(a markup.Alignment, words []word) markup.Line {
	var runs []markup.Run
	add := func(r markup.Run) {
		if n := len(runs); n > 0 && runs[n-1].Superscript == r.Superscript {
			runs[n-1].Text += r.Text
			return
		}
		runs = append(runs, r)
	}
	for i, w := range words {
		if i > 0 {
			add(markup.Run{Text: " "})
		}
		for _, r := range w {
			add(r)
		}
	}
	return markup.Line{Alignment: a, Runs: runs}
}
