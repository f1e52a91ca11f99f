package markup

import (
	"fmt"
	"strings"

	"github.com/matzehuels/overlay/pkg/errors"
)

const (
	supOpen  = "^{"
	supClose = '}'
)

// directives lists the recognized alignment tags in match order.
var directives = [...]struct {
	tag   string
	align Alignment
}{
	{"[left]", Left},
	{"[center]", Center},
	{"[right]", Right},
}

// Parser holds the sticky alignment carried from one line to the next.
// The zero value starts left-aligned. A Parser is not safe for concurrent use;
// each overlay gets its own.
type Parser struct {
	Alignment Alignment
	issues    []error
}

// Parse splits text on newlines and parses every line with a fresh Parser.
func Parse(text string) []Line {
	lines, _ := ParseWithDiagnostics(text)
	return lines
}

// ParseWithDiagnostics is Parse, additionally returning MARKUP diagnostics for
// input that was rendered literally. Diagnostics are informational; the
// returned lines are always usable.
func ParseWithDiagnostics(text string) ([]Line, []error) {
	var p Parser
	raw := strings.Split(text, "\n")
	lines := make([]Line, 0, len(raw))
	for i, s := range raw {
		lines = append(lines, p.parseLine(i, strings.TrimSuffix(s, "\r")))
	}
	return lines, p.Diagnostics()
}

// ParseLine parses one line (which must not contain '\n'), updating the
// Parser's alignment if the line carries a directive.
func (p *Parser) ParseLine(s string) Line {
	return p.parseLine(-1, s)
}

// Diagnostics returns the issues collected so far.
func (p *Parser) Diagnostics() []error {
	return p.issues
}

func (p *Parser) parseLine(index int, s string) Line {
	stripped := p.stripDirectives(s)
	return Line{Alignment: p.Alignment, Runs: p.scanRuns(index, stripped)}
}

// stripDirectives removes every alignment tag from s, repeating until none
// is left so that removing one tag cannot splice another together. The last
// tag removed wins.
func (p *Parser) stripDirectives(s string) string {
	for {
		out, changed := p.stripOnce(s)
		if !changed {
			return out
		}
		s = out
	}
}

func (p *Parser) stripOnce(s string) (string, bool) {
	if strings.IndexByte(s, '[') < 0 {
		return s, false
	}
	changed := false
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '[' {
			if tag, align, ok := matchDirective(s[i:]); ok {
				p.Alignment = align
				i += len(tag)
				changed = true
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String(), changed
}

func matchDirective(s string) (string, Alignment, bool) {
	for _, d := range directives {
		if strings.HasPrefix(s, d.tag) {
			return d.tag, d.align, true
		}
	}
	return "", Left, false
}

// scanRuns splits s into plain and superscript runs.
func (p *Parser) scanRuns(index int, s string) []Run {
	var (
		runs  []Run
		plain strings.Builder
	)
	flush := func() {
		if plain.Len() > 0 {
			runs = append(runs, Run{Text: plain.String()})
			plain.Reset()
		}
	}

	i := 0
	for i < len(s) {
		if s[i] == '^' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+len(supOpen):], supClose)
			if end < 0 {
				p.issues = append(p.issues, errors.New(errors.ErrCodeMarkup,
					"unterminated superscript at %s, rendered literally", position(index, i)))
				plain.WriteString(s[i:])
				break
			}
			flush()
			inner := s[i+len(supOpen) : i+len(supOpen)+end]
			runs = append(runs, Run{Text: inner, Superscript: true})
			i += len(supOpen) + end + 1
			continue
		}
		plain.WriteByte(s[i])
		i++
	}
	flush()
	return runs
}

func position(line, col int) string {
	if line < 0 {
		return fmt.Sprintf("column %d", col+1)
	}
	return fmt.Sprintf("line %d column %d", line+1, col+1)
}
