package tomldoc

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// headerPattern matches a whole section header line after whitespace
	// trimming and captures the dotted section name.
	headerPattern = regexp.MustCompile(`^\[([A-Za-z0-9_-]+(?:\.[A-Za-z0-9_-]+)*)\]$`)

	// namePattern validates caller-supplied section names.
	namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(?:\.[A-Za-z0-9_-]+)*$`)
)

// MalformedHeaderError reports a line that opens and closes like a section
// header but does not parse as one. The document is rejected rather than
// guessed at.
type MalformedHeaderError struct {
	// Line is the 1-based line number in the document.
	Line int
	// Text is the offending line without its trailing newline.
	Text string
}

// Error implements the error interface.
func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed section header at line %d: %q", e.Line, e.Text)
}

// token is one raw line of the document.
// Header tokens carry the section name they open.
type token struct {
	// text is the raw line including its trailing newline, if present.
	text string
	// name is the section name for header tokens, empty otherwise.
	name string
}

// span is a run of tokens forming one section: the header line through the
// line preceding the next header or end of document. The text before the
// first header forms an unnamed root span.
type span struct {
	// name is the section name, empty for the root span.
	name string
	// start is the index of the first token in the span.
	start int
	// end is the index one past the last token in the span.
	end int
}

// tokenize splits the document into line tokens, classifying header lines.
// A trailing '#' comment is stripped before classification, so a commented
// header is still a header. A trimmed line that both opens with '[' and
// closes with ']' must then parse as a header; anything else of that shape
// is malformed. Lines that merely open with '[' (for example continuation
// lines of a multi-line array) are body text.
func tokenize(doc string) ([]token, error) {
	var tokens []token

	rest := doc
	for lineNo := 1; rest != ""; lineNo++ {
		line := rest
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i+1], rest[i+1:]
		} else {
			rest = ""
		}

		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "[") {
			tokens = append(tokens, token{text: line})
			continue
		}

		// A '#' here can only start a comment: section names in this
		// grammar have no quoted form.
		candidate := trimmed
		if i := strings.IndexByte(candidate, '#'); i >= 0 {
			candidate = strings.TrimSpace(candidate[:i])
		}

		if m := headerPattern.FindStringSubmatch(candidate); m != nil {
			tokens = append(tokens, token{text: line, name: m[1]})
			continue
		}

		if strings.HasSuffix(candidate, "]") || strings.HasSuffix(trimmed, "]") {
			return nil, &MalformedHeaderError{Line: lineNo, Text: strings.TrimSuffix(line, "\n")}
		}

		tokens = append(tokens, token{text: line})
	}

	return tokens, nil
}

// sections groups tokens into spans. Names repeat when the document carries
// duplicate sections.
func sections(tokens []token) []span {
	var (
		spans   []span
		current = span{start: 0}
		open    bool
	)

	for i, tok := range tokens {
		if tok.name == "" {
			continue
		}

		if open || i > 0 {
			current.end = i
			spans = append(spans, current)
		}

		current = span{name: tok.name, start: i}
		open = true
	}

	if open || len(tokens) > 0 {
		current.end = len(tokens)
		spans = append(spans, current)
	}

	return spans
}

// validName reports whether the caller-supplied section name is well-formed.
func validName(name string) bool {
	return namePattern.MatchString(name)
}
