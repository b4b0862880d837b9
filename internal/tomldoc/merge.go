package tomldoc

import (
	"errors"
	"fmt"
	"strings"
)

// errInvalidSectionName is returned when a caller-supplied section name does
// not match the dotted-name grammar.
var errInvalidSectionName = errors.New("invalid section name")

// MergeSection returns the document with the named section replaced by the
// canonical header plus newBody. Every pre-existing occurrence of the section
// (duplicates included) is removed; all other text is preserved byte-for-byte
// and in order; the canonical section is appended after the last retained
// content, separated by a blank line. Merging the same name and body twice
// produces byte-identical output both times.
func MergeSection(doc, name, newBody string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("section name %q: %w", name, errInvalidSectionName)
	}

	tokens, err := tokenize(doc)
	if err != nil {
		return "", err
	}

	out := removeNamed(tokens, name)
	if out != "" {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}

		// A single blank-line separator before the appended section. Existing
		// trailing blank lines are kept as they are, never trimmed.
		if !strings.HasSuffix(out, "\n\n") {
			out += "\n"
		}
	}

	return out + renderSection(name, newBody), nil
}

// RemoveSections returns the document with every occurrence of the named
// section removed. The document is returned unchanged when the section is
// absent.
func RemoveSections(doc, name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("section name %q: %w", name, errInvalidSectionName)
	}

	tokens, err := tokenize(doc)
	if err != nil {
		return "", err
	}

	return removeNamed(tokens, name), nil
}

// HasSection reports whether the document contains at least one occurrence of
// the named section.
func HasSection(doc, name string) (bool, error) {
	if !validName(name) {
		return false, fmt.Errorf("section name %q: %w", name, errInvalidSectionName)
	}

	tokens, err := tokenize(doc)
	if err != nil {
		return false, err
	}

	for _, tok := range tokens {
		if tok.name == name {
			return true, nil
		}
	}

	return false, nil
}

// removeNamed reassembles the document without the spans of the given name.
func removeNamed(tokens []token, name string) string {
	dropped := make([]bool, len(tokens))

	for _, s := range sections(tokens) {
		if s.name != name {
			continue
		}

		for i := s.start; i < s.end; i++ {
			dropped[i] = true
		}
	}

	var b strings.Builder
	for i, tok := range tokens {
		if !dropped[i] {
			b.WriteString(tok.text)
		}
	}

	return b.String()
}

// renderSection produces the canonical header plus body, ending with exactly
// one trailing newline after the last body line.
func renderSection(name, body string) string {
	section := "[" + name + "]\n"
	if body == "" {
		return section
	}

	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}

	return section + body
}
