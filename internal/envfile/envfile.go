package envfile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Directive is one managed export line of the environment file.
type Directive struct {
	// Key is the variable name.
	Key string
	// Value is the variable value. An empty value means "unset": the
	// directive is omitted and any prior line for the key is removed.
	Value string
}

var (
	// exportPattern matches an export directive line and captures the key.
	exportPattern = regexp.MustCompile(`^\s*export\s+([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

	// keyPattern validates variable names and key prefixes.
	keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	errInvalidKeyPrefix = errors.New("invalid key prefix")
	errInvalidKey       = errors.New("invalid export key")
	errKeyOutsidePrefix = errors.New("export key outside the managed prefix")
)

// Merge applies the managed directive set to the document: every existing
// export line whose key starts with keyPrefix is removed, then one export
// line per non-empty directive is appended in the given order. Lines that are
// not managed export directives pass through verbatim and in order. When no
// directive carries a value the document is returned untouched, so callers
// can distinguish "nothing to do" from "managed lines cleared".
func Merge(doc, keyPrefix string, directives []Directive) (string, error) {
	if !keyPattern.MatchString(keyPrefix) {
		return "", fmt.Errorf("%q: %w", keyPrefix, errInvalidKeyPrefix)
	}

	emit, err := dedup(keyPrefix, directives)
	if err != nil {
		return "", err
	}

	if len(emit) == 0 {
		return doc, nil
	}

	out := removeManaged(doc, keyPrefix)
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	var b strings.Builder
	b.WriteString(out)

	for _, d := range emit {
		b.WriteString("export ")
		b.WriteString(d.Key)
		b.WriteString("='")
		b.WriteString(strings.ReplaceAll(d.Value, "'", `'\''`))
		b.WriteString("'\n")
	}

	return b.String(), nil
}

// Existing returns the current values of managed directives in the document,
// in first-seen order. A later line for the same key overrides the value, as
// it would when the file is sourced.
func Existing(doc, keyPrefix string) []Directive {
	var (
		found []Directive
		index = make(map[string]int)
	)

	for _, line := range strings.Split(doc, "\n") {
		m := exportPattern.FindStringSubmatch(line)
		if m == nil || !strings.HasPrefix(m[1], keyPrefix) {
			continue
		}

		value := parseValue(m[2])
		if i, ok := index[m[1]]; ok {
			found[i].Value = value
			continue
		}

		index[m[1]] = len(found)
		found = append(found, Directive{Key: m[1], Value: value})
	}

	return found
}

// dedup validates directives against the prefix and collapses repeated keys,
// keeping first-seen order with the last value winning. Entries with an empty
// value are dropped.
func dedup(keyPrefix string, directives []Directive) ([]Directive, error) {
	var (
		merged []Directive
		index  = make(map[string]int, len(directives))
	)

	for _, d := range directives {
		if !keyPattern.MatchString(d.Key) {
			return nil, fmt.Errorf("%q: %w", d.Key, errInvalidKey)
		}

		if !strings.HasPrefix(d.Key, keyPrefix) {
			return nil, fmt.Errorf("%q: %w", d.Key, errKeyOutsidePrefix)
		}

		if i, ok := index[d.Key]; ok {
			merged[i].Value = d.Value
			continue
		}

		index[d.Key] = len(merged)
		merged = append(merged, d)
	}

	emit := make([]Directive, 0, len(merged))

	for _, d := range merged {
		if d.Value != "" {
			emit = append(emit, d)
		}
	}

	return emit, nil
}

// removeManaged drops every export line whose key carries the prefix.
func removeManaged(doc, keyPrefix string) string {
	var b strings.Builder

	rest := doc
	for rest != "" {
		line := rest
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i+1], rest[i+1:]
		} else {
			rest = ""
		}

		m := exportPattern.FindStringSubmatch(strings.TrimSuffix(line, "\n"))
		if m != nil && strings.HasPrefix(m[1], keyPrefix) {
			continue
		}

		b.WriteString(line)
	}

	return b.String()
}

// parseValue recovers the value of an export line: single-quoted values are
// unescaped, double-quoted and bare values are taken literally up to the
// closing quote, whitespace, or a comment.
func parseValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	switch raw[0] {
	case '\'':
		var b strings.Builder

		rest := raw[1:]
		for {
			i := strings.IndexByte(rest, '\'')
			if i < 0 {
				// Unterminated quote, take the remainder as-is.
				b.WriteString(rest)
				break
			}

			b.WriteString(rest[:i])
			rest = rest[i+1:]

			// A '\'' sequence continues the single-quoted literal.
			if strings.HasPrefix(rest, `\''`) {
				b.WriteByte('\'')
				rest = rest[3:]

				continue
			}

			break
		}

		return b.String()
	case '"':
		if i := strings.IndexByte(raw[1:], '"'); i >= 0 {
			return raw[1 : 1+i]
		}

		return raw[1:]
	default:
		if i := strings.IndexAny(raw, " \t#"); i >= 0 {
			return raw[:i]
		}

		return raw
	}
}
