package tomldoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMergeSection_EmptyDocument yields just the appended section.
func TestMergeSection_EmptyDocument(t *testing.T) {
	t.Parallel()

	out, err := MergeSection("", "mcp_servers.chrome", "command = \"npx\"\n")
	require.NoError(t, err)
	require.Equal(t, "[mcp_servers.chrome]\ncommand = \"npx\"\n", out)
}

// TestMergeSection_Idempotence merges twice and requires byte-identical output.
func TestMergeSection_Idempotence(t *testing.T) {
	t.Parallel()

	doc := "# raven configuration\nmodel = \"raven-large\"\n\n[profiles.fast]\nmodel = \"raven-mini\"\n"
	body := "command = \"npx\"\nargs = [\"chrome-devtools-mcp@latest\", \"--stdio\"]\n"

	once, err := MergeSection(doc, "mcp_servers.chrome", body)
	require.NoError(t, err)

	twice, err := MergeSection(once, "mcp_servers.chrome", body)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

// TestMergeSection_Isolation keeps foreign sections byte-identical and ordered.
func TestMergeSection_Isolation(t *testing.T) {
	t.Parallel()

	doc := "[alpha]\na = 1   # spacing kept\n\n[beta]\nb = 2\n\n[gamma]\nc = 3\n"

	out, err := MergeSection(doc, "beta", "b = 20\n")
	require.NoError(t, err)

	require.Contains(t, out, "[alpha]\na = 1   # spacing kept\n")
	require.Contains(t, out, "[gamma]\nc = 3\n")
	require.Less(t, strings.Index(out, "[alpha]"), strings.Index(out, "[gamma]"))
	require.Less(t, strings.Index(out, "[gamma]"), strings.Index(out, "[beta]"))
	require.Equal(t, 1, strings.Count(out, "[beta]"))
	require.Contains(t, out, "[beta]\nb = 20\n")
}

// TestMergeSection_DuplicateCollapse removes every duplicate and appends one canonical section.
func TestMergeSection_DuplicateCollapse(t *testing.T) {
	t.Parallel()

	doc := "[chrome]\nold = 1\n\n[keep]\nk = true\n\n[chrome]\nolder = 2\n"

	out, err := MergeSection(doc, "chrome", "fresh = true\n")
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(out, "[chrome]"))
	require.NotContains(t, out, "old = 1")
	require.NotContains(t, out, "older = 2")
	require.Contains(t, out, "[keep]\nk = true\n")
	require.True(t, strings.HasSuffix(out, "[chrome]\nfresh = true\n"))
}

// TestMergeSection_SeparatorAndNewline covers the blank-line separator and
// trailing-newline normalization.
func TestMergeSection_SeparatorAndNewline(t *testing.T) {
	t.Parallel()

	// Final line without trailing newline is normalized.
	out, err := MergeSection("top = true", "s", "v = 1\n")
	require.NoError(t, err)
	require.Equal(t, "top = true\n\n[s]\nv = 1\n", out)

	// An existing blank run is kept, not trimmed, and no extra blank is added.
	out, err = MergeSection("top = true\n\n\n", "s", "v = 1\n")
	require.NoError(t, err)
	require.Equal(t, "top = true\n\n\n[s]\nv = 1\n", out)

	// Body without trailing newline gets exactly one.
	out, err = MergeSection("", "s", "v = 1")
	require.NoError(t, err)
	require.Equal(t, "[s]\nv = 1\n", out)
}

// TestMergeSection_SubtablesAreForeign leaves [name.sub] alone when merging [name].
func TestMergeSection_SubtablesAreForeign(t *testing.T) {
	t.Parallel()

	doc := "[mcp_servers.chrome]\ncommand = \"old\"\n\n[mcp_servers.chrome.env]\nKEY = \"kept\"\n"

	out, err := MergeSection(doc, "mcp_servers.chrome", "command = \"new\"\n")
	require.NoError(t, err)

	require.Contains(t, out, "[mcp_servers.chrome.env]\nKEY = \"kept\"\n")
	require.NotContains(t, out, "command = \"old\"")
	require.Equal(t, 1, strings.Count(out, "[mcp_servers.chrome]\n"))
}

// TestMergeSection_HeaderTrailingComment treats a commented header line as
// that header: the managed section is replaced, never duplicated, and the
// comment on a foreign header survives untouched.
func TestMergeSection_HeaderTrailingComment(t *testing.T) {
	t.Parallel()

	doc := "[mcp_servers.chrome] # managed\ncommand = \"old\"\n\n[editor]   # user note\ntheme = \"dark\"\n"

	out, err := MergeSection(doc, "mcp_servers.chrome", "command = \"new\"\n")
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(out, "[mcp_servers.chrome]"))
	require.NotContains(t, out, "command = \"old\"")
	require.Contains(t, out, "[editor]   # user note\ntheme = \"dark\"\n")
	require.True(t, strings.HasSuffix(out, "[mcp_servers.chrome]\ncommand = \"new\"\n"))
}

// TestMergeSection_MalformedHeader rejects header-shaped lines that do not parse.
func TestMergeSection_MalformedHeader(t *testing.T) {
	t.Parallel()

	doc := "[fine]\nx = 1\n[[broken]]\n"

	_, err := MergeSection(doc, "fine", "x = 2\n")
	require.Error(t, err)

	var malformed *MalformedHeaderError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, 3, malformed.Line)
	require.Equal(t, "[[broken]]", malformed.Text)

	// A trailing comment does not rescue a malformed header.
	for _, line := range []string{"[[broken]] # note\n", "[bad name] # note\n"} {
		_, err = MergeSection("[fine]\nx = 1\n"+line, "fine", "x = 2\n")
		require.ErrorAs(t, err, &malformed, "line %q", line)
	}
}

// TestMergeSection_ArrayContinuationIsBody tolerates bracket-opening lines
// that do not close like a header, commented or not.
func TestMergeSection_ArrayContinuationIsBody(t *testing.T) {
	t.Parallel()

	doc := "[keep]\nmatrix = [\n  [1, 2],\n  [3, 4], # pair\n  [\n    5,\n  ],\n]\n"

	out, err := MergeSection(doc, "other", "x = 1\n")
	require.NoError(t, err)
	require.Contains(t, out, "matrix = [\n  [1, 2],\n  [3, 4], # pair\n  [\n    5,\n  ],\n]\n")
}

// TestMergeSection_InvalidName rejects names outside the dotted grammar.
func TestMergeSection_InvalidName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "bad name", "a..b", ".a", "a.", "a[b]"} {
		_, err := MergeSection("", name, "x = 1\n")
		require.ErrorIs(t, err, errInvalidSectionName, "name %q", name)
	}
}

// TestRemoveSections drops every occurrence and leaves absent names untouched.
func TestRemoveSections(t *testing.T) {
	t.Parallel()

	doc := "root = 1\n\n[gone]\na = 1\n\n[kept]\nb = 2\n\n[gone]\nc = 3\n"

	out, err := RemoveSections(doc, "gone")
	require.NoError(t, err)
	require.NotContains(t, out, "[gone]")
	require.Contains(t, out, "root = 1\n")
	require.Contains(t, out, "[kept]\nb = 2\n")

	same, err := RemoveSections(doc, "absent")
	require.NoError(t, err)
	require.Equal(t, doc, same)

	out, err = RemoveSections("[gone] # managed\na = 1\n\n[kept]\nb = 2\n", "gone")
	require.NoError(t, err)
	require.NotContains(t, out, "gone")
	require.Contains(t, out, "[kept]\nb = 2\n")
}

// TestHasSection reports presence, exact-name only.
func TestHasSection(t *testing.T) {
	t.Parallel()

	doc := "[a.b]\nx = 1\n"

	ok, err := HasSection(doc, "a.b")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = HasSection(doc, "a")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = HasSection("[a.b] # managed\nx = 1\n", "a.b")
	require.NoError(t, err)
	require.True(t, ok)
}
