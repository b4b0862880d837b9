// Package tomldoc edits one named section of a TOML-style document while
// preserving everything else byte-for-byte.
//
// The document is tokenized line by line into header and body tokens; a
// section span runs from its header line through the line preceding the next
// header. Merging removes every span of the target name and appends one
// canonical section at the end, so repeated merges are idempotent. Foreign
// sections, comments, and formatting are never touched, and subtables such as
// [a.b.c] are distinct sections from [a.b].
//
// Header lines may carry a trailing '#' comment. The tokenizer refuses
// documents it cannot classify: a line that opens with '[' and closes with
// ']' but is not a well-formed header (array-of-tables syntax included)
// aborts the merge instead of guessing.
package tomldoc
