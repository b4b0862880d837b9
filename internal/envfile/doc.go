// Package envfile merges export directives into a shell environment file.
//
// Managed lines have the shape `export KEY='VALUE'` and share a key prefix;
// everything else in the file is opaque passthrough. Merging removes the
// managed lines and appends the new directive set in stable order, which
// makes the operation idempotent.
package envfile
