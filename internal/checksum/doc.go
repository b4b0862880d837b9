// Package checksum verifies artifact integrity with SHA-256 digests.
//
// Digests are hex strings compared case-insensitively. An empty expected
// digest disables verification; a mismatch aborts the run.
package checksum
