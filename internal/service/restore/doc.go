// Package restore implements the raven-restore workflow: list the backups
// of the installed binary and copy a chosen one back onto the target,
// restoring its executable permission bits.
package restore
