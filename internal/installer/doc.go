// Package installer replaces the target binary with a resolved artifact.
//
// The order of operations is fixed: back up the existing target, then swap
// in the new contents atomically, then the executable permission bits are
// set. A failed backup aborts the install before the target is touched, so
// the previous binary is never lost.
package installer
