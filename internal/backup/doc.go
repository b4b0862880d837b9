// Package backup manages timestamped copies of files replaced during setup.
//
// A backup lives beside its target as <name>.bak.<YYYYMMDDHHMMSS>. The stamp
// is fixed-width, so lexicographic order equals chronological order and List
// can return records newest first without parsing dates twice. Backups are
// never pruned automatically.
package backup
