// Package setup implements the raven-setup workflow: resolve an installable
// binary, install it with a backup of the previous one, and write raven's
// configuration document and environment exports.
//
// Configuration writes are surgical. Only the owned section of config.toml
// and the managed exports of env.sh are replaced; everything else in those
// files, including comments and formatting, survives byte for byte. Repeated
// runs with the same inputs change nothing.
//
// RemoveServer is the inverse of the configuration step: it deletes a
// tool-server section written by setup and leaves the rest of the document
// alone.
package setup
