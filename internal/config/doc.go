// Package config defines installer settings used by the raven-setup binaries
// and provides helpers to load, validate and save them in YAML format.
//
// The settings file is optional: every field has a default, and a handful of
// RAVEN_* environment variables override individual values at run time.
package config
