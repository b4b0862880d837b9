// Package mcp defines the tool-server presets the setup can write into
// raven's configuration document.
//
// A preset expands to one section under mcp_servers.<name>. The section body
// is rendered deterministically, so applying the same preset twice produces
// byte-identical configuration. The package also probes the machine for
// Chrome-compatible browsers so the DevTools preset can pin one explicitly.
package mcp
