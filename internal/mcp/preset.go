package mcp

import (
	"errors"
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	// DefaultServerName is the section name used when the caller does not
	// pick one.
	DefaultServerName = "chrome"

	// DefaultPresetID selects the preset applied by default.
	DefaultPresetID = "chrome_devtools"

	// EnvChromePath names the variable chrome-devtools-mcp reads to find
	// the browser executable.
	EnvChromePath = "CHROME_PATH"

	// sectionPrefix is the table prefix all server sections live under.
	sectionPrefix = "mcp_servers"
)

// ErrUnknownPreset indicates the requested preset identifier does not exist.
var ErrUnknownPreset = errors.New("unknown server preset")

// ServerPreset is a ready-made tool-server definition.
type ServerPreset struct {
	// ID is the stable identifier used to select the preset.
	ID string
	// Label is a short human-readable description.
	Label string
	// Command launches the server.
	Command string
	// Args are passed to Command.
	Args []string
	// StartupTimeoutSec bounds the server's startup handshake.
	StartupTimeoutSec int
	// ToolTimeoutSec bounds a single tool invocation.
	ToolTimeoutSec int
}

// presets are the server definitions the setup can write out of the box.
var presets = []ServerPreset{
	{
		ID:                "chrome_devtools",
		Label:             "Chrome DevTools (browser automation)",
		Command:           "npx",
		Args:              []string{"chrome-devtools-mcp@latest", "--stdio"},
		StartupTimeoutSec: 45,
		ToolTimeoutSec:    120,
	},
}

// FindPreset returns the preset with the given identifier.
func FindPreset(id string) (ServerPreset, error) {
	for _, preset := range presets {
		if preset.ID == id {
			return preset, nil
		}
	}

	return ServerPreset{}, fmt.Errorf("%q: %w", id, ErrUnknownPreset)
}

// Presets returns all known presets in declaration order.
func Presets() []ServerPreset {
	return append([]ServerPreset(nil), presets...)
}

// SectionName returns the configuration section a server of the given name
// lives in.
func SectionName(name string) string {
	return sectionPrefix + "." + name
}

// ServerConfig is the body of one server section in raven's configuration
// document. Field order here is the order the keys are rendered in.
type ServerConfig struct {
	Preset            string            `toml:"preset,omitempty"`
	Command           string            `toml:"command"`
	Args              []string          `toml:"args,omitempty"`
	Env               map[string]string `toml:"env,inline,omitempty"`
	StartupTimeoutSec int               `toml:"startup_timeout_sec,omitempty"`
	ToolTimeoutSec    int               `toml:"tool_timeout_sec,omitempty"`
}

// ServerConfig renders the preset as a section body. chromePath, when known,
// is exported to the server process via CHROME_PATH.
func (p ServerPreset) ServerConfig(chromePath string) *ServerConfig {
	cfg := &ServerConfig{
		Preset:            p.ID,
		Command:           p.Command,
		Args:              append([]string(nil), p.Args...),
		StartupTimeoutSec: p.StartupTimeoutSec,
		ToolTimeoutSec:    p.ToolTimeoutSec,
	}

	if chromePath != "" {
		cfg.Env = map[string]string{EnvChromePath: chromePath}
	}

	return cfg
}

// RenderSectionBody returns the TOML body for the server's section, without
// the section header. The output is deterministic, so re-applying the same
// configuration leaves the document unchanged.
func (c *ServerConfig) RenderSectionBody() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal server config: %w", err)
	}

	return string(data), nil
}
