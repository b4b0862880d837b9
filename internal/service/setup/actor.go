package setup

import (
	"os"
	"os/user"
)

// detectActor names who ran the setup, for the audit line in the logs.
// Lookup failures degrade to placeholders; the setup itself never depends on
// the answer.
func detectActor() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-host"
	}

	username := "unknown-user"
	if current, err := user.Current(); err == nil && current.Username != "" {
		username = current.Username
	}

	return username + "@" + hostname
}
