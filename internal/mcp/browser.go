package mcp

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// BrowserCandidates returns Chrome-compatible executables present on this
// machine, most preferred first. An empty result is fine; the server then
// relies on its own browser discovery.
func BrowserCandidates() []string {
	osName := strings.ToLower(runtime.GOOS)

	switch {
	case strings.Contains(osName, "darwin"):
		return existingPaths(
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		)
	case strings.Contains(osName, "windows"):
		return existingPaths(
			filepath.Join(os.Getenv("ProgramFiles"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("LocalAppData"), "Google", "Chrome", "Application", "chrome.exe"),
		)
	default:
		return lookupPaths("google-chrome", "google-chrome-stable", "chromium", "chromium-browser")
	}
}

func existingPaths(paths ...string) []string {
	var found []string

	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found = append(found, path)
		}
	}

	return found
}

func lookupPaths(names ...string) []string {
	var found []string

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			found = append(found, path)
		}
	}

	return found
}
