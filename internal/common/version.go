package common

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Version variables injected at build time via ldflags
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the build identity reported by the CLI.
type VersionInfo struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	GitCommit string `json:"commit"`
}

// CurrentVersion returns the resolved build identity.
func CurrentVersion() VersionInfo {
	return VersionInfo{Version: Version, Build: Build, GitCommit: GitCommit}
}

// String formats the version with its build and commit.
func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", v.Version, v.Build, v.GitCommit)
}

// GetFullVersion returns a formatted version string with all build info
func GetFullVersion() string {
	return CurrentVersion().String()
}

// LoadVersionFromFile fills version fields still at their defaults from a
// .version file next to the binary. KEYMETRICS_VERSION_FILE points elsewhere.
func LoadVersionFromFile() {
	path := os.Getenv("KEYMETRICS_VERSION_FILE")
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return
		}
		path = filepath.Join(filepath.Dir(exe), ".version")
	}

	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	fields := map[string]*string{
		"version": &Version,
		"build":   &Build,
		"commit":  &GitCommit,
	}
	defaults := CurrentVersion()
	unset := map[string]bool{
		"version": defaults.Version == "dev",
		"build":   defaults.Build == "unknown",
		"commit":  defaults.GitCommit == "unknown",
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if target, known := fields[key]; known && unset[key] {
			*target = strings.TrimSpace(val)
		}
	}
}
