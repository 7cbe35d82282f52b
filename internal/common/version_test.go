package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadVersionFromFile_FillsDefaultsOnly(t *testing.T) {
	saved := CurrentVersion()
	t.Cleanup(func() { Version, Build, GitCommit = saved.Version, saved.Build, saved.GitCommit })

	Version, Build, GitCommit = "dev", "2026-01-01", "unknown"

	path := filepath.Join(t.TempDir(), ".version")
	require.NoError(t, os.WriteFile(path, []byte("# release\nversion: 1.4.0\nbuild: 2026-05-01\nCommit: abc123\nnoise\n"), 0o644))
	t.Setenv("KEYMETRICS_VERSION_FILE", path)

	LoadVersionFromFile()

	assert.Equal(t, "1.4.0", Version)
	assert.Equal(t, "2026-01-01", Build, "ldflags value is kept")
	assert.Equal(t, "abc123", GitCommit)
	assert.Equal(t, "1.4.0 (build: 2026-01-01, commit: abc123)", GetFullVersion())
}

func TestLoadVersionFromFile_MissingFile(t *testing.T) {
	saved := CurrentVersion()
	t.Cleanup(func() { Version, Build, GitCommit = saved.Version, saved.Build, saved.GitCommit })

	t.Setenv("KEYMETRICS_VERSION_FILE", filepath.Join(t.TempDir(), "nope"))
	LoadVersionFromFile()
	assert.Equal(t, saved, CurrentVersion())
}
