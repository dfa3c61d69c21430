// Package config tests.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:8012", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30, cfg.PerPage)
	assert.Equal(t, "pullquest.db", cfg.StatePath)
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.Equal(t, "/", cfg.HomePath)
	assert.Equal(t, "127.0.0.1:8091", cfg.StatusAddr)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.VerifySignatures())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PULLQUEST_API_URL", "https://api.pullquest.dev/")
	t.Setenv("PULLQUEST_JWT_SECRET", "s3cret")
	t.Setenv("PULLQUEST_HTTP_TIMEOUT", "5s")
	t.Setenv("PULLQUEST_PER_PAGE", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "https://api.pullquest.dev", cfg.APIBaseURL)
	assert.True(t, cfg.VerifySignatures())
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 50, cfg.PerPage)
}

func TestLoad_InvalidPerPage(t *testing.T) {
	t.Setenv("PULLQUEST_PER_PAGE", "500")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("PULLQUEST_HTTP_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadLabelPresets_Default(t *testing.T) {
	presets, err := LoadLabelPresets("")
	require.NoError(t, err)
	assert.Equal(t, []string{"bug", "enhancement", "question", "documentation", "good first issue"}, PresetNames(presets))
}

func TestLoadLabelPresets_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	content := "labels:\n  - name: bug\n    color: ff0000\n  - name: security\n  - name: bug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	presets, err := LoadLabelPresets(path)
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, "ff0000", presets[0].Color)
	assert.Equal(t, "security", presets[1].Name)
}

func TestLoadLabelPresets_Errors(t *testing.T) {
	_, err := LoadLabelPresets(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("labels: []\n"), 0o600))
	_, err = LoadLabelPresets(path)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("labels:\n  - color: 000000\n"), 0o600))
	_, err = LoadLabelPresets(bad)
	assert.Error(t, err)
}
