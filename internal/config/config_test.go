package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ksi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultScanConfig(t *testing.T) {
	cfg := DefaultScanConfig()
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Empty(t, cfg.Paths)
}

func TestLoadScanConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
paths:
  - infra/network
  - infra/compute
output_dir: out
terraform_binary: /opt/tf/terraform
`)

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"infra/network", "infra/compute"}, cfg.Paths)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "/opt/tf/terraform", cfg.TerraformBinary)
}

func TestLoadScanConfigDefaultsOutputDir(t *testing.T) {
	cfg, err := LoadScanConfig(writeConfig(t, "version: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.OutputDir)
}

func TestLoadScanConfigRejectsUnknownVersion(t *testing.T) {
	_, err := LoadScanConfig(writeConfig(t, "version: 2\n"))
	require.Error(t, err)
	assert.Equal(t, "unsupported scan config version", err.Error())
}

func TestLoadScanConfigMissingFile(t *testing.T) {
	_, err := LoadScanConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadScanConfigBadYAML(t *testing.T) {
	_, err := LoadScanConfig(writeConfig(t, "version: [oops\n"))
	assert.Error(t, err)
}
