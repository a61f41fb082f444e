package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("# tf\n"), 0o644))
}

func TestScanDetectsTerraform(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf")
	writeFile(t, dir, "variables.tf")
	writeFile(t, dir, "modules/vpc/main.tf")
	writeFile(t, dir, LockfileName)

	det, err := Scan(dir)
	require.NoError(t, err)

	assert.True(t, det.Detected)
	assert.Equal(t, 3, det.TFFileCount)
	assert.Equal(t, []string{".", "modules/vpc"}, det.TFPaths)
	assert.True(t, det.LockfilePresent)
	assert.Equal(t, SchemaVersion, det.SchemaVersion)
	assert.NotEmpty(t, det.ScannedAt)
}

func TestScanEmptyTree(t *testing.T) {
	det, err := Scan(t.TempDir())
	require.NoError(t, err)

	assert.False(t, det.Detected)
	assert.Zero(t, det.TFFileCount)
	assert.Empty(t, det.TFPaths)
	assert.False(t, det.LockfilePresent)
}

func TestScanSkipsVendoredDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".terraform/providers/cached.tf")
	writeFile(t, dir, ".git/hooks/fake.tf")
	writeFile(t, dir, "node_modules/pkg/x.tf")

	det, err := Scan(dir)
	require.NoError(t, err)
	assert.False(t, det.Detected)
}

func TestRootPaths(t *testing.T) {
	det, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, RootPaths(det))
	assert.Nil(t, RootPaths(nil))

	dir := t.TempDir()
	writeFile(t, dir, "envs/prod/main.tf")
	writeFile(t, dir, "envs/staging/main.tf")
	det, err = Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"envs/prod"}, RootPaths(det))
}
