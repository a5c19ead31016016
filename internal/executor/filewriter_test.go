package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunNewFile(t *testing.T) {
	dir := t.TempDir()
	w := &FileWriter{Root: dir}

	res := w.DryRun("a.txt", "hello")
	assert.True(t, res.Success)
	assert.Contains(t, res.Description, "will create new file a.txt with 5 bytes")

	_, err := os.Stat(filepath.Join(dir, "a.txt"))
	assert.True(t, os.IsNotExist(err), "dry run must not touch the filesystem")
}

func TestDryRunExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old"), 0o644))

	w := &FileWriter{Root: dir}
	res := w.DryRun("a.txt", "newcontent")
	assert.True(t, res.Success)
	assert.Contains(t, res.Description, "will overwrite existing file a.txt with 10 bytes")
	assert.NotEmpty(t, res.Diff)
}

func TestApplyCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	w := &FileWriter{Root: dir}

	res := w.Apply("nested/sub/file.txt", "content")
	require.True(t, res.Success)

	data, err := os.ReadFile(filepath.Join(dir, "nested/sub/file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.Contains(t, res.Description, "Created")
}

func TestApplyOverwriteReportsOverwrote(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old"), 0o644))

	w := &FileWriter{Root: dir}
	res := w.Apply("a.txt", "new")
	require.True(t, res.Success)
	assert.Contains(t, res.Description, "Overwrote")
}

func TestApplyFailsOnUnwritableParent(t *testing.T) {
	dir := t.TempDir()
	// Create a file where a directory is expected, so MkdirAll fails.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocked"), []byte("x"), 0o644))

	w := &FileWriter{Root: dir}
	res := w.Apply("blocked/child.txt", "content")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}
