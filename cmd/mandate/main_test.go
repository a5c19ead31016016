package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func tempOutputFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRunHelpExitsZero(t *testing.T) {
	out := tempOutputFile(t)
	errOut := tempOutputFile(t)
	code := run([]string{"--help"}, out, errOut)
	assert.Equal(t, exitOK, code)
}

func TestRunUnknownProviderExitsRecoverable(t *testing.T) {
	out := tempOutputFile(t)
	errOut := tempOutputFile(t)
	code := run([]string{"--provider=unknown", "do", "a", "thing"}, out, errOut)
	assert.Equal(t, exitRecoverable, code)
}

func TestRunBadFlagExitsRecoverable(t *testing.T) {
	out := tempOutputFile(t)
	errOut := tempOutputFile(t)
	code := run([]string{"--not-a-flag"}, out, errOut)
	assert.Equal(t, exitRecoverable, code)
}

func TestRunMissingProviderKeyExitsConfiguration(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MISTRAL_API_KEY", "")

	out := tempOutputFile(t)
	errOut := tempOutputFile(t)
	code := run([]string{"hello", "world"}, out, errOut)
	assert.Equal(t, exitConfiguration, code)
}

func TestBootstrapWithExplicitProviderSucceedsWithoutAPIKey(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	a, err := bootstrap("claude", tempOutputFile(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "A", a.coord.ProviderName())
	_, statErr := os.Stat(filepath.Join(dir, ".mandate", "policy.json"))
	assert.NoError(t, statErr)
}

func TestParseRange(t *testing.T) {
	start, end, ok := parseRange("2-5")
	assert.True(t, ok)
	assert.Equal(t, int64(2), start)
	assert.Equal(t, int64(5), end)

	_, _, ok = parseRange("not-a-range")
	assert.False(t, ok)

	_, _, ok = parseRange("7")
	assert.False(t, ok)
}

func TestResolveAdapterPrefersExplicitFlag(t *testing.T) {
	adapter, err := resolveAdapter("chatgpt", "claude")
	require.NoError(t, err)
	assert.Equal(t, "O", adapter.Name())
}

func TestResolveAdapterFallsBackToConfigDefault(t *testing.T) {
	adapter, err := resolveAdapter("", "gemini")
	require.NoError(t, err)
	assert.Equal(t, "G", adapter.Name())
}
