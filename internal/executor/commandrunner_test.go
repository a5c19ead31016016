package executor

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteEchoCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	r := NewCommandRunner(dir)

	res := r.Execute(context.Background(), "echo hello", 0)
	assert.Equal(t, "hello", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Refused)
}

func TestExecuteNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	r := NewCommandRunner(dir)

	res := r.Execute(context.Background(), "exit 3", 0)
	assert.Equal(t, 3, res.ExitCode)
}

func TestPersistentCWDAfterCD(t *testing.T) {
	dir := t.TempDir()
	sub := dir + "/build"
	require.NoError(t, os.Mkdir(sub, 0o755))

	r := NewCommandRunner(dir)
	res := r.Execute(context.Background(), "cd build && true", 0)
	require.NoError(t, res.Err)
	assert.Equal(t, sub, r.CWD())
	assert.Equal(t, sub, res.CWDAfter)

	res2 := r.Execute(context.Background(), "pwd", 0)
	assert.Equal(t, sub, res2.Stdout)
}

func TestSentinelLineStrippedFromStdout(t *testing.T) {
	dir := t.TempDir()
	r := NewCommandRunner(dir)

	res := r.Execute(context.Background(), "echo one; echo two", 0)
	assert.Equal(t, "one\ntwo", res.Stdout)
	assert.NotContains(t, res.Stdout, r.token)
}

func TestDangerousPatternRefused(t *testing.T) {
	dir := t.TempDir()
	r := NewCommandRunner(dir)

	res := r.Execute(context.Background(), "rm -rf /", 0)
	assert.True(t, res.Refused)
	assert.NotEmpty(t, res.RefusalMsg)
}

func TestDangerousPatternIndependentOfPolicy(t *testing.T) {
	dir := t.TempDir()
	r := NewCommandRunner(dir)

	res := r.Execute(context.Background(), "dd if=/dev/zero of=/dev/sda", 0)
	assert.True(t, res.Refused)
}

func TestSafeCommandNotRefused(t *testing.T) {
	dir := t.TempDir()
	r := NewCommandRunner(dir)

	res := r.Execute(context.Background(), "ls -la", 0)
	assert.False(t, res.Refused)
}
