// Package executor implements the two Operation Executors: a file writer
// (dry-run + apply) and a command runner (execute with working-directory
// persistence), grounded on the teacher's builtin write_file/run_shell
// tools but reshaped around spec.md §4.3's preview/apply split.
package executor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
)

// FileResult describes the outcome of a dry-run or apply call.
type FileResult struct {
	Success     bool
	Description string
	Bytes       int
	Diff        string
	Error       string
}

// FileWriter previews and applies file-write operations.
type FileWriter struct {
	// Root anchors relative paths; empty means the process cwd.
	Root string
}

func (w *FileWriter) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if w.Root == "" {
		return path
	}
	return filepath.Join(w.Root, path)
}

// DryRun computes a description of what Apply would do without touching the
// filesystem: "will create new file P with N bytes" when P does not exist,
// "will overwrite existing file P with N bytes" otherwise.
func (w *FileWriter) DryRun(path, content string) FileResult {
	abs := w.resolve(path)
	bytes := len(content)

	existing, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		return FileResult{
			Success:     true,
			Description: fmt.Sprintf("will create new file %s with %d bytes", path, bytes),
			Bytes:       bytes,
		}
	}
	if err != nil {
		return FileResult{Success: false, Error: err.Error()}
	}

	diff := unifiedDiff(path, string(existing), content)
	return FileResult{
		Success:     true,
		Description: fmt.Sprintf("will overwrite existing file %s with %d bytes", path, bytes),
		Bytes:       bytes,
		Diff:        diff,
	}
}

func unifiedDiff(path, before, after string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path + " (before)",
		ToFile:   path + " (after)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

// Apply creates parent directories, writes content, and returns a
// description including the byte count. On any failure it returns
// Success=false with the error text; it never panics and never leaves a
// partially-created parent directory tree uncreated.
func (w *FileWriter) Apply(path, content string) FileResult {
	abs := w.resolve(path)
	bytes := len(content)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return FileResult{Success: false, Error: fmt.Sprintf("failed to create directory: %v", err)}
	}

	isNew := true
	if _, err := os.Stat(abs); err == nil {
		isNew = false
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return FileResult{Success: false, Error: fmt.Sprintf("failed to write file: %v", err)}
	}

	verb := "Overwrote"
	if isNew {
		verb = "Created"
	}
	return FileResult{
		Success:     true,
		Description: fmt.Sprintf("%s %s (%d bytes)", verb, path, bytes),
		Bytes:       bytes,
	}
}
