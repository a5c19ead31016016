package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir string, doc *Document) string {
	t.Helper()
	path := filepath.Join(dir, "policy.json")
	e := &Engine{path: path}
	require.NoError(t, e.persist(doc))
	return path
}

func testEngine(t *testing.T, doc *Document) *Engine {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, Validate(doc))
	return &Engine{doc: doc, cwd: cwd}
}

func TestLoadWritesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")

	e, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, e.doc)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestLoadRejectsMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPathsContainingDotDotAreAlwaysDenied(t *testing.T) {
	e := testEngine(t, DefaultDocument())
	assert.False(t, e.Allowed("file-tool", OpCreate, "src/../etc/passwd"))
}

func TestCommandBlockedBySubstring(t *testing.T) {
	doc := DefaultDocument()
	doc.Tools["command-tool"] = ToolPolicy{
		Create: CRUDPolicy{
			AllowedDirectories: []string{""},
			BlockedCommands:    []string{"rm -rf"},
		},
	}
	e := testEngine(t, doc)

	allowed, reason := e.CommandAllowed("rm -rf /tmp/x")
	assert.False(t, allowed)
	assert.NotEmpty(t, reason)
}

func TestCommandAllowedWhenAllowlistEmpty(t *testing.T) {
	doc := DefaultDocument()
	doc.Tools["command-tool"] = ToolPolicy{
		Create: CRUDPolicy{AllowedDirectories: []string{""}},
	}
	e := testEngine(t, doc)

	allowed, _ := e.CommandAllowed("ls -la")
	assert.True(t, allowed)
}

func TestCommandBaseMustBeAllowlisted(t *testing.T) {
	doc := DefaultDocument()
	doc.Tools["command-tool"] = ToolPolicy{
		Create: CRUDPolicy{
			AllowedDirectories: []string{""},
			AllowedCommands:    []string{"git"},
		},
	}
	e := testEngine(t, doc)

	allowed, _ := e.CommandAllowed("git status")
	assert.True(t, allowed)

	allowed, reason := e.CommandAllowed("curl http://evil")
	assert.False(t, allowed)
	assert.NotEmpty(t, reason)
}

func TestEmptyAllowedDirectoriesDeniesEveryPath(t *testing.T) {
	doc := DefaultDocument()
	doc.Tools["file-tool"] = ToolPolicy{
		Create: CRUDPolicy{AllowedDirectories: []string{}},
	}
	e := testEngine(t, doc)

	assert.False(t, e.Allowed("file-tool", OpCreate, ""))
	assert.False(t, e.Allowed("file-tool", OpCreate, "src/a.txt"))
}

func TestEmptyPrefixMatchesAnyPath(t *testing.T) {
	doc := DefaultDocument()
	doc.Tools["file-tool"] = ToolPolicy{
		Create: CRUDPolicy{AllowedDirectories: []string{""}},
	}
	e := testEngine(t, doc)

	assert.True(t, e.Allowed("file-tool", OpCreate, "anywhere/a.txt"))
}

func TestAllowedDirectoryPrefixMatch(t *testing.T) {
	doc := DefaultDocument()
	doc.Tools["file-tool"] = ToolPolicy{
		Create: CRUDPolicy{AllowedDirectories: []string{"src/"}},
	}
	e := testEngine(t, doc)

	assert.True(t, e.Allowed("file-tool", OpCreate, "src/a.txt"))
	assert.False(t, e.Allowed("file-tool", OpCreate, "etc/passwd"))
}

func TestValidateRejectsBlockedExtensionMissingDot(t *testing.T) {
	doc := DefaultDocument()
	doc.Global.BlockedExtensions = []string{"env"}
	assert.Error(t, Validate(doc))
}

func TestValidateRejectsMaxFileSizeOutOfRange(t *testing.T) {
	doc := DefaultDocument()
	doc.Global.MaxFileSizeMB = 0
	assert.Error(t, Validate(doc))

	doc.Global.MaxFileSizeMB = 1001
	assert.Error(t, Validate(doc))
}

func TestValidateRejectsAllowedDirectoryWithoutTrailingSlash(t *testing.T) {
	doc := DefaultDocument()
	doc.Tools["file-tool"] = ToolPolicy{
		Create: CRUDPolicy{AllowedDirectories: []string{"src"}},
	}
	assert.Error(t, Validate(doc))
}

func TestValidateRejectsAllowedDirectoryWithDotDot(t *testing.T) {
	doc := DefaultDocument()
	doc.Tools["file-tool"] = ToolPolicy{
		Create: CRUDPolicy{AllowedDirectories: []string{"../escape/"}},
	}
	assert.Error(t, Validate(doc))
}

func TestReplaceIsAtomic(t *testing.T) {
	e := testEngine(t, DefaultDocument())

	newDoc := DefaultDocument()
	newDoc.Version = "2"
	require.NoError(t, e.Replace(newDoc))
	assert.Equal(t, "2", e.current().Version)
}

func TestWriteDocHelperRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, DefaultDocument())
	doc, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "1", doc.Version)
}
