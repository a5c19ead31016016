// Package boundary implements the concrete adapters for the three external
// collaborators named in spec.md §1/§6: the interactive line-editing
// terminal, the HTTP client, and the local RPC transport fabric. Each is
// described there only by the interface the core depends on; this package
// supplies the default, deliberately thin, implementation of each.
package boundary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LineEditor reads one line of interactive input, echoing a prompt first.
type LineEditor interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// TerminalLineEditor reads from stdin via bufio.Scanner and appends every
// non-empty line it reads to a history file (spec.md §6: "history"
// line-delimited command history for the line editor).
type TerminalLineEditor struct {
	in          *bufio.Scanner
	out         io.Writer
	historyFile *os.File
}

// NewTerminalLineEditor opens (creating if absent) the history file at
// historyPath and wires stdin/stdout as the interactive surface.
func NewTerminalLineEditor(historyPath string) (*TerminalLineEditor, error) {
	return NewTerminalLineEditorWithIO(historyPath, os.Stdin, os.Stdout)
}

// NewTerminalLineEditorWithIO is NewTerminalLineEditor with an injected
// reader/writer, used in tests to avoid touching the real terminal.
func NewTerminalLineEditorWithIO(historyPath string, in io.Reader, out io.Writer) (*TerminalLineEditor, error) {
	f, err := os.OpenFile(historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &TerminalLineEditor{
		in:          bufio.NewScanner(in),
		out:         out,
		historyFile: f,
	}, nil
}

// ReadLine prints prompt, reads one line, and records it to history.
func (e *TerminalLineEditor) ReadLine(prompt string) (string, error) {
	fmt.Fprint(e.out, prompt)
	if !e.in.Scan() {
		if err := e.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := e.in.Text()
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		fmt.Fprintln(e.historyFile, trimmed)
	}
	return line, nil
}

// Close releases the history file handle.
func (e *TerminalLineEditor) Close() error {
	if e.historyFile == nil {
		return nil
	}
	return e.historyFile.Close()
}
