// Package display renders status lines and model replies to the terminal.
// Adapted from the teacher's pkg/terminal/output.go: a styled Writer backed
// by lipgloss for status-line colour and glamour for markdown rendering,
// thinned to the handful of surfaces spec.md §6/§9 actually names (the four
// status-line prefixes, todo listings, and assistant replies).
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// defaultWordWrap is the column width used when out isn't a real terminal
// (or its size can't be queried) — the teacher's getTerminalWidth() falls
// back to the same value.
const defaultWordWrap = 80

// fdWriter is implemented by *os.File; used to recover a file descriptor
// from the io.Writer New was given, the way pkg/terminal/output.go does
// before calling term.GetSize/term.IsTerminal on stdout.
type fdWriter interface {
	Fd() uintptr
}

// Writer renders lines to the terminal, honouring the TERM-gated ANSI
// colour decision spec.md §6 mandates.
type Writer struct {
	out      io.Writer
	color    bool
	renderer *glamour.TermRenderer

	deniedStyle    lipgloss.Style
	errorStyle     lipgloss.Style
	cancelledStyle lipgloss.Style
	successStyle   lipgloss.Style
	dimStyle       lipgloss.Style
	boldStyle      lipgloss.Style
}

// New builds a Writer over out. colorOverride is "always"/"never"/""; when
// empty, colour is enabled unless TERM is unset or "dumb".
func New(out io.Writer, colorOverride string) *Writer {
	color := shouldUseColor(out, colorOverride)

	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(terminalWidth(out)))

	// Styles render through a renderer over out, not stdout; when colour is
	// on but out reports no colour support (not a tty), force ANSI so the
	// "always" override still styles the output.
	r := lipgloss.NewRenderer(out)
	if color && r.ColorProfile() == termenv.Ascii {
		r.SetColorProfile(termenv.ANSI)
	}

	w := &Writer{out: out, color: color, renderer: renderer}
	w.deniedStyle = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}).Bold(true)
	w.errorStyle = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).Bold(true)
	w.cancelledStyle = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	w.successStyle = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	w.dimStyle = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	w.boldStyle = r.NewStyle().Bold(true)
	return w
}

// shouldUseColor honours an explicit override first, then TERM, then (for a
// real file descriptor) whether the destination is actually a terminal —
// grounded on pkg/terminal/output.go's combination of a TERM check and
// term.IsTerminal so output piped to a file or pipe is never colourized even
// when the parent shell's TERM would otherwise allow it.
func shouldUseColor(out io.Writer, override string) bool {
	switch override {
	case "always":
		return true
	case "never":
		return false
	}
	env := os.Getenv("TERM")
	if env == "" || env == "dumb" {
		return false
	}
	if f, ok := out.(fdWriter); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return true
}

// terminalWidth queries out's terminal column width via term.GetSize,
// falling back to defaultWordWrap when out isn't a real terminal or the
// query fails — the same fallback the teacher's getTerminalWidth() uses.
func terminalWidth(out io.Writer) int {
	f, ok := out.(fdWriter)
	if !ok {
		return defaultWordWrap
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWordWrap
	}
	return width
}

// Line prints a single line verbatim (the Coordinator's DisplayFunc).
func (w *Writer) Line(s string) {
	fmt.Fprintln(w.out, s)
}

// Status renders one of the four spec.md §7 status-line prefixes, colouring
// by kind: Policy Denied (yellow), Error:/Dry run failed (red), Operation
// cancelled (dim).
func (w *Writer) Status(line string) {
	switch {
	case strings.HasPrefix(line, "Policy Denied"):
		w.render(line, w.deniedStyle)
	case strings.HasPrefix(line, "Error:"), strings.HasPrefix(line, "Dry run failed"):
		w.render(line, w.errorStyle)
	case strings.HasPrefix(line, "Operation cancelled"):
		w.render(line, w.cancelledStyle)
	default:
		fmt.Fprintln(w.out, line)
	}
}

// Success prints a line in green (an applied operation).
func (w *Writer) Success(s string) {
	w.render(s, w.successStyle)
}

// Dim prints secondary text.
func (w *Writer) Dim(s string) {
	w.render(s, w.dimStyle)
}

// Bold prints emphasised text.
func (w *Writer) Bold(s string) {
	w.render(s, w.boldStyle)
}

func (w *Writer) render(s string, style lipgloss.Style) {
	if !w.color {
		fmt.Fprintln(w.out, s)
		return
	}
	fmt.Fprintln(w.out, style.Render(s))
}

// Reply renders an assistant chat reply as markdown.
func (w *Writer) Reply(md string) {
	if w.renderer == nil {
		fmt.Fprintln(w.out, md)
		return
	}
	rendered, err := w.renderer.Render(md)
	if err != nil {
		fmt.Fprintln(w.out, md)
		return
	}
	fmt.Fprint(w.out, rendered)
}
