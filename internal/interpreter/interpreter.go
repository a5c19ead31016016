// Package interpreter scans model text for the small set of recognized
// tool-invocation expressions (spec.md §4.6), mutating the Todo Store and
// rewriting the text with human-readable acknowledgements. The
// <TODO_SEPARATOR> block is parsed with explicit string scanning, not a
// regular expression, to tolerate embedded quotes and newlines; the other
// six forms use a small fixed regular-pattern set with a rescan-to-fixpoint
// outer loop so overlapping rewrites compose.
package interpreter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mandate-run/mandate/internal/todo"
)

// Executor is the subset of Coordinator behaviour the interpreter invokes
// for execute_next/execute_all/execute_todo. Kept as an interface so the
// interpreter does not import the coordinator package directly.
type Executor interface {
	ExecuteNext() error
	ExecuteAll() error
	ExecuteTodo(id int64) error
}

// Interpreter holds the Todo Store and (optionally) an execution-control
// Executor it mutates as it scans assistant text.
type Interpreter struct {
	Todo *todo.Store
	// Exec is the Coordinator's execution-control surface. Nil disables
	// forms 6 below (see AllowInlineExecControl in internal/coordinator for
	// why this is off by default).
	Exec Executor
}

var (
	listTodosPattern    = regexp.MustCompile(`list_todos\(\s*\)`)
	markCompletePattern = regexp.MustCompile(`mark_complete\(\s*(\d+)\s*\)`)
	deleteTodoPattern   = regexp.MustCompile(`delete_todo\(\s*(\d+)\s*\)`)
	executeNextPattern  = regexp.MustCompile(`execute_next\(\s*\)`)
	executeAllPattern   = regexp.MustCompile(`execute_all\(\s*\)`)
	executeTodoPattern  = regexp.MustCompile(`execute_todo\(\s*(\d+)\s*\)`)
)

// simpleAddTodoPattern matches add_todo("title","description") or the
// single-quoted variant, without embedded quotes/newlines (those go through
// the <TODO_SEPARATOR> block instead, per spec.md §4.6/§9).
var simpleAddTodoPattern = regexp.MustCompile(`add_todo\(\s*"([^"]*)"\s*,\s*"([^"]*)"\s*\)|add_todo\(\s*'([^']*)'\s*,\s*'([^']*)'\s*\)`)
var simpleRequestApprovalPattern = regexp.MustCompile(`request_user_approval\(\s*"([^"]*)"\s*\)|request_user_approval\(\s*'([^']*)'\s*\)`)

// Run scans text to a fixpoint: each recognized form is matched, its side
// effect applied, and the match replaced by an acknowledgement; the scan
// restarts from the beginning of the rewritten text so overlapping rewrites
// compose.
func (in *Interpreter) Run(text string) string {
	for {
		rewritten, changed := in.passOnce(text)
		text = rewritten
		if !changed {
			break
		}
	}
	return text
}

func (in *Interpreter) passOnce(text string) (string, bool) {
	if rewritten, ok := in.scanTodoSeparatorBlock(text); ok {
		return rewritten, true
	}

	if loc := simpleAddTodoPattern.FindStringSubmatchIndex(text); loc != nil {
		m := simpleAddTodoPattern.FindStringSubmatch(text)
		title, desc := firstNonEmptyPair(m)
		ack := in.addTodo(title, desc)
		return text[:loc[0]] + ack + text[loc[1]:], true
	}

	if loc := listTodosPattern.FindStringIndex(text); loc != nil {
		return text[:loc[0]] + in.renderList() + text[loc[1]:], true
	}

	if loc := markCompletePattern.FindStringSubmatchIndex(text); loc != nil {
		m := markCompletePattern.FindStringSubmatch(text)
		id, _ := strconv.ParseInt(m[1], 10, 64)
		return text[:loc[0]] + in.markComplete(id) + text[loc[1]:], true
	}

	if loc := deleteTodoPattern.FindStringSubmatchIndex(text); loc != nil {
		m := deleteTodoPattern.FindStringSubmatch(text)
		id, _ := strconv.ParseInt(m[1], 10, 64)
		return text[:loc[0]] + in.deleteTodo(id) + text[loc[1]:], true
	}

	if loc := executeNextPattern.FindStringIndex(text); loc != nil {
		return text[:loc[0]] + in.executeNext() + text[loc[1]:], true
	}

	if loc := executeAllPattern.FindStringIndex(text); loc != nil {
		return text[:loc[0]] + in.executeAll() + text[loc[1]:], true
	}

	if loc := executeTodoPattern.FindStringSubmatchIndex(text); loc != nil {
		m := executeTodoPattern.FindStringSubmatch(text)
		id, _ := strconv.ParseInt(m[1], 10, 64)
		return text[:loc[0]] + in.executeTodo(id) + text[loc[1]:], true
	}

	if loc := simpleRequestApprovalPattern.FindStringSubmatchIndex(text); loc != nil {
		m := simpleRequestApprovalPattern.FindStringSubmatch(text)
		reason := m[1]
		if reason == "" {
			reason = m[2]
		}
		return text[:loc[0]] + in.requestApproval(reason) + text[loc[1]:], true
	}

	return text, false
}

func firstNonEmptyPair(m []string) (string, string) {
	if m[1] != "" || m[2] != "" {
		return m[1], m[2]
	}
	return m[3], m[4]
}

const todoSeparator = "<TODO_SEPARATOR>"

// scanTodoSeparatorBlock explicitly string-scans for a block delimited by
// <TODO_SEPARATOR> lines containing Title: and Description: fields. This is
// hand-rolled (not a regular expression) because the content may embed
// quotes and newlines that break pattern matching.
func (in *Interpreter) scanTodoSeparatorBlock(text string) (string, bool) {
	start := strings.Index(text, todoSeparator)
	if start == -1 {
		return text, false
	}
	rest := text[start+len(todoSeparator):]
	end := strings.Index(rest, todoSeparator)
	if end == -1 {
		return text, false
	}
	block := rest[:end]
	fullMatchEnd := start + len(todoSeparator) + end + len(todoSeparator)

	title, desc := parseTodoFields(block)
	ack := in.addTodo(title, desc)
	return text[:start] + ack + text[fullMatchEnd:], true
}

func parseTodoFields(block string) (title, desc string) {
	lines := strings.Split(block, "\n")
	var descLines []string
	inDesc := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Title:"):
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Title:"))
			inDesc = false
		case strings.HasPrefix(trimmed, "Description:"):
			descLines = append(descLines, strings.TrimSpace(strings.TrimPrefix(trimmed, "Description:")))
			inDesc = true
		case inDesc:
			descLines = append(descLines, trimmed)
		}
	}
	desc = strings.TrimSpace(strings.Join(descLines, "\n"))
	return title, desc
}

func (in *Interpreter) addTodo(title, desc string) string {
	if _, err := in.Todo.Add(title, desc); err != nil {
		return fmt.Sprintf("**Failed to add:** %s", title)
	}
	return fmt.Sprintf("**Added:** %s", title)
}

func statusIcon(s todo.Status) string {
	switch s {
	case todo.StatusCompleted:
		return "[x]"
	case todo.StatusInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

func (in *Interpreter) renderList() string {
	items := in.Todo.List(true)
	if len(items) == 0 {
		return "No todos."
	}
	var sb strings.Builder
	for _, it := range items {
		fmt.Fprintf(&sb, "%s #%d %s", statusIcon(it.Status), it.ID, it.Title)
		if it.Description != "" {
			fmt.Fprintf(&sb, " — %s", it.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (in *Interpreter) markComplete(id int64) string {
	completed := todo.StatusCompleted
	if in.Todo.Update(id, todo.Update{Status: &completed}) {
		return fmt.Sprintf("Marked #%d complete.", id)
	}
	return fmt.Sprintf("Todo #%d not found.", id)
}

func (in *Interpreter) deleteTodo(id int64) string {
	if in.Todo.Delete(id) {
		return fmt.Sprintf("Deleted #%d.", id)
	}
	return fmt.Sprintf("Todo #%d not found.", id)
}

func (in *Interpreter) executeNext() string {
	if in.Exec == nil {
		return "execute_next() is not enabled in this session."
	}
	if err := in.Exec.ExecuteNext(); err != nil {
		return "execute_next() failed: " + err.Error()
	}
	return "Executing next todo."
}

func (in *Interpreter) executeAll() string {
	if in.Exec == nil {
		return "execute_all() is not enabled in this session."
	}
	if err := in.Exec.ExecuteAll(); err != nil {
		return "execute_all() failed: " + err.Error()
	}
	return "Executing all pending todos."
}

func (in *Interpreter) executeTodo(id int64) string {
	if in.Exec == nil {
		return fmt.Sprintf("execute_todo(%d) is not enabled in this session.", id)
	}
	if err := in.Exec.ExecuteTodo(id); err != nil {
		return fmt.Sprintf("execute_todo(%d) failed: %v", id, err)
	}
	return fmt.Sprintf("Executing todo #%d.", id)
}

func (in *Interpreter) requestApproval(reason string) string {
	return "Pause requested: " + reason
}
