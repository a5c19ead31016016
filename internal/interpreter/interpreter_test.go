package interpreter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandate-run/mandate/internal/todo"
)

func newInterpreter() *Interpreter {
	return &Interpreter{Todo: todo.New()}
}

func TestAddTodoSimpleForm(t *testing.T) {
	in := newInterpreter()
	out := in.Run(`Sure, I'll do that. add_todo("Write README", "Explain setup")`)

	assert.Contains(t, out, "**Added:** Write README")
	items := in.Todo.List(true)
	require.Len(t, items, 1)
	assert.Equal(t, "Write README", items[0].Title)
	assert.Equal(t, "Explain setup", items[0].Description)
}

func TestComposedAddThenList(t *testing.T) {
	in := newInterpreter()
	out := in.Run(`add_todo("A","x") add_todo("B","y") list_todos()`)

	assert.Contains(t, out, "**Added:** A")
	assert.Contains(t, out, "**Added:** B")
	assert.Contains(t, out, "#1 A")
	assert.Contains(t, out, "#2 B")

	items := in.Todo.List(true)
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Title)
	assert.Equal(t, "B", items[1].Title)
}

func TestTodoSeparatorBlockWithEmbeddedQuotesAndNewlines(t *testing.T) {
	in := newInterpreter()
	text := "Here is the plan:\n" +
		"<TODO_SEPARATOR>\n" +
		"Title: Fix the \"quoted\" bug\n" +
		"Description: Multi-line\ndescription with \"quotes\"\n" +
		"<TODO_SEPARATOR>\n" +
		"Done."

	out := in.Run(text)
	assert.Contains(t, out, "**Added:** Fix the \"quoted\" bug")

	items := in.Todo.List(true)
	require.Len(t, items, 1)
	assert.Equal(t, "Fix the \"quoted\" bug", items[0].Title)
	assert.Contains(t, items[0].Description, "Multi-line")
	assert.Contains(t, items[0].Description, "quotes")
}

func TestMarkCompleteAndDelete(t *testing.T) {
	in := newInterpreter()
	in.Todo.Add("first", "")
	in.Todo.Add("second", "")

	out := in.Run("mark_complete(1)")
	assert.Contains(t, out, "Marked #1 complete")
	item := in.Todo.Get(1)
	require.NotNil(t, item)
	assert.Equal(t, todo.StatusCompleted, item.Status)

	out = in.Run("delete_todo(2)")
	assert.Contains(t, out, "Deleted #2")
	assert.Nil(t, in.Todo.Get(2))
}

func TestMarkCompleteUnknownID(t *testing.T) {
	in := newInterpreter()
	out := in.Run("mark_complete(99)")
	assert.Contains(t, out, "not found")
}

func TestListTodosEmpty(t *testing.T) {
	in := newInterpreter()
	out := in.Run("list_todos()")
	assert.Contains(t, out, "No todos.")
}

func TestExecuteFormsDisabledWithoutExecutor(t *testing.T) {
	in := newInterpreter()
	out := in.Run("execute_next()")
	assert.Contains(t, out, "not enabled")
}

type fakeExecutor struct {
	nextCalled, allCalled bool
	lastID                int64
	err                   error
}

func (f *fakeExecutor) ExecuteNext() error { f.nextCalled = true; return f.err }
func (f *fakeExecutor) ExecuteAll() error  { f.allCalled = true; return f.err }
func (f *fakeExecutor) ExecuteTodo(id int64) error {
	f.lastID = id
	return f.err
}

func TestExecuteFormsDelegateToExecutor(t *testing.T) {
	exec := &fakeExecutor{}
	in := &Interpreter{Todo: todo.New(), Exec: exec}

	out := in.Run("execute_next()")
	assert.True(t, exec.nextCalled)
	assert.Contains(t, out, "Executing next todo.")

	out = in.Run("execute_all()")
	assert.True(t, exec.allCalled)
	assert.Contains(t, out, "Executing all pending todos.")

	out = in.Run("execute_todo(5)")
	assert.Equal(t, int64(5), exec.lastID)
	assert.Contains(t, out, "Executing todo #5.")
}

func TestExecuteNextPropagatesFailure(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("boom")}
	in := &Interpreter{Todo: todo.New(), Exec: exec}

	out := in.Run("execute_next()")
	assert.Contains(t, out, "execute_next() failed: boom")
}

func TestRequestUserApproval(t *testing.T) {
	in := newInterpreter()
	out := in.Run(`request_user_approval("about to delete data")`)
	assert.Contains(t, out, "Pause requested: about to delete data")
}

func TestRunIsIdempotentOnPlainText(t *testing.T) {
	in := newInterpreter()
	out := in.Run("Just a normal reply, nothing to do.")
	assert.Equal(t, "Just a normal reply, nothing to do.", out)
}
