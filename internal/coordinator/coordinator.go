package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mandate-run/mandate/internal/conversation"
	"github.com/mandate-run/mandate/internal/executor"
	"github.com/mandate-run/mandate/internal/interpreter"
	"github.com/mandate-run/mandate/internal/logging"
	"github.com/mandate-run/mandate/internal/merrors"
	"github.com/mandate-run/mandate/internal/metrics"
	"github.com/mandate-run/mandate/internal/modelclient"
	"github.com/mandate-run/mandate/internal/policy"
	"github.com/mandate-run/mandate/internal/todo"
)

// defaultShellTimeoutMs is used when Config.ShellTimeoutMs is left at its
// zero value; 0 would otherwise disable CommandRunner's timeout wrap
// entirely (executor.CommandRunner.Execute treats 0 as "no timeout").
const defaultShellTimeoutMs = 120_000

// fileResultErr adapts executor.FileResult's string Error field to the
// error value metrics.RecordOperation expects.
func fileResultErr(success bool, msg string) error {
	if success {
		return nil
	}
	return errors.New(msg)
}

// ConfirmFunc prompts the user with three choices (yes/no/always) and
// returns their raw input; there is no timeout (spec.md §5).
type ConfirmFunc func(prompt string) string

// DisplayFunc surfaces one line of output to the user.
type DisplayFunc func(line string)

// pauseCheckInterval is the bounded sleep used while busy-waiting on a pause
// (spec.md §5: "on the order of 100 ms").
const pauseCheckInterval = 100 * time.Millisecond

// Config constructs a Coordinator.
type Config struct {
	Policy   *policy.Engine
	Todos    *todo.Store
	Model    *modelclient.Client
	Files    *executor.FileWriter
	Commands *executor.CommandRunner
	Convo    *conversation.Store
	Logger   *logging.Logger

	Confirm ConfirmFunc
	Display DisplayFunc

	// AllowInlineExecControl opts into the interpreter acting on
	// execute_next/execute_all/execute_todo calls embedded in chat text
	// (spec.md §9, Open Question c). Defaults to false.
	AllowInlineExecControl bool

	// ShellTimeoutMs bounds how long a single shell command may run before
	// it is killed (config.yaml's shell_timeout_ms). Zero falls back to
	// defaultShellTimeoutMs rather than disabling the timeout.
	ShellTimeoutMs int
}

// Coordinator binds the Policy Engine, Model Client, Response Interpreter,
// Todo Store, Conversation Store, and Operation Executors behind the
// single-threaded cooperative execution state machine of spec.md §4.8.
type Coordinator struct {
	policy   *policy.Engine
	todos    *todo.Store
	model    *modelclient.Client
	files    *executor.FileWriter
	commands *executor.CommandRunner
	convo    *conversation.Store
	logger   *logging.Logger
	interp   *interpreter.Interpreter

	confirm        ConfirmFunc
	display        DisplayFunc
	shellTimeoutMs int

	mu            sync.Mutex
	state         State
	chatMode      bool
	alwaysApprove bool
	providerName  string // internal adapter name: A/O/G/M

	shouldStop  atomic.Bool
	shouldPause atomic.Bool
}

// New constructs a Coordinator in the Stopped state with chat-mode on.
func New(cfg Config) *Coordinator {
	shellTimeoutMs := cfg.ShellTimeoutMs
	if shellTimeoutMs <= 0 {
		shellTimeoutMs = defaultShellTimeoutMs
	}
	c := &Coordinator{
		policy:         cfg.Policy,
		todos:          cfg.Todos,
		model:          cfg.Model,
		files:          cfg.Files,
		commands:       cfg.Commands,
		convo:          cfg.Convo,
		logger:         cfg.Logger,
		confirm:        cfg.Confirm,
		display:        cfg.Display,
		state:          StateStopped,
		chatMode:       true,
		providerName:   cfg.Model.ProviderName(),
		shellTimeoutMs: shellTimeoutMs,
	}
	c.interp = &interpreter.Interpreter{Todo: cfg.Todos}
	if cfg.AllowInlineExecControl {
		c.interp.Exec = c
	}
	return c
}

func (c *Coordinator) log(level logging.Level, category logging.Category, eventType, message string, details map[string]any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(level, category, eventType, message, details)
}

func (c *Coordinator) show(line string) {
	if c.display != nil {
		c.display(line)
	}
}

// State reports the current execution state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChatMode reports whether chat mode is currently on.
func (c *Coordinator) ChatMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatMode
}

// SetChatMode switches between chat mode and plan mode.
func (c *Coordinator) SetChatMode(on bool) {
	c.mu.Lock()
	c.chatMode = on
	c.mu.Unlock()
}

// AlwaysApprove reports whether the always-approve flag is set.
func (c *Coordinator) AlwaysApprove() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alwaysApprove
}

var friendlyProviderNames = map[string]string{
	"claude":  "A",
	"chatgpt": "O",
	"gemini":  "G",
	"mistral": "M",
}

// SetProvider switches the active adapter. Friendly names map to internal
// adapter names (spec.md §4.8); switching is permitted mid-session and the
// conversation history is preserved.
func (c *Coordinator) SetProvider(friendlyName string) error {
	internal, ok := friendlyProviderNames[strings.ToLower(friendlyName)]
	if !ok {
		return merrors.New(merrors.CodeConfiguration, "unknown provider: "+friendlyName)
	}

	var adapter modelclient.Adapter
	switch internal {
	case "A":
		adapter = modelclient.AnthropicAdapter{}
	case "O":
		adapter = modelclient.OpenAIAdapter{}
	case "G":
		adapter = modelclient.GoogleAdapter{}
	case "M":
		adapter = modelclient.MistralAdapter{}
	}

	c.model.SetProvider(adapter, "")
	c.mu.Lock()
	c.providerName = internal
	c.mu.Unlock()
	c.log(logging.LevelInfo, logging.CategoryCoordinator, "provider_switch", "switched provider", map[string]any{"provider": internal})
	return nil
}

// ProviderName returns the internal name of the currently active adapter.
func (c *Coordinator) ProviderName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providerName
}

// Conversations returns the Conversation Store so a caller (e.g. the CLI's
// /history and /session commands) can append and persist messages around
// Run calls; the Coordinator itself never mutates conversation history.
func (c *Coordinator) Conversations() *conversation.Store {
	return c.convo
}

// Todos returns the Todo Store, e.g. for a CLI's /todo command.
func (c *Coordinator) Todos() *todo.Store {
	return c.todos
}

// Pause transitions Running -> Paused, setting should_pause. A no-op with a
// diagnostic from any other state.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return merrors.New(merrors.CodeInvalidArgument, "pause has no effect in state "+string(c.state))
	}
	c.shouldPause.Store(true)
	c.state = StatePaused
	return nil
}

// Resume transitions Paused -> Running, clearing should_pause.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return merrors.New(merrors.CodeInvalidArgument, "resume has no effect in state "+string(c.state))
	}
	c.shouldPause.Store(false)
	c.state = StateRunning
	return nil
}

// Stop transitions Running or Paused -> Stopped, setting should_stop. The
// loop exits at its next check point; the in-flight item runs to
// completion.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning && c.state != StatePaused {
		return merrors.New(merrors.CodeInvalidArgument, "stop has no effect in state "+string(c.state))
	}
	c.shouldStop.Store(true)
	c.shouldPause.Store(false)
	c.state = StateStopped
	c.log(logging.LevelInfo, logging.CategoryCoordinator, "stop", "execution stopped", nil)
	return nil
}

// Cancel transitions Running or Paused -> Cancelled, setting should_stop;
// the batch is aborted rather than completed.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning && c.state != StatePaused {
		return merrors.New(merrors.CodeInvalidArgument, "cancel has no effect in state "+string(c.state))
	}
	c.shouldStop.Store(true)
	c.shouldPause.Store(false)
	c.state = StateCancelled
	return nil
}

func (c *Coordinator) beginRun() {
	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()
	c.shouldStop.Store(false)
	c.shouldPause.Store(false)
}

func (c *Coordinator) endRun(finalState State) {
	c.mu.Lock()
	if c.state == StateRunning {
		c.state = finalState
	}
	c.mu.Unlock()
}

// waitWhilePaused busy-waits on a short bounded sleep until should_pause is
// cleared or should_stop is requested.
func (c *Coordinator) waitWhilePaused() {
	for c.shouldPause.Load() && !c.shouldStop.Load() {
		time.Sleep(pauseCheckInterval)
	}
}

// Run implements the top-level flow (spec.md §4.8): chat mode feeds the
// model's reply through the Response Interpreter; plan mode validates,
// previews, confirms, and applies a single structured operation.
func (c *Coordinator) Run(userText string) (string, error) {
	if c.ChatMode() {
		return c.runChatMode(userText)
	}
	return "", c.runPlanMode(userText)
}

func (c *Coordinator) runChatMode(userText string) (string, error) {
	reply, err := c.model.Chat(userText)
	if err != nil {
		c.show("Error: " + err.Error())
		c.log(logging.LevelError, logging.CategoryModel, "chat_error", err.Error(), nil)
		return "", err
	}

	rewritten := c.interp.Run(reply)
	c.show(rewritten)

	if next := c.todos.NextPending(); next != nil {
		c.show("Pending todos: use /do all, /do next, /do <id>, /do <start>-<end>, or /do until <id>.")
	}

	return reply, nil
}

func (c *Coordinator) runPlanMode(userText string) error {
	plan, err := c.model.Plan(userText)
	if err != nil {
		c.show("Error: " + err.Error())
		c.log(logging.LevelError, logging.CategoryModel, "plan_error", err.Error(), nil)
		return err
	}

	switch plan.Command {
	case "write":
		return c.runFilePlan(plan.Path, plan.Content)
	case "run":
		return c.runCommandPlan(plan.Content)
	default:
		msg := "unrecognized command token: " + plan.Command
		c.show("Error: " + msg)
		c.log(logging.LevelWarn, logging.CategoryModel, "plan_unrecognized_command", msg, map[string]any{"command": plan.Command})
		return merrors.New(merrors.CodeParse, msg)
	}
}

func (c *Coordinator) runFilePlan(path, content string) error {
	if strings.TrimSpace(path) == "" {
		c.show("Error: plan has an empty path")
		return merrors.New(merrors.CodeInvalidArgument, "empty path in plan")
	}
	if !c.policy.Allowed("file-tool", policy.OpCreate, path) {
		c.show("Policy Denied: write to " + path + " is not permitted")
		metrics.RecordDenial("file-tool")
		c.log(logging.LevelWarn, logging.CategoryPolicy, "file_write_denied", "write denied for "+path, map[string]any{"path": path})
		return merrors.New(merrors.CodePolicyDenial, "write denied for "+path)
	}

	preview := c.files.DryRun(path, content)
	if !preview.Success {
		c.show("Dry run failed: " + preview.Error)
		c.log(logging.LevelError, logging.CategoryExecutor, "file_dry_run_failed", preview.Error, map[string]any{"path": path})
		return merrors.New(merrors.CodeIoFailure, preview.Error)
	}
	c.show(preview.Description)

	if !c.confirmOperation("file-tool", policy.OpCreate) {
		c.show("Operation cancelled")
		return nil
	}

	result := c.files.Apply(path, content)
	metrics.RecordOperation("file-tool", fileResultErr(result.Success, result.Error))
	if !result.Success {
		c.show("Error: " + result.Error)
		c.log(logging.LevelError, logging.CategoryExecutor, "file_apply_failed", result.Error, map[string]any{"path": path})
		return merrors.New(merrors.CodeIoFailure, result.Error)
	}
	c.show(result.Description)
	return nil
}

func (c *Coordinator) runCommandPlan(command string) error {
	allowed, reason := c.policy.CommandAllowed(command)
	if !allowed {
		c.show("Policy Denied: " + reason)
		metrics.RecordDenial("command-tool")
		c.log(logging.LevelWarn, logging.CategoryPolicy, "command_denied", reason, map[string]any{"command": command})
		return merrors.New(merrors.CodePolicyDenial, reason)
	}
	c.show("will run: " + command)

	if !c.confirmOperation("command-tool", policy.OpCreate) {
		c.show("Operation cancelled")
		return nil
	}

	result := c.commands.Execute(context.Background(), command, c.shellTimeoutMs)
	if result.Refused {
		c.show("Policy Denied: " + result.RefusalMsg)
		metrics.RecordDenial("command-tool")
		c.log(logging.LevelWarn, logging.CategoryPolicy, "command_refused", result.RefusalMsg, map[string]any{"command": command})
		return merrors.New(merrors.CodePolicyDenial, result.RefusalMsg)
	}
	metrics.RecordOperation("command-tool", result.Err)
	if result.Err != nil {
		c.show("Error: " + result.Err.Error())
		c.log(logging.LevelError, logging.CategoryExecutor, "command_execution_failed", result.Err.Error(), map[string]any{"command": command})
		return merrors.Wrap(result.Err, merrors.CodeIoFailure, "command execution failed")
	}
	c.show(result.Stdout)
	return nil
}

// confirmOperation applies the always-approve flag, the policy's
// confirmation-required flag, and (if needed) prompts the user with the
// three plan-mode choices (spec.md §4.8): "a"/"A" sets always-approve and
// implicitly confirms; "y"/"Y" confirms once; anything else cancels.
func (c *Coordinator) confirmOperation(tool string, op policy.Operation) bool {
	if c.AlwaysApprove() {
		return true
	}
	if !c.policy.ConfirmationRequired(tool, op) {
		return true
	}
	if c.confirm == nil {
		return true
	}

	choice := strings.TrimSpace(c.confirm("Apply? [y/n/a] "))
	switch choice {
	case "a", "A":
		c.mu.Lock()
		c.alwaysApprove = true
		c.mu.Unlock()
		return true
	case "y", "Y":
		return true
	default:
		return false
	}
}

// ExecuteAll drains the full pending execution queue.
func (c *Coordinator) ExecuteAll() error {
	return c.runBatch(c.todos.ExecutionQueue())
}

// ExecuteNext executes only the earliest pending item.
func (c *Coordinator) ExecuteNext() error {
	next := c.todos.NextPending()
	if next == nil {
		return nil
	}
	return c.runBatch([]todo.Item{*next})
}

// ExecuteTodo executes a single todo by id, if it is pending.
func (c *Coordinator) ExecuteTodo(id int64) error {
	item := c.todos.Get(id)
	if item == nil || item.Status != todo.StatusPending {
		return merrors.New(merrors.CodeInvalidArgument, fmt.Sprintf("todo #%d is not pending", id))
	}
	return c.runBatch([]todo.Item{*item})
}

// ExecuteUntil executes the pending queue up to (exclusive) stopID.
func (c *Coordinator) ExecuteUntil(stopID int64) error {
	return c.runBatch(c.todos.Until(stopID))
}

// ExecuteRange executes the pending queue from startID through endID
// inclusive.
func (c *Coordinator) ExecuteRange(startID, endID int64) error {
	return c.runBatch(c.todos.Range(startID, endID))
}

// runBatch iterates the given queue slice under the Running state, honoring
// should_stop/should_pause at well-defined check points (spec.md §4.8, §5).
func (c *Coordinator) runBatch(items []todo.Item) error {
	c.beginRun()
	defer c.endRun(StateStopped)

	for _, item := range items {
		if c.shouldStop.Load() {
			break
		}
		c.waitWhilePaused()
		if c.shouldStop.Load() {
			break
		}

		inProgress := todo.StatusInProgress
		c.todos.Update(item.ID, todo.Update{Status: &inProgress})
		metrics.RefreshTodoQueueDepth(c.todos)

		err := c.runItem(item)
		if err != nil {
			c.show(fmt.Sprintf("item #%d failed: %v", item.ID, err))
			c.log(logging.LevelError, logging.CategoryTodo, "item_failed", err.Error(), map[string]any{"id": item.ID})
			// Open question (a): completion is conditional on executor
			// success; a failed item stays in-progress (visible) and the
			// batch stops rather than silently continuing.
			break
		}

		completed := todo.StatusCompleted
		c.todos.Update(item.ID, todo.Update{Status: &completed})
		metrics.RefreshTodoQueueDepth(c.todos)
	}
	return nil
}

// runItem classifies and routes one todo item (spec.md §4.8).
func (c *Coordinator) runItem(item todo.Item) error {
	text := item.Title
	if item.Description != "" {
		text = text + " " + item.Description
	}

	if isShellCommandItem(text) {
		return c.runShellItem(text)
	}
	return c.runFileItem(text)
}

func (c *Coordinator) runShellItem(text string) error {
	command := extractCommand(text)
	allowed, reason := c.policy.CommandAllowed(command)
	if !allowed {
		metrics.RecordDenial("command-tool")
		c.log(logging.LevelWarn, logging.CategoryPolicy, "command_denied", reason, map[string]any{"command": command})
		return merrors.New(merrors.CodePolicyDenial, reason)
	}

	result := c.commands.Execute(context.Background(), command, c.shellTimeoutMs)
	if result.Refused {
		metrics.RecordDenial("command-tool")
		c.log(logging.LevelWarn, logging.CategoryPolicy, "command_refused", result.RefusalMsg, map[string]any{"command": command})
		return merrors.New(merrors.CodePolicyDenial, result.RefusalMsg)
	}
	metrics.RecordOperation("command-tool", result.Err)
	if result.Err != nil {
		c.log(logging.LevelError, logging.CategoryExecutor, "command_execution_failed", result.Err.Error(), map[string]any{"command": command})
		return merrors.Wrap(result.Err, merrors.CodeIoFailure, "command execution failed")
	}
	c.show(result.Stdout)
	return nil
}

func (c *Coordinator) runFileItem(text string) error {
	wasChatMode := c.ChatMode()
	c.SetChatMode(false)
	defer c.SetChatMode(wasChatMode)

	plan, err := c.model.Plan(text)
	if err != nil {
		c.log(logging.LevelError, logging.CategoryModel, "plan_error", err.Error(), nil)
		return err
	}
	if strings.TrimSpace(plan.Path) == "" {
		return merrors.New(merrors.CodeInvalidArgument, "plan has an empty path")
	}
	if !c.policy.Allowed("file-tool", policy.OpCreate, plan.Path) {
		metrics.RecordDenial("file-tool")
		c.log(logging.LevelWarn, logging.CategoryPolicy, "file_write_denied", "write denied for "+plan.Path, map[string]any{"path": plan.Path})
		return merrors.New(merrors.CodePolicyDenial, "write denied for "+plan.Path)
	}

	preview := c.files.DryRun(plan.Path, plan.Content)
	if !preview.Success {
		c.log(logging.LevelError, logging.CategoryExecutor, "file_dry_run_failed", preview.Error, map[string]any{"path": plan.Path})
		return merrors.New(merrors.CodeIoFailure, preview.Error)
	}
	c.show(preview.Description)

	result := c.files.Apply(plan.Path, plan.Content)
	metrics.RecordOperation("file-tool", fileResultErr(result.Success, result.Error))
	if !result.Success {
		c.log(logging.LevelError, logging.CategoryExecutor, "file_apply_failed", result.Error, map[string]any{"path": plan.Path})
		return merrors.New(merrors.CodeIoFailure, result.Error)
	}
	c.show(result.Description)
	return nil
}
