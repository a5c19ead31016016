package main

import (
	"fmt"
	"strconv"
	"strings"
)

// dispatchSlashCommand handles one interactive-shell slash command
// (spec.md §6). Returns the process exit code and whether the shell should
// terminate.
func (a *app) dispatchSlashCommand(line string) (int, bool) {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := fields[1:]

	switch cmd {
	case "/help", "/h":
		a.printHelp()
	case "/status":
		a.printStatus()
	case "/debug":
		a.printDebug()
	case "/todo":
		a.printTodos()
	case "/do":
		a.handleDo(rest)
	case "/pause":
		a.reportControlErr(a.coord.Pause())
	case "/resume":
		a.reportControlErr(a.coord.Resume())
	case "/stop":
		a.reportControlErr(a.coord.Stop())
	case "/cancel":
		a.reportControlErr(a.coord.Cancel())
	case "/history":
		a.printHistory()
	case "/session":
		a.handleSession(rest)
	case "/gemini", "/claude", "/chatgpt", "/mistral":
		a.reportControlErr(a.coord.SetProvider(strings.TrimPrefix(cmd, "/")))
	case "/exit", "/quit", "/q":
		return exitOK, true
	default:
		a.display.Status("Error: unrecognized command " + cmd)
	}
	return exitOK, false
}

func (a *app) reportControlErr(err error) {
	if err != nil {
		a.display.Status("Error: " + err.Error())
	}
}

func (a *app) printHelp() {
	a.display.Line(strings.Join([]string{
		"/help, /h                        show this help",
		"/status                          show coordinator state and provider",
		"/debug                           show policy command lists",
		"/todo                             list todos",
		"/do [all|next|until <id>|<a>-<b>|<id>]  execute queued todos",
		"/pause /resume /stop /cancel     execution control",
		"/history                         show the active conversation",
		"/session [list|new|load <id>]    manage sessions",
		"/gemini /claude /chatgpt /mistral  switch provider",
		"/exit /quit /q                   leave the shell",
	}, "\n"))
}

func (a *app) printStatus() {
	a.display.Line(fmt.Sprintf("state: %s  provider: %s  chat-mode: %v  always-approve: %v",
		a.coord.State(), a.coord.ProviderName(), a.coord.ChatMode(), a.coord.AlwaysApprove()))
}

func (a *app) printDebug() {
	a.display.Line(fmt.Sprintf("allowed commands: %v", a.policy.AllowedCommands()))
	a.display.Line(fmt.Sprintf("blocked commands: %v", a.policy.BlockedCommands()))
}

func (a *app) printTodos() {
	items := a.coord.Todos().List(true)
	if len(items) == 0 {
		a.display.Dim("no todos")
		return
	}
	for _, item := range items {
		a.display.Line(fmt.Sprintf("#%d [%s] %s", item.ID, item.Status, item.Title))
	}
}

func (a *app) handleDo(args []string) {
	if len(args) == 0 {
		a.reportControlErr(a.coord.ExecuteNext())
		return
	}

	switch args[0] {
	case "all":
		a.reportControlErr(a.coord.ExecuteAll())
	case "next":
		a.reportControlErr(a.coord.ExecuteNext())
	case "until":
		if len(args) < 2 {
			a.display.Status("Error: /do until requires an id")
			return
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			a.display.Status("Error: invalid id " + args[1])
			return
		}
		a.reportControlErr(a.coord.ExecuteUntil(id))
	default:
		if start, end, ok := parseRange(args[0]); ok {
			a.reportControlErr(a.coord.ExecuteRange(start, end))
			return
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			a.display.Status("Error: invalid /do argument " + args[0])
			return
		}
		a.reportControlErr(a.coord.ExecuteTodo(id))
	}
}

func parseRange(token string) (int64, int64, bool) {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err1 := strconv.ParseInt(parts[0], 10, 64)
	end, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

func (a *app) printHistory() {
	for _, msg := range a.convo.Current().History() {
		a.display.Line(fmt.Sprintf("[%s] %s", msg.Role, msg.Content))
	}
}

func (a *app) handleSession(args []string) {
	if len(args) == 0 {
		a.display.Status("Error: /session requires list, new, or load <id>")
		return
	}

	switch args[0] {
	case "list":
		summaries, err := a.convo.List()
		if err != nil {
			a.display.Status("Error: " + err.Error())
			return
		}
		for _, s := range summaries {
			a.display.Line(s.SessionID)
		}
	case "new":
		if _, err := a.convo.StartNew(); err != nil {
			a.display.Status("Error: " + err.Error())
		}
	case "load":
		if len(args) < 2 {
			a.display.Status("Error: /session load requires an id")
			return
		}
		if _, err := a.convo.Load(args[1]); err != nil {
			a.display.Status("Error: " + err.Error())
		}
	default:
		a.display.Status("Error: unrecognized /session argument " + args[0])
	}
}
