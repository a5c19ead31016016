// Command mandate is the natural-language command execution assistant
// described by spec.md: a REPL (or one-shot invocation) that turns free
// text into model-proposed operations, validates them against policy,
// previews them, and applies them only with the user's consent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mandate-run/mandate/internal/boundary"
	"github.com/mandate-run/mandate/internal/config"
	"github.com/mandate-run/mandate/internal/conversation"
	"github.com/mandate-run/mandate/internal/coordinator"
	"github.com/mandate-run/mandate/internal/display"
	"github.com/mandate-run/mandate/internal/executor"
	"github.com/mandate-run/mandate/internal/logging"
	"github.com/mandate-run/mandate/internal/metrics"
	"github.com/mandate-run/mandate/internal/modelclient"
	"github.com/mandate-run/mandate/internal/policy"
	"github.com/mandate-run/mandate/internal/todo"
)

var friendlyProviderFlags = map[string]bool{
	"gemini": true, "chatgpt": true, "claude": true, "mistral": true,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("mandate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	provider := fs.String("provider", "", "model provider: gemini | chatgpt | claude | mistral")
	help := fs.Bool("help", false, "show usage")
	fs.BoolVar(help, "h", false, "show usage (shorthand)")
	if err := fs.Parse(args); err != nil {
		return exitRecoverable
	}
	if *help {
		printUsage(stdout)
		return exitOK
	}
	if *provider != "" && !friendlyProviderFlags[strings.ToLower(*provider)] {
		fmt.Fprintf(stderr, "unknown provider %q: expected one of gemini, chatgpt, claude, mistral\n", *provider)
		return exitRecoverable
	}

	app, err := bootstrap(*provider, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfiguration
	}
	defer app.Close()

	oneShot := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if oneShot != "" {
		return app.runOneShot(oneShot)
	}
	return app.runInteractive()
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, "usage: mandate [--provider=<gemini|chatgpt|claude|mistral>] [--help] [free text...]")
	fmt.Fprintln(out, "with no free text, starts the interactive shell.")
}

// app bundles everything wired from Config that the CLI surfaces need.
type app struct {
	coord      *coordinator.Coordinator
	convo      *conversation.Store
	display    *display.Writer
	editor     *boundary.TerminalLineEditor
	logger     *logging.Logger
	policy     *policy.Engine
	metricsSrv *metrics.Server
	metricsCtx context.CancelFunc
}

func bootstrap(providerFlag string, stdout *os.File) (*app, error) {
	root := config.ResolveProjectRoot()
	stateDir := config.StateDir(root)

	cfg, err := config.Load(filepath.Join(root, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	policyEngine, err := policy.Load(filepath.Join(stateDir, "policy.json"))
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	if err := policyEngine.WatchReload(); err != nil {
		return nil, fmt.Errorf("watching policy file: %w", err)
	}

	logger, err := logging.New(stateDir)
	if err != nil {
		return nil, fmt.Errorf("opening logs: %w", err)
	}

	convoStore := conversation.NewStore(filepath.Join(stateDir, "conversations"))

	adapter, err := resolveAdapter(providerFlag, cfg.DefaultProvider)
	if err != nil {
		return nil, err
	}

	client := modelclient.NewClient(adapter, boundary.NewNetHTTPDoer(0), modelclient.SummarizePolicy(policyEngine), logger, 2)

	dw := display.New(stdout, cfg.ColorOverride)

	editor, err := boundary.NewTerminalLineEditor(filepath.Join(stateDir, "history"))
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	coord := coordinator.New(coordinator.Config{
		Policy:         policyEngine,
		Todos:          todo.New(),
		Model:          client,
		Files:          &executor.FileWriter{Root: root},
		Commands:       executor.NewCommandRunner(root),
		Convo:          convoStore,
		Logger:         logger,
		Confirm:        func(prompt string) string { return promptLine(editor, prompt) },
		Display:        dw.Line,
		ShellTimeoutMs: cfg.ShellTimeoutMs,
	})

	a := &app{
		coord:   coord,
		convo:   convoStore,
		display: dw,
		editor:  editor,
		logger:  logger,
		policy:  policyEngine,
	}

	if strings.TrimSpace(cfg.MetricsAddr) != "" {
		srv, err := metrics.New(cfg.MetricsAddr, policyEngine)
		if err == nil {
			ctx, cancel := context.WithCancel(context.Background())
			a.metricsSrv = srv
			a.metricsCtx = cancel
			go func() { _ = srv.Serve(ctx) }()
		}
	}

	return a, nil
}

func resolveAdapter(providerFlag, defaultProvider string) (modelclient.Adapter, error) {
	friendly := strings.ToLower(strings.TrimSpace(providerFlag))
	if friendly == "" {
		friendly = strings.ToLower(strings.TrimSpace(defaultProvider))
	}
	switch friendly {
	case "claude":
		return modelclient.AnthropicAdapter{}, nil
	case "chatgpt":
		return modelclient.OpenAIAdapter{}, nil
	case "gemini":
		return modelclient.GoogleAdapter{}, nil
	case "mistral":
		return modelclient.MistralAdapter{}, nil
	default:
		return modelclient.DetectProvider()
	}
}

func promptLine(editor *boundary.TerminalLineEditor, prompt string) string {
	line, err := editor.ReadLine(prompt)
	if err != nil {
		return "n"
	}
	return line
}

func (a *app) Close() {
	if a.metricsCtx != nil {
		a.metricsCtx()
	}
	_ = a.convo.Teardown()
	_ = a.editor.Close()
	_ = a.logger.Close()
	_ = a.policy.Close()
}

func (a *app) runOneShot(text string) int {
	a.convo.Current().AddUserMessage(text)
	reply, err := a.coord.Run(text)
	if err != nil {
		a.display.Status("Error: " + err.Error())
		return exitRecoverable
	}
	if reply != "" {
		a.convo.Current().AddAssistantMessage(reply, a.coord.ProviderName())
	}
	return exitOK
}

func (a *app) runInteractive() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return exitOK
		default:
		}

		line, err := a.editor.ReadLine("mandate> ")
		if err != nil {
			return exitOK
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			code, shouldExit := a.dispatchSlashCommand(line)
			if shouldExit {
				return code
			}
			continue
		}

		a.convo.Current().AddUserMessage(line)
		reply, err := a.coord.Run(line)
		if err != nil {
			a.display.Status("Error: " + err.Error())
			continue
		}
		if reply != "" {
			a.convo.Current().AddAssistantMessage(reply, a.coord.ProviderName())
		}
	}
}
