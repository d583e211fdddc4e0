// Command agentcli is a minimal demo REPL wiring the C1-C8 components
// together: a YAML-configured provider set, the built-in and MCP-bridged
// tool registry, permission checks, and one orchestrator session per
// process. It exists to exercise the kernel end to end, not as a
// production CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kestrelrun/agentkernel/internal/version"
	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/builtin"
	"github.com/kestrelrun/agentkernel/kernel/execenv"
	"github.com/kestrelrun/agentkernel/kernel/mcp"
	"github.com/kestrelrun/agentkernel/kernel/orchestrator"
	"github.com/kestrelrun/agentkernel/kernel/permission"
	"github.com/kestrelrun/agentkernel/kernel/provider"
	"github.com/kestrelrun/agentkernel/kernel/session"
	"github.com/kestrelrun/agentkernel/kernel/session/filestore"
	"github.com/kestrelrun/agentkernel/kernel/session/inmemory"
	"github.com/kestrelrun/agentkernel/kernel/session/sqlitestore"
	"github.com/kestrelrun/agentkernel/kernel/skills"
	"github.com/kestrelrun/agentkernel/kernel/tool"
)

func main() {
	configPath := flag.String("config", "agentcli.yaml", "path to the YAML config file")
	sessionID := flag.String("session", "", "resume an existing session id instead of starting fresh")
	showVersion := flag.Bool("version", false, "print version info and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := run(*configPath, *sessionID, logger); err != nil {
		fmt.Fprintln(os.Stderr, "agentcli:", err)
		os.Exit(1)
	}
}

func run(configPath, resumeID string, logger *slog.Logger) error {
	cfg, err := loadFileConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.WorkingDir != "" {
		if err := os.Chdir(cfg.WorkingDir); err != nil {
			return fmt.Errorf("agentcli: chdir %q: %w", cfg.WorkingDir, err)
		}
	}

	factory, err := cfg.providerFactory()
	if err != nil {
		return err
	}
	modelAlias := cfg.defaultModelFor()
	if modelAlias == "" {
		return fmt.Errorf("agentcli: no provider alias configured")
	}
	prov, err := factory.NewByAlias(modelAlias)
	if err != nil {
		return err
	}

	agentCfg := cfg.agentConfig()
	permissions := permission.NewEngine()

	registry := tool.NewRegistry()
	if err := registerBuiltins(registry, permissions, agentCfg.PermissionConfig()); err != nil {
		return err
	}

	skillMetas := skills.DiscoverMeta([]string{filepath.Join(".", "skills")})
	for _, w := range skillMetas.Warnings {
		logger.Warn("skill discovery", "error", w)
	}
	if err := registry.Register(skills.NewTool(skillMetas.Metas)); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	specs := cfg.mcpServerSpecs()
	if len(specs) > 0 {
		manager := mcp.NewManager(registry, logger)
		if err := manager.ConnectAll(ctx, specs); err != nil {
			logger.Warn("mcp connect", "error", err)
		}
		defer manager.DisconnectAll()
	}

	store, closeStore, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	editor, err := newLineEditor(historyFilePath())
	if err != nil {
		return err
	}
	defer editor.Close()
	out := editor.Output()

	sess, err := orchestrator.New(orchestrator.Config{
		ID:          resumeID,
		Agent:       agentCfg,
		Provider:    prov,
		Tools:       registry,
		Permissions: permissions,
		Store:       store,
		Logger:      logger,
		AgentConfigs: map[agent.Type]agent.Config{
			agentCfg.Type: agentCfg,
		},
		QuestionHandler: func(ctx context.Context, info tool.QuestionInfo) (tool.QuestionResponse, error) {
			return askQuestions(editor, info)
		},
		OnStream: func(ev *provider.StreamEvent) {
			if ev.Type == provider.EventTextDelta {
				fmt.Fprint(out, ev.Text)
			}
		},
		OnToolStart: func(ev orchestrator.ToolStartEvent) {
			fmt.Fprintf(out, "\n[tool] %s starting...\n", ev.ToolName)
		},
		OnToolComplete: func(ev orchestrator.ToolCompleteEvent) {
			status := "ok"
			if ev.Result.IsError {
				status = "error"
			}
			fmt.Fprintf(out, "[tool] %s finished (%s, %s)\n", ev.ToolName, status, ev.Duration.Round(time.Millisecond))
		},
		OnComplete: func(info orchestrator.FinishInfo) {
			fmt.Fprintln(out)
		},
		OnError: func(err error) {
			fmt.Fprintf(out, "\n[error] %v\n", err)
		},
	})
	if err != nil {
		return err
	}

	if resumeID != "" {
		snap, err := store.Load(ctx, resumeID)
		if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			return err
		}
		if err == nil {
			sess.Restore(snap)
		}
	}

	return repl(ctx, sess, editor)
}

// registerBuiltins wires the six mandatory built-ins, plus question and
// task, into registry. bash
// gets its own execenv.Runtime built against the same permission engine
// (and the agent's permission policy) the orchestrator checks every
// other tool call against, so a risky shell command escalates to the
// same Ask flow instead of a separate approval path.
func registerBuiltins(registry *tool.Registry, permissions *permission.Engine, permCfg permission.Config) error {
	tools := []tool.Tool{}

	read, err := builtin.NewRead(builtin.DefaultReadConfig())
	if err != nil {
		return err
	}
	write, err := builtin.NewWrite()
	if err != nil {
		return err
	}
	edit, err := builtin.NewEdit()
	if err != nil {
		return err
	}
	glob, err := builtin.NewGlob()
	if err != nil {
		return err
	}
	grep, err := builtin.NewGrep()
	if err != nil {
		return err
	}
	bashRuntime, err := execenv.New(execenv.Config{
		Permissions:      permissions,
		PermissionConfig: permCfg,
	})
	if err != nil {
		return err
	}
	bash, err := builtin.NewBash(builtin.BashConfig{Runtime: bashRuntime})
	if err != nil {
		return err
	}
	tools = append(tools, read, write, edit, glob, grep, bash, builtin.NewQuestion(), builtin.NewTask())

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func openSessionStore(cfg fileConfig) (session.Store, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SessionStore)) {
	case "", "memory":
		return inmemory.New(), nil, nil
	case "file":
		path := cfg.SessionPath
		if path == "" {
			path = filepath.Join(defaultDataDir(), "sessions")
		}
		st, err := filestore.New(path)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	case "sqlite":
		path := cfg.SessionPath
		if path == "" {
			path = filepath.Join(defaultDataDir(), "sessions.db")
		}
		st, err := sqlitestore.New(path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("agentcli: unknown session_store %q", cfg.SessionStore)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentcli"
	}
	return filepath.Join(home, ".agentcli")
}

func historyFilePath() string {
	return filepath.Join(defaultDataDir(), "history")
}

func askQuestions(editor lineEditor, info tool.QuestionInfo) (tool.QuestionResponse, error) {
	answers := make([]string, 0, len(info.Questions))
	for _, q := range info.Questions {
		line, err := editor.ReadLine(q + " > ")
		if err != nil {
			if errors.Is(err, errInputInterrupt) {
				return tool.QuestionResponse{Cancelled: true}, nil
			}
			return tool.QuestionResponse{}, err
		}
		answers = append(answers, line)
	}
	return tool.QuestionResponse{Answers: answers}, nil
}

// repl reads one line at a time and waits for each turn to finish before
// reading the next. The turn itself runs on its own goroutine (Session.Prompt
// returns immediately) so a SIGINT/SIGTERM delivered mid-turn still reaches
// Session.Cancel through ctx, instead of only being observable once the
// blocking editor read resumes.
func repl(ctx context.Context, sess *orchestrator.Session, editor lineEditor) error {
	go func() {
		<-ctx.Done()
		sess.Cancel()
	}()

	for {
		line, err := editor.ReadLine("> ")
		if err != nil {
			if errors.Is(err, errInputEOF) || errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, errInputInterrupt) {
				sess.Cancel()
				continue
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			return nil
		}
		if err := sess.Prompt(ctx, line); err != nil {
			fmt.Fprintf(editor.Output(), "[error] %v\n", err)
			continue
		}
		if err := sess.Wait(ctx); err != nil && !errors.Is(err, orchestrator.ErrCancelled) && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(editor.Output(), "[error] %v\n", err)
		}
	}
}
