// Package execenv is the tool-execution boundary kernel/builtin's
// filesystem and shell tools run through. It has two jobs: give tools a
// FileSystem/CommandRunner pair instead of touching os/exec directly, and
// decide whether a shell command needs the same Allow/Ask/Deny approval
// every other tool call goes through.
//
// That second job used to be a private approval concept (an
// ApprovalRequiredError plus a context-injected Approver) that ran
// alongside, but never talked to, kernel/permission's Ask flow. DecideRoute
// now returns a permission.Permission directly: a bash tool wired against
// a Runtime built with Permissions set answers to the exact same
// Allow/Ask/Deny lattice, cached in the same Engine, as every other tool
// dispatched by the orchestrator.
package execenv

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kestrelrun/agentkernel/kernel/permission"
)

// PermissionMode is the coarse execution posture a Runtime is built with.
type PermissionMode string

const (
	// PermissionModeDefault means shell commands are subject to
	// DecideRoute's Allow/Ask/Deny evaluation.
	PermissionModeDefault PermissionMode = "default"
	// PermissionModeFullControl means every command runs unattended —
	// used for the demo CLI and for tests, never a safe default for an
	// untrusted caller.
	PermissionModeFullControl PermissionMode = "full_control"
)

// CommandRequest is one command execution request.
type CommandRequest struct {
	Command     string
	Dir         string
	Timeout     time.Duration
	IdleTimeout time.Duration
}

// CommandResult is one command execution result.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner executes shell commands for tools.
type CommandRunner interface {
	Run(context.Context, CommandRequest) (CommandResult, error)
}

// FileSystem defines the file operations kernel/builtin's read/write/edit/
// glob/grep tools need, kept as an interface so tests can substitute a
// fake without touching the real filesystem.
type FileSystem interface {
	Getwd() (string, error)
	UserHomeDir() (string, error)
	Open(path string) (*os.File, error)
	ReadDir(path string) ([]os.DirEntry, error)
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Glob(pattern string) ([]string, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
}

// CommandDecision is the verdict DecideRoute reaches for one shell
// command, expressed directly in kernel/permission's lattice.
type CommandDecision struct {
	Permission permission.Permission
	Reason     string
}

// Config builds a Runtime.
type Config struct {
	PermissionMode PermissionMode
	// SafeCommands names base commands (e.g. "ls", "cat") that DecideRoute
	// allows unattended outside PermissionModeFullControl when no
	// permission engine is configured. With an engine configured, the
	// engine's answer applies to every command, safe or not.
	SafeCommands []string

	// Permissions and PermissionConfig, when both set, make DecideRoute
	// consult the same engine and per-agent policy the orchestrator
	// checks for every other tool id, under the tool id "bash". Left
	// nil, DecideRoute falls back to PermissionMode and SafeCommands
	// (Allow in full-control or for a safe command, Ask otherwise).
	Permissions      *permission.Engine
	PermissionConfig permission.Config

	FileSystem FileSystem
	HostRunner CommandRunner
}

// Runtime exposes tool-execution primitives and the command-approval
// policy derived from them.
type Runtime interface {
	PermissionMode() PermissionMode
	FileSystem() FileSystem
	HostRunner() CommandRunner
	SafeCommands() []string
	// DecideRoute evaluates whether command may run unattended.
	DecideRoute(command string) CommandDecision
}

const bashPermissionToolID = "bash"

type runtimeImpl struct {
	permissionMode PermissionMode
	fs             FileSystem
	hostRunner     CommandRunner
	safeCommands   []string
	permissions    *permission.Engine
	permissionCfg  permission.Config
}

func (r *runtimeImpl) PermissionMode() PermissionMode { return r.permissionMode }
func (r *runtimeImpl) FileSystem() FileSystem         { return r.fs }
func (r *runtimeImpl) HostRunner() CommandRunner      { return r.hostRunner }

func (r *runtimeImpl) SafeCommands() []string {
	return append([]string(nil), r.safeCommands...)
}

func (r *runtimeImpl) DecideRoute(command string) CommandDecision {
	if r.permissionMode == PermissionModeFullControl {
		return CommandDecision{Permission: permission.Allow}
	}
	if r.permissions == nil {
		if isAllowedCommand(baseCommand(command), r.safeCommands) {
			return CommandDecision{Permission: permission.Allow, Reason: "safe command allowlist"}
		}
		return CommandDecision{Permission: permission.Ask, Reason: "no permission engine configured"}
	}
	decision := r.permissions.Check(bashPermissionToolID, r.permissionCfg)
	reason := ""
	if decision == permission.Deny {
		reason = "denied by bash tool permission policy"
	}
	return CommandDecision{Permission: decision, Reason: reason}
}

// New builds a Runtime. Absent FileSystem/HostRunner it constructs the
// real host implementations.
func New(cfg Config) (Runtime, error) {
	mode := cfg.PermissionMode
	if mode == "" {
		mode = PermissionModeDefault
	}
	if mode != PermissionModeDefault && mode != PermissionModeFullControl {
		return nil, fmt.Errorf("execenv: invalid permission mode %q", mode)
	}

	filesystem := cfg.FileSystem
	if filesystem == nil {
		filesystem = newHostFileSystem()
	}
	hostRunner := cfg.HostRunner
	if hostRunner == nil {
		hostRunner = newHostRunner()
	}

	safeCommands := append([]string(nil), cfg.SafeCommands...)
	if len(safeCommands) == 0 {
		safeCommands = defaultSafeCommands()
	}

	return &runtimeImpl{
		permissionMode: mode,
		fs:             filesystem,
		hostRunner:     hostRunner,
		safeCommands:   safeCommands,
		permissions:    cfg.Permissions,
		permissionCfg:  cfg.PermissionConfig,
	}, nil
}

func baseCommand(command string) string {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 {
		return ""
	}
	base := fields[0]
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	return base
}

func isAllowedCommand(base string, allowlist []string) bool {
	if base == "" || len(allowlist) == 0 {
		return false
	}
	for _, one := range allowlist {
		if strings.TrimSpace(one) == base {
			return true
		}
	}
	return false
}

func defaultSafeCommands() []string {
	return []string{"pwd", "ls", "find", "cat", "head", "tail", "wc", "echo", "grep", "sed", "awk", "rg"}
}
