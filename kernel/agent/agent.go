// Package agent defines per-session agent configuration: the type of
// agent, its model and prompt, and the permission policy it carries.
package agent

import "github.com/kestrelrun/agentkernel/kernel/permission"

// Type names the kind of agent a session was configured as.
type Type string

const (
	TypeBuild      Type = "build"
	TypeExplore    Type = "explore"
	TypeGeneral    Type = "general"
	TypePlan       Type = "plan"
	TypeCompaction Type = "compaction"
)

// Config is the per-session policy consulted by the permission engine and
// used to build provider requests.
type Config struct {
	Type              Type
	Model             string
	SystemPrompt      string
	MaxTokens         int
	DefaultPermission permission.Permission
	AllowedTools      []string
	DeniedTools       []string
	Permissions       map[string]permission.Permission
}

// DefaultConfig returns a General-type agent with a conservative Ask
// default permission.
func DefaultConfig() Config {
	return Config{
		Type:              TypeGeneral,
		MaxTokens:         8192,
		DefaultPermission: permission.Ask,
		Permissions:       map[string]permission.Permission{},
	}
}

// PermissionConfig projects the policy fields the permission engine
// needs, without permission importing this package.
func (c Config) PermissionConfig() permission.Config {
	return permission.Config{
		DefaultPermission: c.DefaultPermission,
		AllowedTools:      c.AllowedTools,
		DeniedTools:       c.DeniedTools,
		Permissions:       c.Permissions,
	}
}
