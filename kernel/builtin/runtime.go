package builtin

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kestrelrun/agentkernel/kernel/execenv"
)

var (
	defaultRuntimeOnce sync.Once
	defaultRuntimeInst execenv.Runtime
	defaultRuntimeErr  error
)

// runtimeOrDefault returns rt, or lazily builds a full-control host
// runtime for standalone tool construction (NewRead(), NewBash(), ...).
func runtimeOrDefault(rt execenv.Runtime) (execenv.Runtime, error) {
	if rt != nil {
		return rt, nil
	}
	defaultRuntimeOnce.Do(func() {
		defaultRuntimeInst, defaultRuntimeErr = execenv.New(execenv.Config{
			PermissionMode: execenv.PermissionModeFullControl,
		})
	})
	return defaultRuntimeInst, defaultRuntimeErr
}

func normalizePath(fsys execenv.FileSystem, path string) (string, error) {
	if fsys == nil {
		return "", fmt.Errorf("tool: filesystem runtime is nil")
	}
	if path == "" {
		return "", fmt.Errorf("tool: empty path")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := fsys.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	if !filepath.IsAbs(path) {
		wd, err := fsys.Getwd()
		if err != nil {
			return "", err
		}
		path = filepath.Join(wd, path)
	}
	return filepath.Clean(path), nil
}
