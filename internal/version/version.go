package version

import (
	"runtime/debug"
	"strings"
)

// These are injected at build time via -ldflags; a "dev" build (go run,
// or a binary built without ldflags) falls back to the build info the Go
// toolchain embeds in the binary itself.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func init() {
	if Version != "dev" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if len(setting.Value) >= 7 {
				Commit = setting.Value[:7]
			} else {
				Commit = setting.Value
			}
		case "vcs.time":
			Date = setting.Value
		}
	}
}

// String returns compact human-readable version info, e.g.
// "v0.4.0 commit=a1b2c3d date=2026-01-05T00:00:00Z".
func String() string {
	parts := make([]string, 0, 3)
	if value := strings.TrimSpace(Version); value != "" {
		parts = append(parts, value)
	}
	if value := strings.TrimSpace(Commit); value != "" {
		parts = append(parts, "commit="+value)
	}
	if value := strings.TrimSpace(Date); value != "" {
		parts = append(parts, "date="+value)
	}
	return strings.Join(parts, " ")
}
