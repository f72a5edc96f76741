package config

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the directory relative runtime paths are resolved against.
const HomeEnv = "REPLYFLOW_HOME"

// RuntimeHome is $REPLYFLOW_HOME, else the directory of the running binary,
// else the working directory.
func RuntimeHome() string {
	if home := strings.TrimSpace(os.Getenv(HomeEnv)); home != "" {
		return filepath.Clean(home)
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// resolveRuntimePath returns raw (or fallback when raw is blank) as an
// absolute path under RuntimeHome unless it is already absolute.
func resolveRuntimePath(raw, fallback string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = fallback
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(RuntimeHome(), target)
}
