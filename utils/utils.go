// Package utils provides small path helpers shared by the CLI and the
// configuration loader.
package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ExpandPath expands tilde and all environment variables from the given
// path.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

// DisplayPath shortens path for display by replacing the home directory
// with a tilde.
func DisplayPath(path string) string {
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return path
	}
	if rel, ok := strings.CutPrefix(path, home); ok && (rel == "" || strings.HasPrefix(rel, string(filepath.Separator))) {
		return "~" + rel
	}
	return path
}
