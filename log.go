package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

type logConfig struct {
	Debug bool   `env:"READALOUD_DEBUG" envDefault:"false"`
	File  string `env:"READALOUD_LOG_FILE"`
}

// fileLogging is set when logs go to a file instead of stderr.
var fileLogging bool

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName+".log"), nil
}

// setupLog logs warnings to stderr, or everything to a file when
// READALOUD_DEBUG is set.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)

	lc, err := env.ParseAs[logConfig]()
	if err != nil {
		return nil, err
	}
	if !lc.Debug {
		return func() error { return nil }, nil
	}

	logFile := lc.File
	if logFile == "" {
		if logFile, err = getLogFilePath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	log.SetDefault(log.NewWithOptions(f, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          appName,
	}))
	fileLogging = true
	return f.Close, nil
}
