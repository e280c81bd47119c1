// Package logger provides named loggers that write to a shared handler.
//
// The console UI owns the terminal, so when the UI is running the handler is
// switched to a log file with UseFile; one-shot CLI commands keep the default
// stderr handler.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cenkalti/log"
)

var (
	m       sync.Mutex
	handler log.Handler
	level   = log.INFO
	loggers []log.Logger
)

func init() {
	UseStderr()
}

// SetHandler changes the global logging handler. Loggers created earlier are
// re-pointed at the new handler.
func SetHandler(h log.Handler) {
	m.Lock()
	defer m.Unlock()
	handler = h
	handler.SetFormatter(logFormatter{})
	handler.SetLevel(level)
	for _, l := range loggers {
		l.SetHandler(handler)
	}
}

// UseStderr directs all log output to standard error.
func UseStderr() {
	SetHandler(log.NewFileHandler(os.Stderr))
}

// UseFile directs all log output to the file at path.
// Parent directories are created as needed.
func UseFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	SetHandler(log.NewFileHandler(f))
	return nil
}

// SetLevel sets the logging level on the global handler. The level survives a
// later handler switch.
func SetLevel(l log.Level) {
	m.Lock()
	defer m.Unlock()
	level = l
	handler.SetLevel(l)
}

// Logger is for logging messages from inside of the program in various logging levels.
type Logger log.Logger

// New returns a new Logger with a name.
// Log messages are prefixed with this name by the default Handler.
func New(name string) Logger {
	m.Lock()
	defer m.Unlock()
	logger := log.NewLogger(name)
	logger.SetLevel(log.DEBUG) // forward all messages to handler
	logger.SetHandler(handler)
	loggers = append(loggers, logger)
	return logger
}

type logFormatter struct{}

// Format outputs a message like "2024-02-28 18:15:57 INFO     [aria2] client.go:42 probing daemon"
func (f logFormatter) Format(rec *log.Record) string {
	return fmt.Sprintf("%s %-8s [%s] %s %s",
		rec.Time.Format("2006-01-02 15:04:05"),
		rec.Level,
		rec.LoggerName,
		filepath.Base(rec.Filename)+":"+strconv.Itoa(rec.Line),
		rec.Message)
}
