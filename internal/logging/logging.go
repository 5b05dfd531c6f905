// Package logging builds the structured loggers used across asmexplain.
//
// Loggers are github.com/charmbracelet/log instances configured from an
// explicit level and writer. The level may also come from ASMEXPLAIN_LOG_LEVEL
// and output may be redirected to a file with ASMEXPLAIN_LOG_FILE.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures a logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty uses ASMEXPLAIN_LOG_LEVEL, then info.
	Level string
	// Writer receives log output. Nil means stderr, or the file named by File.
	Writer io.Writer
	// File, when set and Writer is nil, appends log output to this path.
	File string
	// Prefix is prepended to every line. Empty uses "asmexplain".
	Prefix string
}

// LoggerCloser wraps a logger and closes its file, if any.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable.
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// New creates a logger from opts.
func New(opts Options) (*LoggerCloser, error) {
	w := opts.Writer
	var closer io.Closer
	file := opts.File
	if file == "" {
		file = os.Getenv("ASMEXPLAIN_LOG_FILE")
	}
	if w == nil && file != "" {
		f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closer = f
	}
	if w == nil {
		w = os.Stderr
	}

	level := opts.Level
	if level == "" {
		level = os.Getenv("ASMEXPLAIN_LOG_LEVEL")
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "asmexplain"
	}

	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
		Prefix:          prefix,
	})
	return &LoggerCloser{Logger: lg, closer: closer}, nil
}

// ParseLevel maps a level name to a log.Level. Empty means info.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
