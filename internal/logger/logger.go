package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Hook receives every formatted line, without the level prefix.
type Hook func(level, msg string)

// Logger handles leveled logging to the console with optional file output
type Logger struct {
	Verbose bool
	writer  io.Writer
	errOut  io.Writer
	mu      sync.Mutex
	fileLog *os.File
	hasBar  bool
	hook    Hook
}

// New creates a new Logger instance
func New(verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		writer:  os.Stdout,
		errOut:  os.Stderr,
	}
}

// NewWithWriter creates a Logger that writes console output (errors included) to w.
func NewWithWriter(w io.Writer, verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		writer:  w,
		errOut:  w,
	}
}

// Discard returns a Logger that drops console output.
func Discard() *Logger {
	return NewWithWriter(io.Discard, false)
}

// SetFileLog enables logging to a file
func (l *Logger) SetFileLog(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.fileLog = f
	return nil
}

// SetHook mirrors log lines to fn (nil disables).
func (l *Logger) SetHook(fn Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hook = fn
}

// SetProgressBar indicates that a progress bar is active
func (l *Logger) SetProgressBar(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasBar = active
}

// Close closes the log file if open
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		err := l.fileLog.Close()
		l.fileLog = nil
		return err
	}
	return nil
}

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

// Debug logs detailed messages only in verbose mode
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.Verbose {
		l.log("DEBUG", format, args...)
		return
	}
	// Debug lines always reach the file log
	l.logToFile("DEBUG", format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

// Error logs error messages to stderr
func (l *Logger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	body := fmt.Sprintf(format, args...)
	l.clearBar(l.errOut)
	fmt.Fprintf(l.errOut, "[ERROR] %s\n", body)
	l.writeFile("ERROR", body)
	if l.hook != nil {
		l.hook("ERROR", body)
	}
}

// log handles the actual logging
func (l *Logger) log(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	body := fmt.Sprintf(format, args...)

	var msg string
	if level == "INFO" {
		msg = body + "\n"
	} else {
		msg = "[" + level + "] " + body + "\n"
	}

	// Stdout is left to the progress bar unless verbose
	if l.Verbose || !l.hasBar {
		fmt.Fprint(l.writer, msg)
	}

	l.writeFile(level, body)
	if l.hook != nil {
		l.hook(level, body)
	}
}

// logToFile writes only to file
func (l *Logger) logToFile(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeFile(level, fmt.Sprintf(format, args...))
}

// writeFile appends a timestamped line. Callers hold l.mu.
func (l *Logger) writeFile(level, body string) {
	if l.fileLog == nil {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(l.fileLog, "%s [%s] %s\n", ts, level, strings.TrimRight(body, "\n"))
}

// clearBar moves an active progress bar line out of the way. Callers hold l.mu.
func (l *Logger) clearBar(w io.Writer) {
	if l.hasBar && !l.Verbose {
		fmt.Fprint(w, "\r\033[K")
	}
}
