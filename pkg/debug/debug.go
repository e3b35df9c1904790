// Package debug provides conditional diagnostic logging for plm.
//
// Diagnostics are enabled by setting the PLM_DEBUG environment variable:
//
//	PLM_DEBUG=1 plm --playlist party.jsonl
//
// When enabled, messages are written to stderr with timestamps and
// invariant checks fail loudly. When disabled (default), logging is a
// no-op and invariant checks only emit a warning through the standard
// logger.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("PLM_DEBUG") != "" {
		enabled = true
		logger = newLogger(os.Stderr)
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "[PLM_DEBUG] ", log.Ltime|log.Lmicroseconds)
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = newLogger(os.Stderr)
	}
}

// SetOutput redirects debug output, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

func current() (*log.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return logger, enabled
}

// Log writes a debug message if debug logging is enabled.
func Log(format string, args ...any) {
	l, on := current()
	if !on {
		return
	}
	l.Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	l, on := current()
	if !on {
		return
	}
	l.Printf("%s took %v", name, d)
}

// LogEnterExit logs entry and exit with timing.
//
//	defer debug.LogEnterExit("rebuild")()
func LogEnterExit(name string) func() {
	l, on := current()
	if !on {
		return func() {}
	}
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Assert panics if the condition is false. Only active when debug is enabled.
func Assert(cond bool, msg string) {
	l, on := current()
	if !on || cond {
		return
	}
	l.Printf("ASSERTION FAILED: %s", msg)
	panic(fmt.Sprintf("debug assertion failed: %s", msg))
}

// Invariant checks a contract the caller cannot recover from cleanly.
// With debugging on it behaves like Assert; otherwise the breach is logged
// as a warning and the caller is expected to degrade. It returns cond.
func Invariant(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	Assert(false, msg)
	log.Printf("warning: invariant violated: %s", msg)
	return false
}
