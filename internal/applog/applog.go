// Package applog implements the day-rotating, line-count-split log sink
// described in original_source/log/log.h and log/block_queue.hpp: a
// singleton writer with four severity levels, an optional asynchronous
// mode that hands formatted lines to a background drainer through a
// bounded queue, and a synchronous fallback used both when async mode
// is off and when the queue is saturated.
//
// This package intentionally reimplements the original's bespoke
// rotation scheme on the standard library (os/fmt/time) rather than
// reaching for a structured-logging library: the behavior being
// reproduced — day-based file names plus a numbered continuation file
// once a line count is exceeded — is the point of the exercise, not an
// ambient concern a general-purpose logger would replace.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yourusername/webserver/internal/blockqueue"
)

// Level is a log severity, ordered the same way original_source's four
// LOG_* macros are: DEBUG < INFO < WARN < ERROR.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "[debug]"
	case Info:
		return "[info]"
	case Warn:
		return "[warn]"
	case Error:
		return "[error]"
	default:
		return "[?????]"
	}
}

// Options configures a Logger. Dir/Base name the log file's directory
// and base name; SplitLines bounds how many lines a single file may
// hold before a numbered continuation file opens; QueueCapacity sizes
// the async line queue (ignored when Async is false).
type Options struct {
	Dir           string
	BaseName      string
	SplitLines    int
	QueueCapacity int
	Async         bool
	// Disabled turns every Write into a no-op, matching the original's
	// close_log config switch.
	Disabled bool
}

// Logger is the day/line-rotating file sink. The zero value is not
// usable; construct with New.
type Logger struct {
	dir        string
	baseName   string
	splitLines int
	disabled   bool
	async      bool

	mu      sync.Mutex
	fp      *os.File
	today   int // day-of-month the current file was opened for
	lineNo  int
	part    int // continuation-file counter, reset each day
	dateTag string

	queue *blockqueue.Queue[string]
	wg    sync.WaitGroup
}

var (
	instance *Logger
	once     sync.Once
)

// Init builds the process-wide Logger singleton. Only the first call's
// options take effect; later calls return the existing instance, same
// as the original's get_instance double-checked singleton.
func Init(opts Options) (*Logger, error) {
	var err error
	once.Do(func() {
		instance, err = New(opts)
	})
	return instance, err
}

// Instance returns the singleton built by Init, or nil if Init was
// never called.
func Instance() *Logger {
	return instance
}

// New constructs an independent Logger, bypassing the singleton. Tests
// use this to avoid cross-test state; production wiring should prefer
// Init.
func New(opts Options) (*Logger, error) {
	if opts.SplitLines <= 0 {
		opts.SplitLines = 5000000
	}
	l := &Logger{
		dir:        opts.Dir,
		baseName:   opts.BaseName,
		splitLines: opts.SplitLines,
		disabled:   opts.Disabled,
		async:      opts.Async,
	}
	if l.disabled {
		return l, nil
	}
	if l.dir == "" {
		l.dir = "."
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("applog: create log dir: %w", err)
	}
	if err := l.rotateLocked(time.Now()); err != nil {
		return nil, err
	}
	if l.async {
		q, err := blockqueue.New[string](opts.QueueCapacity)
		if err != nil {
			return nil, fmt.Errorf("applog: %w", err)
		}
		l.queue = q
		l.wg.Add(1)
		go l.drain()
	}
	return l, nil
}

// Writef formats and records one log line at the given level. In async
// mode the line is pushed to the queue and the call returns
// immediately; if the queue is full, or the logger is synchronous, the
// write happens inline on the caller's goroutine, matching the
// original's synchronous fallback.
func (l *Logger) Writef(level Level, format string, args ...any) {
	if l == nil || l.disabled {
		return
	}
	now := time.Now()
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s %s %s\n", now.Format("2006-01-02 15:04:05.000000"), level, msg)

	if l.async && l.queue != nil {
		if err := l.queue.Push(line); err == nil {
			return
		}
		// Queue full or closed: fall through to the synchronous path.
	}
	l.writeLine(now, line)
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...any) { l.Writef(Debug, format, args...) }

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...any) { l.Writef(Info, format, args...) }

// Warnf logs at Warn level.
func (l *Logger) Warnf(format string, args ...any) { l.Writef(Warn, format, args...) }

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...any) { l.Writef(Error, format, args...) }

func (l *Logger) drain() {
	defer l.wg.Done()
	for {
		line, ok := l.queue.Pop()
		if !ok {
			return
		}
		l.writeLine(time.Now(), line)
	}
}

func (l *Logger) writeLine(now time.Time, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Day() != l.today || l.lineNo >= l.splitLines {
		if err := l.rotateLocked(now); err != nil {
			return
		}
	}
	if l.fp != nil {
		fmt.Fprint(l.fp, line)
	}
	l.lineNo++
}

// rotateLocked opens the file for "now", choosing a fresh day-stamped
// name or, if staying within the same day but the line budget was
// exhausted, the next numbered continuation file. Caller must hold mu.
func (l *Logger) rotateLocked(now time.Time) error {
	if now.Day() != l.today {
		l.today = now.Day()
		l.dateTag = now.Format("2006_01_02")
		l.part = 0
		l.lineNo = 0
	} else {
		l.part++
		l.lineNo = 0
	}

	name := fmt.Sprintf("%s_%s.log", l.baseName, l.dateTag)
	if l.part > 0 {
		name = fmt.Sprintf("%s_%s_%03d.log", l.baseName, l.dateTag, l.part)
	}

	if l.fp != nil {
		l.fp.Close()
	}
	fp, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("applog: open log file: %w", err)
	}
	l.fp = fp
	return nil
}

// Flush blocks until every line queued so far (as of the call) has been
// written. It is approximate under concurrent writers, same caveat as
// any queue-drain barrier.
func (l *Logger) Flush() {
	if l == nil || l.disabled || l.queue == nil {
		return
	}
	for l.queue.Len() > 0 {
		time.Sleep(time.Millisecond)
	}
}

// Close flushes and stops the background drainer, if any, and closes
// the underlying file. Not part of the original, added so the drainer
// goroutine doesn't leak past server shutdown.
func (l *Logger) Close() error {
	if l == nil || l.disabled {
		return nil
	}
	if l.queue != nil {
		l.Flush()
		l.queue.Close()
		l.wg.Wait()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fp != nil {
		return l.fp.Close()
	}
	return nil
}
