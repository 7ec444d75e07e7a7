// Package nlog is the watchlist core's logger: leveled, timestamped,
// optionally file-backed, safe for concurrent use by a single session's
// host-driven dispatch loop plus any ancillary goroutines (e.g. hk timers).
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const sevChars = "IWE"

type writer struct {
	mu      sync.Mutex
	out     io.Writer
	file    *os.File
	written int64
}

var (
	w          = &writer{out: os.Stderr}
	toStderr   int32 = 1
	verbosity  int32
	moduleMask int32
)

// SetOutput redirects all subsequent log lines; nil restores stderr.
func SetOutput(out io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if out == nil {
		out = os.Stderr
	}
	w.out = out
}

// SetFile additionally tees output to the file at path, opened for append
// (created if missing, never rotated); the session's host is responsible
// for calling Flush before it exits.
func SetFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.file = f
	w.mu.Unlock()
	return nil
}

// SetVerbosity sets the level that V reports against. Infof/Infoln are not
// gated by it; a caller skips formatting cost by checking V(level) first,
// the way the teacher's cmn.Rom.FastV is used.
func SetVerbosity(level int) { atomic.StoreInt32(&verbosity, int32(level)) }

func V(level int) bool { return atomic.LoadInt32(&verbosity) >= int32(level) }

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth+1, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 1, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 1, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 1, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 1, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth+1, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 1, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 1, format, args...) }

func Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f, ok := w.out.(interface{ Sync() error }); ok {
		f.Sync()
	}
	if w.file != nil {
		w.file.Sync()
	}
}

func log(sev severity, depth int, format string, args ...any) {
	var b strings.Builder
	formatHdr(sev, depth+1, &b)
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	line := b.String()

	w.mu.Lock()
	io.WriteString(w.out, line)
	if w.file != nil {
		n, _ := io.WriteString(w.file, line)
		w.written += int64(n)
	}
	w.mu.Unlock()
}

func formatHdr(sev severity, depth int, b *strings.Builder) {
	b.WriteByte(sevChars[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	_, fn, ln, ok := runtime.Caller(2 + depth)
	if !ok {
		return
	}
	if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
		fn = fn[idx+1:]
	}
	b.WriteString(fn)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(ln))
	b.WriteByte(' ')
}
