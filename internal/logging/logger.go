package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ivlev/comment2video/internal/config"
)

type level struct {
	name   string
	marker string
	style  lipgloss.Style
}

var (
	levelInfo     = level{"INFO", "[*]", lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)}
	levelProgress = level{"PROGRESS", "[>]", lipgloss.NewStyle().Foreground(lipgloss.Color("14"))}
	levelSuccess  = level{"SUCCESS", "[+++]", lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)}
	levelWarn     = level{"WARN", "[!]", lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)}
	levelError    = level{"ERROR", "[-]", lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)}
	levelDebug    = level{"DEBUG", "[.]", lipgloss.NewStyle().Foreground(lipgloss.Color("13"))}
)

// Logger writes leveled status lines to stdout/stderr and an optional file.
// It is safe for concurrent use by batch workers.
type Logger struct {
	mu     *sync.Mutex
	color  bool
	out    io.Writer
	errOut io.Writer
	file   *os.File
	prefix string
}

// New configures colours from cfg and opens cfg.LogFile when set. Call Close
// when done.
func New(cfg *config.Config) (*Logger, error) {
	l := &Logger{mu: &sync.Mutex{}, out: os.Stdout, errOut: os.Stderr}
	switch cfg.ColorMode {
	case config.ColorAlways:
		l.color = true
	case config.ColorNever:
		l.color = false
	default:
		l.color = isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == "" && strings.ToLower(os.Getenv("TERM")) != "dumb"
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.file = f
	}
	return l, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{mu: &sync.Mutex{}, out: io.Discard, errOut: io.Discard}
}

// NewWriter logs uncoloured lines to w (both levels). Used in tests.
func NewWriter(w io.Writer) *Logger {
	return &Logger{mu: &sync.Mutex{}, out: w, errOut: w}
}

// With returns a logger sharing sinks that prefixes every line, e.g. the
// comment index of a batch worker.
func (l *Logger) With(prefix string) *Logger {
	return &Logger{mu: l.mu, color: l.color, out: l.out, errOut: l.errOut, file: l.file, prefix: l.prefix + prefix + " "}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) line(lv level, text string) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	plain := ts + " " + lv.marker + " " + l.prefix + text + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.out
	if lv.name == levelError.name {
		out = l.errOut
	}
	if l.color {
		_, _ = io.WriteString(out, ts+" "+lv.style.Render(lv.marker)+" "+l.prefix+text+"\n")
	} else {
		_, _ = io.WriteString(out, plain)
	}
	if l.file != nil {
		_, _ = io.WriteString(l.file, ts+" ["+lv.name+"] "+l.prefix+text+"\n")
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.line(levelInfo, fmt.Sprintf(format, args...))
}

// Progress reports per-item progress ("Ready: 3/10").
func (l *Logger) Progress(format string, args ...interface{}) {
	l.line(levelProgress, fmt.Sprintf(format, args...))
}

func (l *Logger) Success(format string, args ...interface{}) {
	l.line(levelSuccess, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.line(levelWarn, fmt.Sprintf(format, args...))
}

// Error logs to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.line(levelError, fmt.Sprintf(format, args...))
}

// Debug is a no-op unless verbose.
func (l *Logger) Debug(verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	l.line(levelDebug, fmt.Sprintf(format, args...))
}
