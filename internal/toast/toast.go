package toast

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/time/rate"
)

// Level is the severity of a toast.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
)

func (l Level) String() string {
	if l == LevelWarning {
		return "warning"
	}
	return "info"
}

// Terminal prints toasts to a terminal, coloured by level. A token bucket
// drops toasts once the burst is spent so a reconnect flood stays readable.
type Terminal struct {
	out     io.Writer
	info    *color.Color
	warning *color.Color
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	dropped int
}

// NewTerminal writes to out (stdout when nil). rps <= 0 disables the guard.
func NewTerminal(out io.Writer, rps float64, burst int, logger *slog.Logger) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Terminal{
		out:     out,
		info:    color.New(color.FgCyan),
		warning: color.New(color.FgYellow, color.Bold),
		logger:  logger,
	}
	if rps > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
	return t
}

// DisableColor prints plain text.
func (t *Terminal) DisableColor() {
	t.info.DisableColor()
	t.warning.DisableColor()
}

func (t *Terminal) Info(msg string) {
	t.show(LevelInfo, msg)
}

func (t *Terminal) Warning(msg string) {
	t.show(LevelWarning, msg)
}

// Dropped returns how many toasts the flood guard swallowed.
func (t *Terminal) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *Terminal) show(level Level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limiter != nil && !t.limiter.Allow() {
		t.dropped++
		t.logger.Debug("toast_dropped", "level", level.String(), "dropped", t.dropped)
		return
	}

	c, icon := t.info, "🔔"
	if level == LevelWarning {
		c, icon = t.warning, "⚠"
	}
	if _, err := c.Fprintf(t.out, "%s %s\n", icon, msg); err != nil {
		t.logger.Warn("toast_write_failed", "error", err)
	}
}

// Func adapts a plain function to the toaster interface.
type Func func(level Level, msg string)

func (f Func) Info(msg string)    { f(LevelInfo, msg) }
func (f Func) Warning(msg string) { f(LevelWarning, msg) }

// Toaster is what Multi fans out to.
type Toaster interface {
	Info(msg string)
	Warning(msg string)
}

// Multi raises every toast on all of ts, in order.
type Multi []Toaster

func (m Multi) Info(msg string) {
	for _, t := range m {
		t.Info(msg)
	}
}

func (m Multi) Warning(msg string) {
	for _, t := range m {
		t.Warning(msg)
	}
}
