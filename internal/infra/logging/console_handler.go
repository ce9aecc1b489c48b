package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const (
	ansiCodeReset     = "\033[0m"
	ansiCodeRed       = "\033[31m"
	ansiCodeGreen     = "\033[32m"
	ansiCodeYellow    = "\033[33m"
	ansiCodeCyan      = "\033[36m"
	ansiCodeGray      = "\033[90m"
	ansiCodeUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var ansiCodeMap = map[slog.Level]string{
	slog.LevelDebug: ansiCodeCyan,
	slog.LevelInfo:  ansiCodeGreen,
	slog.LevelWarn:  ansiCodeYellow,
	slog.LevelError: ansiCodeRed,
}

// ConsoleHandler implements slog.Handler with colored, human-readable output
// suitable for development environments.
type ConsoleHandler struct {
	// Output is the destination for log output (typically os.Stdout or os.Stderr)
	Output io.Writer
	// Level is the minimum level for log records to be processed
	Level slog.Leveler
	// PkgLevels maps logger names (and their dotted parents) to minimum log levels
	PkgLevels map[string]slog.Level
	// NoColor disables ANSI escape codes
	NoColor bool

	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if !h.pkgEnabled(attrs, r.Level) {
		return nil
	}

	var b strings.Builder

	b.WriteString(h.color(ansiCodeGray, r.Time.Format("15:04:05.000000")))
	b.WriteString(" " + h.color(ansiCodeMap[r.Level], "["+r.Level.String()+"]"))
	b.WriteString(" " + r.Message)

	var prefix string
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	if len(attrs) > 0 {
		b.WriteString(" " + h.color(ansiCodeGray, "|"))
		h.renderAttrs(&b, prefix, attrs)
	}

	if r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		fn := strings.Split(f.Function, string(os.PathSeparator))

		b.WriteString("\n-> " + h.color(ansiCodeGray, fn[len(fn)-1]+"()"))
		b.WriteString(" in " + h.color(ansiCodeUnderline, f.File+":"+strconv.Itoa(f.Line)))
	}

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}

	if _, err := fmt.Fprintln(h.Output, b.String()); err != nil {
		return fmt.Errorf("write log: %w", err)
	}

	return nil
}

// pkgEnabled applies the most specific PkgLevels entry matching the record's
// logger name. "svc.identitysvc.http_transport" is matched against itself,
// "svc.identitysvc", "svc" and finally the empty key.
func (h *ConsoleHandler) pkgEnabled(attrs []slog.Attr, level slog.Level) bool {
	if len(h.PkgLevels) == 0 {
		return true
	}

	var name string

	for _, attr := range attrs {
		if attr.Key == loggerKey {
			name = attr.Value.String()

			break
		}
	}

	parts := strings.Split(name, ".")

	for i := len(parts); i >= 0; i-- {
		if threshold, ok := h.PkgLevels[strings.Join(parts[:i], ".")]; ok {
			return level >= threshold
		}
	}

	return true
}

func (h *ConsoleHandler) color(code, s string) string {
	if h.NoColor || code == "" {
		return s
	}

	return code + s + ansiCodeReset
}

func (h *ConsoleHandler) renderAttrs(b *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			h.renderAttrs(b, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		b.WriteString(" " + prefix + attr.Key + "=" + h.color(ansiCodeGray, attr.Value.String()))
	}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &clone
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)

	return &clone
}

// Enabled implements slog.Handler.Enabled.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.Level.Level() <= level
}
