package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/rbt/internal/ui/output"
	"go.trai.ch/rbt/internal/ui/style"
)

// Attribute keys with a dedicated place in a pretty line.
const (
	jobKey   = "job"
	errorKey = "error"
)

// PrettyHandler is a slog.Handler that writes one colored line per record.
// A top-level "job" attribute becomes the "[job]" prefix the progress output
// uses, and an "error" attribute is appended to the message as its cause.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewPrettyHandler creates a new PrettyHandler writing to w. A Leveler in
// opts is consulted on every record, so a *slog.LevelVar can change the level
// at runtime.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &PrettyHandler{
		out:   output.New(w),
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and outputs the log record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	line := &recordLine{}
	prefix := strings.Join(h.groups, ".")
	for _, attr := range h.attrs {
		line.add(prefix, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		line.add(prefix, attr)
		return true
	})

	glyph, color := levelStyle(r.Level)
	msg := r.Message
	if glyph != "" {
		msg = glyph + " " + msg
	}
	if line.cause != "" {
		msg += ": " + line.cause
	}

	var b strings.Builder
	if line.job != "" {
		b.WriteString(h.out.String("[" + line.job + "]").Faint().String())
		b.WriteByte(' ')
	}
	b.WriteString(h.out.String(msg).Foreground(termenv.RGBColor(string(color))).String())
	if len(line.fields) > 0 {
		b.WriteByte(' ')
		b.WriteString(h.out.String(strings.Join(line.fields, " ")).Faint().String())
	}
	b.WriteByte('\n')

	_, err := h.out.WriteString(b.String())
	return err
}

// WithAttrs returns a new Handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a new Handler that qualifies later attributes with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func levelStyle(level slog.Level) (string, lipgloss.Color) {
	switch {
	case level >= slog.LevelError:
		return style.Cross, style.Red
	case level >= slog.LevelWarn:
		return style.Warning, style.Yellow
	case level < slog.LevelInfo:
		return style.Circle, style.Slate
	default:
		return "", style.Slate
	}
}

// recordLine collects the attributes of one record.
type recordLine struct {
	job    string
	cause  string
	fields []string
}

func (l *recordLine) add(prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		inner := attr.Key
		if prefix != "" && inner != "" {
			inner = prefix + "." + inner
		} else if inner == "" {
			inner = prefix
		}
		for _, a := range attr.Value.Group() {
			l.add(inner, a)
		}
		return
	}

	if prefix == "" {
		switch attr.Key {
		case jobKey:
			l.job = attr.Value.String()
			return
		case errorKey:
			l.cause = attr.Value.String()
			return
		}
	}

	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	l.fields = append(l.fields, key+"="+quoteValue(attr.Value.String()))
}

func quoteValue(v string) string {
	if v == "" || strings.ContainsAny(v, " =\"\t\n") {
		return strconv.Quote(v)
	}
	return v
}
