package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// level is shared by every handler built here.
var level = func() *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(slog.LevelDebug)
	return v
}()

// SetLevel sets the global log level
func SetLevel(levelStr string) {
	level.Set(ParseLevel(levelStr))
}

// GetLevel returns the current log level as a string
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

// ParseLevel parses a string to an slog level
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// shared is the state every derived handler writes through.
type shared struct {
	outs []io.Writer
	mu   sync.Mutex
}

// customHandler formats records as "[15:04:05] [LEVEL] msg k=v" and writes
// them to every output.
type customHandler struct {
	s     *shared
	attrs []string // preformatted k=v pairs from With
}

// Handle implements slog.Handler
func (h *customHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.Enabled(ctx, record.Level) {
		return nil
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(record.Time.Format("15:04:05"))
	b.WriteString("] [")
	b.WriteString(strings.ToUpper(record.Level.String()))
	b.WriteString("] ")
	b.WriteString(record.Message)

	for _, a := range h.attrs {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(formatAttr(a))
		return true
	})
	b.WriteByte('\n')

	line := []byte(b.String())
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	for _, out := range h.s.outs {
		if out != nil {
			_, _ = out.Write(line)
		}
	}
	return nil
}

func formatAttr(a slog.Attr) string {
	return a.Key + "=" + a.Value.Resolve().String()
}

// WithAttrs implements slog.Handler
func (h *customHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &customHandler{s: h.s, attrs: make([]string, 0, len(h.attrs)+len(attrs))}
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, formatAttr(a))
	}
	return next
}

// WithGroup implements slog.Handler
func (h *customHandler) WithGroup(name string) slog.Handler {
	return h
}

// Enabled implements slog.Handler
func (h *customHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= level.Level()
}

// NewHandler returns the text handler writing to outputs.
func NewHandler(outputs ...io.Writer) slog.Handler {
	return &customHandler{s: &shared{outs: outputs}}
}

// InitLogger initializes the global logger with one or more output writers
func InitLogger(outputs ...io.Writer) {
	slog.SetDefault(slog.New(NewHandler(outputs...)))
}

// FileOptions configures rotation of the log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewFileWriter returns a size-rotated log file writer.
func NewFileWriter(opts FileOptions) io.WriteCloser {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 50
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	return &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
}
