package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger routes the six log levels to an informational or error channel,
// mirroring spec §6.3: STATUS/START/STOP go to the informational stream,
// FLAG/ERROR/ABORT to the error stream.
type Logger struct {
	info *slog.Logger
	errs *slog.Logger
}

// New builds a Logger writing informational records to out and error
// records to errOut, each as text records carrying a "level" attribute.
func New(out, errOut io.Writer) *Logger {
	hOpts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Render the record time as [YYYY-MM-DD HH:MM:SS].
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().Format("[2006-01-02 15:04:05]"))
			}
			return a
		},
	}
	return &Logger{
		info: slog.New(slog.NewTextHandler(out, hOpts)),
		errs: slog.New(slog.NewTextHandler(errOut, hOpts)),
	}
}

// NewStd builds a Logger writing to os.Stdout/os.Stderr, as both daemons do.
func NewStd() *Logger {
	return New(os.Stdout, os.Stderr)
}

// Record emits a log line at the given level with the given attributes.
func (l *Logger) Record(level Level, msg string, args ...any) {
	args = append(args, "level", level.String())
	if level.Informational() {
		l.info.Log(context.Background(), slog.LevelInfo, msg, args...)
		return
	}
	l.errs.Log(context.Background(), slog.LevelError, msg, args...)
}

func (l *Logger) Status(msg string, args ...any) { l.Record(Status, msg, args...) }
func (l *Logger) Start(msg string, args ...any)   { l.Record(Start, msg, args...) }
func (l *Logger) Stop(msg string, args ...any)    { l.Record(Stop, msg, args...) }
func (l *Logger) Flag(msg string, args ...any)    { l.Record(Flag, msg, args...) }
func (l *Logger) Error(msg string, args ...any)   { l.Record(Error, msg, args...) }
func (l *Logger) Abort(msg string, args ...any)   { l.Record(Abort, msg, args...) }
