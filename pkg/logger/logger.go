package logger

import (
	"context"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

const (
	fieldRequestID = "request_id"
	fieldUsername  = "username"
	fieldStack     = "stack"
	fieldErrorCode = "error_code"

	maxStackFrames = 32
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Console     bool
	Output      io.Writer
	// Fields are attached to every entry, e.g. env or instance id.
	Fields map[string]any
}

// Logger wraps a base zerolog logger. Request-scoped children ride in the
// context through zerolog's own context hooks.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	builder := zerolog.New(out).Level(level).With().Timestamp().Str("service", opts.ServiceName)
	builder = withSorted(builder, opts.Fields)

	return &Logger{root: builder.Logger(), warnStack: opts.WarnStack}
}

// ParseLevel maps a config string to a zerolog level. Blank, unknown and
// "disabled" style values fall back to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel || lvl == zerolog.Disabled {
		return zerolog.InfoLevel
	}
	return lvl
}

// entry returns the logger bound to ctx, or the root logger when ctx carries
// none.
func (l *Logger) entry(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if bound := zerolog.Ctx(ctx); bound != nil && bound.GetLevel() != zerolog.Disabled {
			return bound
		}
	}
	return &l.root
}

func (l *Logger) bind(ctx context.Context, child zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return child.WithContext(ctx)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.bind(ctx, l.entry(ctx).With().Interface(key, value).Logger())
}

// WithFields binds several fields at once; keys are written in sorted order so
// entries stay stable across runs.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if len(fields) == 0 {
		return l.bind(ctx, *l.entry(ctx))
	}
	return l.bind(ctx, withSorted(l.entry(ctx).With(), fields).Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.bind(ctx, l.entry(ctx).With().Str(fieldRequestID, requestID).Logger())
}

func (l *Logger) WithUsername(ctx context.Context, username string) context.Context {
	return l.bind(ctx, l.entry(ctx).With().Str(fieldUsername, username).Logger())
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.entry(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.entry(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	ev := l.entry(ctx).Warn()
	if l.warnStack && ev.Enabled() {
		ev.Str(fieldStack, callers(3))
	}
	ev.Msg(msg)
}

// Error logs err with a stack captured at the call site. Typed errors also
// carry their code.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	ev := l.entry(ctx).Error()
	if !ev.Enabled() {
		return
	}
	if err != nil {
		ev.Err(err)
		if typed := pkgerrors.As(err); typed != nil {
			ev.Str(fieldErrorCode, string(typed.Code()))
		}
	}
	ev.Str(fieldStack, callers(3)).Msg(msg)
}

func withSorted(c zerolog.Context, fields map[string]any) zerolog.Context {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c = c.Interface(k, fields[k])
	}
	return c
}

// callers renders up to maxStackFrames frames as "func file:line" lines,
// skipping the logger's own frames.
func callers(skip int) string {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(frame.Function)
		sb.WriteByte(' ')
		sb.WriteString(frame.File)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(frame.Line))
		if !more {
			break
		}
	}
	return sb.String()
}
