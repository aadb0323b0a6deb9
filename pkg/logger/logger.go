package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Output      io.Writer
	// Format is "json" (default) or "console".
	Format  string
	NoColor bool
}

// Logger carries request-scoped fields through context.Context.
type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	var output io.Writer = opts.Output
	if output == nil {
		output = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
			NoColor:    opts.NoColor,
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.
		New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(opts.Level)

	return &Logger{
		base:      &logger,
		warnStack: opts.WarnStack,
	}
}

func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

// scope is the logger attached to a context together with the fields that
// built it, so a key added again replaces its value instead of repeating it.
type scope struct {
	entry  zerolog.Logger
	keys   []string
	values map[string]any
}

func (l *Logger) scopeFromContext(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	sc, _ := ctx.Value(ctxKey{}).(*scope)
	return sc
}

func (l *Logger) loggerFromContext(ctx context.Context) *zerolog.Logger {
	if sc := l.scopeFromContext(ctx); sc != nil {
		return &sc.entry
	}
	return l.base
}

func (l *Logger) attach(ctx context.Context, keys []string, values map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	next := &scope{values: make(map[string]any, len(values))}
	if parent := l.scopeFromContext(ctx); parent != nil {
		next.keys = append(next.keys, parent.keys...)
		for k, v := range parent.values {
			next.values[k] = v
		}
	}
	for _, k := range keys {
		if _, seen := next.values[k]; !seen {
			next.keys = append(next.keys, k)
		}
		next.values[k] = values[k]
	}

	builder := l.base.With()
	for _, k := range next.keys {
		builder = builder.Interface(k, next.values[k])
	}
	next.entry = builder.Logger()
	return context.WithValue(ctx, ctxKey{}, next)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.attach(ctx, []string{key}, map[string]any{key: value})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return l.attach(ctx, keys, fields)
}

// WithTraceID tags the HTTP call or job run that produced the log lines.
func (l *Logger) WithTraceID(ctx context.Context, traceID string) context.Context {
	return l.WithField(ctx, "trace_id", traceID)
}

// WithAidRequestID tags lines about a single aid request.
func (l *Logger) WithAidRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "aid_request_id", requestID)
}

func (l *Logger) WithOrganizationID(ctx context.Context, orgID string) context.Context {
	return l.WithField(ctx, "organization_id", orgID)
}

func (l *Logger) WithOfferID(ctx context.Context, offerID string) context.Context {
	return l.WithField(ctx, "offer_id", offerID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.loggerFromContext(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.loggerFromContext(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.loggerFromContext(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.loggerFromContext(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
