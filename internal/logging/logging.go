// Package logging provides the structured logger used across filedrop.
// Entries carry the request id found in the context, so handlers and the
// orchestrator can log without threading ids through every call.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields holds the key/value pairs attached to a log entry.
type Fields map[string]any

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Options selects the output format and minimum level.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Env    string // production forces json
	Output io.Writer
}

var std = newLogger(Options{})

func newLogger(opts Options) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	}
	l.SetLevel(parseLevel(opts.Level))

	if strings.EqualFold(opts.Format, "json") || strings.EqualFold(opts.Env, "production") {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "msg",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			DisableColors:   true,
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	}
	return l
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Init replaces the process logger. Call once from main before serving.
func Init(opts Options) {
	std = newLogger(opts)
}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(requestIDKey).(string); ok {
		return s
	}
	return ""
}

func entry(ctx context.Context, fields []Fields) *logrus.Entry {
	e := logrus.NewEntry(std)
	if rid := RequestIDFromContext(ctx); rid != "" {
		e = e.WithField("request_id", rid)
	}
	for _, f := range fields {
		if len(f) > 0 {
			e = e.WithFields(logrus.Fields(f))
		}
	}
	return e
}

func Debug(ctx context.Context, msg string, fields ...Fields) {
	entry(ctx, fields).Debug(msg)
}

func Info(ctx context.Context, msg string, fields ...Fields) {
	entry(ctx, fields).Info(msg)
}

func Warn(ctx context.Context, msg string, fields ...Fields) {
	entry(ctx, fields).Warn(msg)
}

// Error logs msg at error level with err attached under the "error" key.
func Error(ctx context.Context, msg string, err error, fields ...Fields) {
	e := entry(ctx, fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}
