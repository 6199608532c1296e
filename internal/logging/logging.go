// Package logging configures logrus and carries request-scoped loggers in a context.
package logging

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// New builds a logger. format is "json" or "text"; unknown levels fall back to info.
func New(out io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

func WithLogger(ctx context.Context, l *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request logger, or nil if none was attached.
func FromContext(ctx context.Context) *logrus.Entry {
	l, _ := ctx.Value(loggerKey{}).(*logrus.Entry)
	return l
}
