// Package logging configures slog and logs bus events.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hanpama/populate/internal/eventbus"
	"github.com/hanpama/populate/internal/events"
	"github.com/hanpama/populate/internal/reqid"
)

// ParseLevel accepts debug, info, warn (warning) and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}

// New builds a text or json logger writing to w.
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("logging: unknown format %q", format)
}

// Setup is New that also installs the logger as the slog default.
func Setup(level, format string, w io.Writer) (*slog.Logger, error) {
	logger, err := New(level, format, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// Subscribe logs compile, HTTP, RPC and schema reload events to logger.
func Subscribe(logger *slog.Logger) (unsubscribe func()) {
	l := &listener{logger: logger}
	unsubs := []func(){
		eventbus.Subscribe(l.compileFinish),
		eventbus.Subscribe(l.httpFinish),
		eventbus.Subscribe(l.rpcFinish),
		eventbus.Subscribe(l.schemaReload),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

type listener struct {
	logger *slog.Logger
}

func (l *listener) with(ctx context.Context) *slog.Logger {
	if id, ok := reqid.FromContext(ctx); ok {
		return l.logger.With(slog.String("request_id", id))
	}
	return l.logger
}

func (l *listener) compileFinish(ctx context.Context, e events.CompileFinish) {
	log := l.with(ctx)
	if len(e.Dropped) > 0 || len(e.DroppedSorts) > 0 {
		log.DebugContext(ctx, "dropped unknown paths",
			slog.String("schema", e.Schema),
			slog.Any("paths", e.Dropped),
			slog.Any("sorts", e.DroppedSorts),
		)
	}
	log.DebugContext(ctx, "compiled",
		slog.String("schema", e.Schema),
		slog.Int("accepted", e.Accepted),
		slog.Duration("duration", e.Duration),
	)
}

func (l *listener) httpFinish(ctx context.Context, e events.HTTPFinish) {
	level := slog.LevelInfo
	if e.Status >= 500 {
		level = slog.LevelError
	} else if e.Status >= 400 {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("route", e.Route),
		slog.Int("status", e.Status),
		slog.Int("bytes", e.Bytes),
		slog.Duration("duration", e.Duration),
	}
	if e.Request != nil {
		attrs = append(attrs, slog.String("method", e.Request.Method))
	}
	l.with(ctx).LogAttrs(ctx, level, "http request", attrs...)
}

func (l *listener) rpcFinish(ctx context.Context, e events.RPCFinish) {
	msg := "rpc served"
	if e.Client {
		msg = "rpc call"
	}
	attrs := []slog.Attr{
		slog.String("method", e.Method),
		slog.String("code", e.Code.String()),
		slog.Duration("duration", e.Duration),
	}
	if e.Target != "" {
		attrs = append(attrs, slog.String("target", e.Target))
	}
	level := slog.LevelInfo
	if e.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	l.with(ctx).LogAttrs(ctx, level, msg, attrs...)
}

func (l *listener) schemaReload(ctx context.Context, e events.SchemaReload) {
	if e.Err != nil {
		l.logger.ErrorContext(ctx, "schema reload failed, keeping previous schema",
			slog.String("path", e.Path),
			slog.String("error", e.Err.Error()),
		)
		return
	}
	l.logger.InfoContext(ctx, "schema reloaded",
		slog.String("path", e.Path),
		slog.Duration("duration", e.Duration),
	)
}
