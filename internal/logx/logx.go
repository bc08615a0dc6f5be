package logx

import (
	"context"

	"pkt.systems/culturessh/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	connKey contextKey = iota
	userKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return pslog.Ctx(ctx)
}

// WithConn annotates the logger with the connection id unless the context
// logger already carries it.
func WithConn(ctx context.Context, id schema.ConnID) pslog.Logger {
	log := Ctx(ctx)
	if current, ok := ctx.Value(connKey).(schema.ConnID); ok && current == id {
		return log
	}
	return log.With("conn", id)
}

// WithConnUser annotates the logger with connection id and ssh user.
func WithConnUser(ctx context.Context, id schema.ConnID, user string) pslog.Logger {
	log := WithConn(ctx, id)
	if user == "" {
		return log
	}
	if current, ok := ctx.Value(userKey).(string); ok && current == user {
		return log
	}
	return log.With("user", user)
}

// ContextWithConnLogger attaches the logger and connection marker to the context.
func ContextWithConnLogger(ctx context.Context, log pslog.Logger, id schema.ConnID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return context.WithValue(ctx, connKey, id)
}

// ContextWithUser stores the user marker on the context for log de-duplication.
func ContextWithUser(ctx context.Context, user string) context.Context {
	if ctx == nil || user == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, user)
}
