package auth

import (
	"context"
	"errors"
)

type ctxKey int

const ctxCallerService ctxKey = iota

func WithCaller(ctx context.Context, service string) context.Context {
	return context.WithValue(ctx, ctxCallerService, service)
}

func CallerService(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxCallerService).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("caller service not in context")
}
