// Package auth supplies the already-validated caller principal to the
// disbursement engine. Transport middleware verifies identity and injects the
// caller address; the engine only ever compares that address to the owner.
package auth

import (
	"context"
	"errors"
)

type contextKey string

const callerKey contextKey = "caller"

// ErrNoCaller is returned when no caller principal was attached upstream.
var ErrNoCaller = errors.New("auth: no caller in context")

// WithCaller attaches a validated caller address to the context.
func WithCaller(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, callerKey, addr)
}

// CallerFromContext retrieves the validated caller address.
func CallerFromContext(ctx context.Context) (string, error) {
	addr, ok := ctx.Value(callerKey).(string)
	if !ok || addr == "" {
		return "", ErrNoCaller
	}
	return addr, nil
}

// MustCaller panics if the caller is missing (use only when middleware
// guarantees it).
func MustCaller(ctx context.Context) string {
	addr, err := CallerFromContext(ctx)
	if err != nil {
		panic(err)
	}
	return addr
}
