// Package requestcontext carries per-request values set by middleware.
package requestcontext

import (
	"context"

	id "docucred/pkg/domain"
)

type (
	requestIDKey struct{}
	userIDKey    struct{}
	usernameKey  struct{}
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request ID or "" outside of an HTTP request.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithUser stores the authenticated principal. Only the auth middleware calls it.
func WithUser(ctx context.Context, userID id.UserID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey{}, userID)
	return context.WithValue(ctx, usernameKey{}, username)
}

// UserID returns the authenticated user, or the nil ID when unauthenticated.
func UserID(ctx context.Context) id.UserID {
	v, _ := ctx.Value(userIDKey{}).(id.UserID)
	return v
}

func Username(ctx context.Context) string {
	v, _ := ctx.Value(usernameKey{}).(string)
	return v
}

type clientDeviceKey struct{}

// WithClientDevice stores a display name such as "Chrome on Linux".
func WithClientDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, clientDeviceKey{}, device)
}

func ClientDevice(ctx context.Context) string {
	v, _ := ctx.Value(clientDeviceKey{}).(string)
	return v
}

type clientNetworkKey struct{}

// WithClientNetwork stores the masked client network, never the full address.
func WithClientNetwork(ctx context.Context, network string) context.Context {
	return context.WithValue(ctx, clientNetworkKey{}, network)
}

func ClientNetwork(ctx context.Context) string {
	v, _ := ctx.Value(clientNetworkKey{}).(string)
	return v
}
