package kit

import "context"

// ctxKey keys the call metadata the transports attach before an endpoint
// runs: the authenticated user, the transport name and the request id.
type ctxKey int

const (
	userKey ctxKey = iota
	transportKey
	requestIDKey
)

func with(ctx context.Context, k ctxKey, v string) context.Context {
	return context.WithValue(ctx, k, v)
}

func get(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

func WithUserID(ctx context.Context, id string) context.Context { return with(ctx, userKey, id) }

// GetUserID is empty for unauthenticated calls.
func GetUserID(ctx context.Context) string { return get(ctx, userKey) }

// WithTransport records "http" or "mcp".
func WithTransport(ctx context.Context, t string) context.Context {
	return with(ctx, transportKey, t)
}

// GetTransport defaults to "http".
func GetTransport(ctx context.Context) string {
	if t := get(ctx, transportKey); t != "" {
		return t
	}
	return "http"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return with(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string { return get(ctx, requestIDKey) }
