package core

import "context"

type contextKey string

const ctxKeyClient contextKey = "client"

// Client identifies where a request came from. It is copied onto run
// summaries for the history log.
type Client struct {
	IPAddress string
	UserAgent string
}

// ContextWithClient attaches the request's client details to ctx.
func ContextWithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, ctxKeyClient, c)
}

// ClientFromContext returns the client details stored by ContextWithClient.
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(ctxKeyClient).(Client)
	return c
}
