package goToken

import "context"

type networkAddressContextKey struct{}
type clientContextKey struct{}

// WithNetworkAddress attaches the caller's network address to ctx. The
// Engine records it on new sessions and compares it during network binding
// checks. Host:port values are normalized to the host before comparison.
func WithNetworkAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, networkAddressContextKey{}, addr)
}

// WithClientContext attaches an opaque client descriptor to ctx, typically
// a sanitized user-agent string. Used by the network binding subsystem to
// detect session hijacking.
func WithClientContext(ctx context.Context, clientContext string) context.Context {
	return context.WithValue(ctx, clientContextKey{}, clientContext)
}

func networkAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	addr, _ := ctx.Value(networkAddressContextKey{}).(string)
	return addr
}

func clientContextFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	clientContext, _ := ctx.Value(clientContextKey{}).(string)
	return clientContext
}
