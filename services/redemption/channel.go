package redemption

import "context"

type channelKey struct{}

// WithChannel tags ctx with the surface a code was presented through
// (scanner camera, partner portal entry, ...).
func WithChannel(ctx context.Context, channel string) context.Context {
	if channel == "" {
		return ctx
	}
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if ch, ok := ctx.Value(channelKey{}).(string); ok {
		return ch
	}
	return "api"
}
