package apiclient

import "context"

type returnPathKey struct{}

// WithReturnPath records the caller's location, used as the return path when
// the request ends the session.
func WithReturnPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, returnPathKey{}, path)
}

// ReturnPathFrom returns the path set by WithReturnPath, if any.
func ReturnPathFrom(ctx context.Context) string {
	path, _ := ctx.Value(returnPathKey{}).(string)
	return path
}
