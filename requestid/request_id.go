package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// XRequestIDKey is used to store the x-request-id in a context
type XRequestIDKey struct{}

const (
	// XRequestIDHeader is the header outgoing requests carry the id in
	XRequestIDHeader = "X-Request-Id"
)

// NewContext returns a copy of ctx carrying id
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, XRequestIDKey{}, id)
}

// FromContext return the request ID set in context
func FromContext(ctx context.Context) string {
	id, ok := ctx.Value(XRequestIDKey{}).(string)
	if !ok {
		return ""
	}
	return id
}

// Transport sets the X-Request-Id header on every request that does not
// have one, using the id in the request context or a fresh one
func Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripper{next: next}
}

type roundTripper struct {
	next http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(XRequestIDHeader) != "" {
		return rt.next.RoundTrip(req)
	}
	id := FromContext(req.Context())
	if id == "" {
		id = uuid.NewString()
	}
	// a RoundTripper must not modify the caller's request
	clone := req.Clone(req.Context())
	clone.Header.Set(XRequestIDHeader, id)
	return rt.next.RoundTrip(clone)
}
