package httpapi

import (
	"context"
	"net/http"
	"time"
)

type ownerKey struct{}

// OwnerFromContext returns the owner_id the auth layer resolved for
// this request, or false if none was set. The core never validates the
// bearer itself; it only reads the owner a prior middleware stage has
// already attached to the context.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

// WithOwner returns a copy of ctx carrying owner. Exposed for the
// pass-through middleware and for tests that need to populate the
// owner without going through HTTP.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// devOwnerHeader is the header the caller's identity is read from,
// standing in for a real bearer-auth layer.
const devOwnerHeader = "X-Ditto-Owner-Id"

// passthroughOwner populates the request context's owner_id from
// devOwnerHeader, or "anonymous" when the header is absent. It lets the
// core run and be tested without a real auth layer; NewRouter installs
// it unconditionally and no token is verified.
func passthroughOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(devOwnerHeader)
		if owner == "" {
			owner = "anonymous"
		}
		ctx := WithOwner(r.Context(), owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Status: "error", Timestamp: time.Now().UTC(), Error: "missing owner identity"})
		return "", false
	}
	return owner, true
}
