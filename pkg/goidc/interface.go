package goidc

import (
	"context"
	"net/http"
)

type ClientManager interface {
	Save(ctx context.Context, client *Client) error
	// Client returns ErrNotFound when no client matches the id.
	Client(ctx context.Context, id string) (*Client, error)
}

type SessionManager interface {
	Save(ctx context.Context, session *Session) error
	// Session returns ErrNotFound when no session matches the id.
	Session(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type GrantManager interface {
	Save(ctx context.Context, grant *Grant) error
	Grant(ctx context.Context, id string) (*Grant, error)
	GrantByAuthReqID(ctx context.Context, authReqID string) (*Grant, error)
}

type ClientAuthorizationManager interface {
	Save(ctx context.Context, auth *ClientAuthorization) error
	// ClientAuthorization returns ErrNotFound when the user never consented
	// to the client.
	ClientAuthorization(ctx context.Context, sub, clientID string) (*ClientAuthorization, error)
}

// ScopePolicyFunc resolves the scopes requested by a client into the scopes
// that can be granted to it.
type ScopePolicyFunc func(ctx context.Context, client *Client, scopes []string) []string

// AuthnResult describes a user authenticated without interaction.
type AuthnResult struct {
	Subject string
	ACR     string
	AMR     []string
}

// AuthnFilterFunc tries to authenticate the user silently based on the raw
// authorization request parameters. The boolean is false when the filter
// doesn't match the request.
type AuthnFilterFunc func(ctx context.Context, params map[string]string) (AuthnResult, bool)

// VerifyRequestObjectFunc parses and verifies a signed and optionally
// encrypted request object issued by client.
type VerifyRequestObjectFunc func(ctx context.Context, client *Client, requestObject string) (RequestObject, error)

// UserClaimsFunc returns the claims about the user to be included in ID
// tokens.
type UserClaimsFunc func(ctx context.Context, sub string, scopes []string) (map[string]any, error)

type AuditSink interface {
	Send(ctx context.Context, entry AuditEntry) error
}

// PushDeliverer transmits tokens to a client in CIBA push mode.
type PushDeliverer interface {
	Deliver(ctx context.Context, notification PushNotification) error
}

type MiddlewareFunc func(next http.Handler) http.Handler

func ApplyMiddlewares(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, middleware := range middlewares {
		handler = middleware(handler)
	}
	return handler
}

func CacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Avoid caching.
		w.Header().Set("Cache-Control", "no-cache, no-store")
		w.Header().Set("Pragma", "no-cache")

		next.ServeHTTP(w, r)
	})
}
