package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/luikyv/go-authorize/internal/ratelimit"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

type ProviderOption func(p *Provider) error

// WithClientStorage replaces the default client storage which keeps the
// clients stored in memory.
func WithClientStorage(storage goidc.ClientManager) ProviderOption {
	return func(p *Provider) error {
		p.config.ClientManager = storage
		return nil
	}
}

// WithSessionStorage replaces the default session storage which keeps the
// sessions stored in memory.
func WithSessionStorage(storage goidc.SessionManager) ProviderOption {
	return func(p *Provider) error {
		p.config.SessionManager = storage
		return nil
	}
}

// WithGrantStorage replaces the default grant storage which keeps the grants
// stored in memory.
func WithGrantStorage(storage goidc.GrantManager) ProviderOption {
	return func(p *Provider) error {
		p.config.GrantManager = storage
		return nil
	}
}

// WithClientAuthorizationStorage replaces the default storage of the scopes
// users consented to.
func WithClientAuthorizationStorage(storage goidc.ClientAuthorizationManager) ProviderOption {
	return func(p *Provider) error {
		p.config.ClientAuthorizationManager = storage
		return nil
	}
}

// WithStaticClient adds a client that is resolved without the client storage.
// Static clients are never written to the storage.
func WithStaticClient(client *goidc.Client) ProviderOption {
	return func(p *Provider) error {
		if client == nil || client.ID == "" {
			return errors.New("static clients must have an id")
		}
		p.config.StaticClients = append(p.config.StaticClients, client)
		return nil
	}
}

// WithPathPrefix defines a shared prefix for all endpoints.
// When using the provider http handler directly, the path prefix must be added
// to the router.
//
//	op, err := provider.New(
//		"http://example.com",
//		jwks,
//		provider.WithPathPrefix("/auth"),
//	)
//	server := http.NewServeMux()
//	server.Handle("/auth/", op.Handler())
func WithPathPrefix(prefix string) ProviderOption {
	return func(p *Provider) error {
		p.config.EndpointPrefix = prefix
		return nil
	}
}

// WithAuthorizeEndpoint overrides the default value for the authorization
// endpoint which is [goidc.EndpointAuthorize].
func WithAuthorizeEndpoint(endpoint string) ProviderOption {
	return func(p *Provider) error {
		p.config.EndpointAuthorize = endpoint
		return nil
	}
}

// WithLoginPageEndpoint overrides the path of the page that authenticates
// users and collects consent, [goidc.EndpointInteractiveAuthorize] by
// default. The authorization endpoint redirects the user agent there with
// the original parameters.
func WithLoginPageEndpoint(endpoint string) ProviderOption {
	return func(p *Provider) error {
		p.config.EndpointInteractiveAuthorize = endpoint
		return nil
	}
}

// WithScopes defines the scopes known by the server. Requested scopes
// outside this list are never granted.
// If not informed, any scope allowed for the client is accepted.
func WithScopes(scopes ...string) ProviderOption {
	return func(p *Provider) error {
		if !slices.Contains(scopes, goidc.ScopeOpenID) {
			return errors.New("the openid scope must be supported")
		}
		p.config.Scopes = scopes
		return nil
	}
}

// WithScopePolicy replaces how requested scopes are narrowed into the ones
// granted to a client.
func WithScopePolicy(f goidc.ScopePolicyFunc) ProviderOption {
	return func(p *Provider) error {
		p.config.ScopePolicyFunc = f
		return nil
	}
}

// WithGrantTypes restricts the grant types the server supports. By default
// the authorization code, implicit and refresh token grants are enabled.
func WithGrantTypes(grantTypes ...goidc.GrantType) ProviderOption {
	return func(p *Provider) error {
		if len(grantTypes) == 0 {
			return errors.New("at least one grant type must be informed")
		}
		p.config.GrantTypes = grantTypes
		return nil
	}
}

// WithIDTokenSignatureAlgorithm sets the default algorithm used to sign ID
// tokens. A key with this algorithm must be present in the server JWKS.
func WithIDTokenSignatureAlgorithm(alg jose.SignatureAlgorithm) ProviderOption {
	return func(p *Provider) error {
		p.config.IDTokenDefaultSigAlg = alg
		return nil
	}
}

// WithIDTokenLifetime overrides the default ID token lifetime.
func WithIDTokenLifetime(secs int) ProviderOption {
	return func(p *Provider) error {
		if secs <= 0 {
			return errors.New("the id token lifetime must be positive")
		}
		p.config.IDTokenLifetimeSecs = secs
		return nil
	}
}

// WithLegacyIDTokenClaims makes ID tokens issued together with an
// authorization code or access token carry all the user claims.
func WithLegacyIDTokenClaims() ProviderOption {
	return func(p *Provider) error {
		p.config.LegacyIDTokenClaims = true
		return nil
	}
}

// WithUserClaims defines how the claims about users are retrieved.
func WithUserClaims(f goidc.UserClaimsFunc) ProviderOption {
	return func(p *Provider) error {
		p.config.UserClaimsFunc = f
		return nil
	}
}

// WithTokenLifetimes overrides the lifetimes of access tokens, authorization
// codes and refresh tokens. Zero values keep the defaults.
func WithTokenLifetimes(accessTokenSecs, codeSecs, refreshTokenSecs int) ProviderOption {
	return func(p *Provider) error {
		if accessTokenSecs < 0 || codeSecs < 0 || refreshTokenSecs < 0 {
			return errors.New("token lifetimes cannot be negative")
		}
		p.config.AccessTokenLifetimeSecs = accessTokenSecs
		p.config.AuthorizationCodeLifetimeSecs = codeSecs
		p.config.RefreshTokenLifetimeSecs = refreshTokenSecs
		return nil
	}
}

// WithJARSignatureAlgs defines the algorithms accepted for signed request
// objects.
func WithJARSignatureAlgs(algs ...jose.SignatureAlgorithm) ProviderOption {
	return func(p *Provider) error {
		p.config.JARSigAlgs = algs
		return nil
	}
}

// WithJAREncryption allows encrypted request objects. The server JWKS must
// have an encryption key for each key algorithm.
func WithJAREncryption(keyAlgs []jose.KeyAlgorithm, contentAlgs ...jose.ContentEncryption) ProviderOption {
	return func(p *Provider) error {
		if len(keyAlgs) == 0 {
			return errors.New("at least one key encryption algorithm must be informed")
		}
		p.config.JARKeyEncAlgs = keyAlgs
		p.config.JARContentEncAlgs = contentAlgs
		return nil
	}
}

// WithJARLeeway sets the clock skew tolerated when validating the time claims
// of request objects.
func WithJARLeeway(secs int) ProviderOption {
	return func(p *Provider) error {
		p.config.JARLeewayTimeSecs = secs
		return nil
	}
}

// WithRequestObjectVerifier replaces the built in verification of request
// objects.
func WithRequestObjectVerifier(f goidc.VerifyRequestObjectFunc) ProviderOption {
	return func(p *Provider) error {
		p.config.VerifyRequestObjectFunc = f
		return nil
	}
}

// WithHTTPClientFunc defines how HTTP clients are created to fetch request
// URIs and client JWKS.
func WithHTTPClientFunc(f func(ctx context.Context) *http.Client) ProviderOption {
	return func(p *Provider) error {
		p.config.HTTPClientFunc = f
		return nil
	}
}

// WithAuthnFilters registers filters that may authenticate users silently,
// which allows prompt=none requests without a session. The filters run in
// the order informed.
func WithAuthnFilters(filters ...goidc.AuthnFilterFunc) ProviderOption {
	return func(p *Provider) error {
		p.config.AuthnFilters = append(p.config.AuthnFilters, filters...)
		return nil
	}
}

// WithACRLevels sets the strength of each authentication context reference.
func WithACRLevels(levels map[string]int) ProviderOption {
	return func(p *Provider) error {
		p.config.ACRLevels = levels
		return nil
	}
}

// WithACRChangeForcesReauthn makes requests asking for a stronger acr than
// the one of the current session restart the authentication. Otherwise they
// fail with session_selection_required.
func WithACRChangeForcesReauthn() ProviderOption {
	return func(p *Provider) error {
		p.config.ACRChangeForcesReauthn = true
		return nil
	}
}

// WithAuthnForMaxAgeZeroDisabled makes max_age=0 behave as if it weren't
// informed.
func WithAuthnForMaxAgeZeroDisabled() ProviderOption {
	return func(p *Provider) error {
		p.config.DisableAuthnForMaxAgeZero = true
		return nil
	}
}

// WithSessionCookie overrides the name of the session cookie, "session_id"
// by default.
func WithSessionCookie(name string, secure bool) ProviderOption {
	return func(p *Provider) error {
		p.config.SessionCookieName = name
		p.config.SessionCookieSecure = secure
		return nil
	}
}

// WithSessionLifetime overrides the default session lifetime.
func WithSessionLifetime(secs int) ProviderOption {
	return func(p *Provider) error {
		if secs <= 0 {
			return errors.New("the session lifetime must be positive")
		}
		p.config.SessionLifetimeSecs = secs
		return nil
	}
}

// WithAllowedSessionParams defines the request parameters copied into the
// attributes of sessions.
func WithAllowedSessionParams(params ...string) ProviderOption {
	return func(p *Provider) error {
		p.config.AllowedSessionParams = params
		return nil
	}
}

// WithCustomParams defines non standard request parameters that are kept
// when redirecting to the login page.
func WithCustomParams(params ...string) ProviderOption {
	return func(p *Provider) error {
		p.config.CustomParams = params
		return nil
	}
}

// WithCustomResponseHeaders allows clients to ask for extra headers in the
// authorization response with the custom_response_headers parameter.
func WithCustomResponseHeaders() ProviderOption {
	return func(p *Provider) error {
		p.config.CustomHeadersInAuthorizationResponse = true
		return nil
	}
}

// WithCIBA enables the push delivery of tokens for backchannel requests
// authorized at the authorization endpoint.
func WithCIBA(deliverer goidc.PushDeliverer) ProviderOption {
	return func(p *Provider) error {
		if deliverer == nil {
			return errors.New("a push deliverer is required for ciba")
		}
		p.config.CIBAIsEnabled = true
		p.config.PushDeliverer = deliverer
		p.config.GrantTypes = appendGrant(p.config.GrantTypes, goidc.GrantCIBA)
		return nil
	}
}

// WithAuditSink defines where the audit entries of authorization requests are
// sent.
func WithAuditSink(sink goidc.AuditSink) ProviderOption {
	return func(p *Provider) error {
		p.config.AuditSink = sink
		return nil
	}
}

func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) error {
		p.config.Logger = logger
		return nil
	}
}

// WithRateLimit throttles requests per user agent address.
func WithRateLimit(requestsPerWindow int, window time.Duration, burst int) ProviderOption {
	return func(p *Provider) error {
		if requestsPerWindow < 0 || window < 0 || burst < 0 {
			return errors.New("invalid rate limit")
		}
		p.rateLimit = ratelimit.Config{
			RequestsPerWindow: requestsPerWindow,
			Window:            window,
			Burst:             burst,
		}
		return nil
	}
}

// WithServerTimeouts overrides how long the server waits for request headers
// and for in flight requests when shutting down. Zero values keep the
// defaults.
func WithServerTimeouts(readHeader, shutdown time.Duration) ProviderOption {
	return func(p *Provider) error {
		if readHeader > 0 {
			p.readHeaderTimeout = readHeader
		}
		if shutdown > 0 {
			p.shutdownTimeout = shutdown
		}
		return nil
	}
}

// appendGrant adds the grant type keeping the defaults when none was
// configured yet.
func appendGrant(grantTypes []goidc.GrantType, grantType goidc.GrantType) []goidc.GrantType {
	if grantTypes == nil {
		grantTypes = slices.Clone(defaultGrantTypes)
	}
	if slices.Contains(grantTypes, grantType) {
		return grantTypes
	}
	return append(grantTypes, grantType)
}
