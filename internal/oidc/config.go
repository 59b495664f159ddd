package oidc

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-jose/go-jose/v4"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

type Configuration struct {
	ClientManager              goidc.ClientManager
	SessionManager             goidc.SessionManager
	GrantManager               goidc.GrantManager
	ClientAuthorizationManager goidc.ClientAuthorizationManager
	StaticClients              []*goidc.Client

	// Host is the domain where the server runs. This value will be used as the
	// authorization server issuer.
	Host string
	// PrivateJWKS contains the server JWKS with private and public information.
	// Signing keys are used for ID tokens and encryption keys to decrypt
	// request objects.
	PrivateJWKS jose.JSONWebKeySet

	EndpointPrefix               string
	EndpointAuthorize            string
	EndpointInteractiveAuthorize string

	GrantTypes []goidc.GrantType
	// Scopes are the scopes the server knows about. When empty, any scope
	// allowed for the client is accepted.
	Scopes          []string
	ScopePolicyFunc goidc.ScopePolicyFunc

	IDTokenDefaultSigAlg jose.SignatureAlgorithm
	IDTokenLifetimeSecs  int
	// LegacyIDTokenClaims makes ID tokens issued alongside a code or access
	// token carry the full set of user claims.
	LegacyIDTokenClaims           bool
	UserClaimsFunc                goidc.UserClaimsFunc
	AccessTokenLifetimeSecs       int
	AuthorizationCodeLifetimeSecs int
	RefreshTokenLifetimeSecs      int

	JARSigAlgs              []jose.SignatureAlgorithm
	JARKeyEncAlgs           []jose.KeyAlgorithm
	JARContentEncAlgs       []jose.ContentEncryption
	JARLeewayTimeSecs       int
	VerifyRequestObjectFunc goidc.VerifyRequestObjectFunc
	HTTPClientFunc          func(ctx context.Context) *http.Client

	AuthnFilters []goidc.AuthnFilterFunc
	// ACRLevels maps authentication context references to their strength.
	ACRLevels map[string]int
	// ACRChangeForcesReauthn makes a request asking for a stronger acr than
	// the one of the current session restart the authentication instead of
	// failing with session_selection_required.
	ACRChangeForcesReauthn    bool
	DisableAuthnForMaxAgeZero bool

	SessionCookieName   string
	SessionCookieSecure bool
	SessionLifetimeSecs int
	// AllowedSessionParams are the request parameters copied into the
	// attributes of sessions.
	AllowedSessionParams []string
	// CustomParams are non standard request parameters preserved when
	// redirecting to the login page.
	CustomParams                         []string
	CustomHeadersInAuthorizationResponse bool

	CIBAIsEnabled bool
	PushDeliverer goidc.PushDeliverer

	AuditSink goidc.AuditSink
	Logger    *slog.Logger
}
