// Package oidctest contains helpers to test the authorization server
// internals.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/storage"
	"github.com/luikyv/go-authorize/pkg/goidc"
	"github.com/stretchr/testify/require"
)

const (
	Host              string = "https://example.com"
	KeyID             string = "test_rsa256_key"
	ClientID          string = "test_client_id"
	ClientKeyID       string = "test_client_key"
	ClientRedirectURI string = "https://example.com/callback"
	Scope1            string = "scope1"
	Scope2            string = "scope2"
)

var (
	ServerPrivateJWK = PrivateRS256JWK(nil, KeyID)
	ClientPrivateJWK = PrivateRS256JWK(nil, ClientKeyID)
)

func NewClient(_ *testing.T) *goidc.Client {
	return &goidc.Client{
		ID:           ClientID,
		RedirectURIs: []string{ClientRedirectURI},
		Scopes:       Scope1 + " " + Scope2 + " " + goidc.ScopeOpenID,
		GrantTypes: []goidc.GrantType{
			goidc.GrantAuthorizationCode,
			goidc.GrantImplicit,
			goidc.GrantRefreshToken,
		},
		ResponseTypes: []goidc.ResponseType{
			goidc.ResponseTypeCode,
			goidc.ResponseTypeIDToken,
			goidc.ResponseTypeToken,
			goidc.ResponseTypeCodeAndIDToken,
			goidc.ResponseTypeCodeAndToken,
			goidc.ResponseTypeIDTokenAndToken,
			goidc.ResponseTypeCodeAndIDTokenAndToken,
		},
		PublicJWKS: RawJWKS(ClientPrivateJWK.Public()),
	}
}

// NewContext returns a context backed by in memory storage and a response
// recorder. The test client is already registered.
func NewContext(t *testing.T) *oidc.Context {
	config := &oidc.Configuration{
		ClientManager:              storage.NewClientManager(),
		SessionManager:             storage.NewSessionManager(0),
		GrantManager:               storage.NewGrantManager(),
		ClientAuthorizationManager: storage.NewClientAuthorizationManager(),

		Host:                         Host,
		PrivateJWKS:                  jose.JSONWebKeySet{Keys: []jose.JSONWebKey{ServerPrivateJWK}},
		EndpointAuthorize:            goidc.EndpointAuthorize,
		EndpointInteractiveAuthorize: goidc.EndpointInteractiveAuthorize,

		GrantTypes: []goidc.GrantType{
			goidc.GrantAuthorizationCode,
			goidc.GrantImplicit,
			goidc.GrantRefreshToken,
			goidc.GrantCIBA,
		},
		Scopes: []string{goidc.ScopeOpenID, Scope1, Scope2},

		IDTokenDefaultSigAlg:          jose.RS256,
		IDTokenLifetimeSecs:           60,
		AccessTokenLifetimeSecs:       60,
		AuthorizationCodeLifetimeSecs: 60,
		RefreshTokenLifetimeSecs:      600,

		JARSigAlgs:        []jose.SignatureAlgorithm{jose.RS256},
		JARKeyEncAlgs:     []jose.KeyAlgorithm{jose.RSA_OAEP_256},
		JARContentEncAlgs: []jose.ContentEncryption{jose.A128CBC_HS256},

		ACRChangeForcesReauthn: true,
		SessionCookieName:      "session_id",
		SessionLifetimeSecs:    3600,

		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	ctx := oidc.NewContext(
		httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, goidc.EndpointAuthorize, nil),
		config,
	)

	require.Nil(t, ctx.SaveClient(NewClient(t)), "could not create the test client")

	return &ctx
}

func Sessions(_ *testing.T, ctx *oidc.Context) []*goidc.Session {
	manager, _ := ctx.SessionManager.(*storage.SessionManager)
	sessions := make([]*goidc.Session, 0, len(manager.Sessions))
	for _, s := range manager.Sessions {
		sessions = append(sessions, s)
	}

	return sessions
}

func Grants(_ *testing.T, ctx *oidc.Context) []*goidc.Grant {
	manager, _ := ctx.GrantManager.(*storage.GrantManager)
	grants := make([]*goidc.Grant, 0, len(manager.Grants))
	for _, g := range manager.Grants {
		grants = append(grants, g)
	}

	return grants
}

func Clients(_ *testing.T, ctx *oidc.Context) []*goidc.Client {
	manager, _ := ctx.ClientManager.(*storage.ClientManager)
	clients := make([]*goidc.Client, 0, len(manager.Clients))
	for _, c := range manager.Clients {
		clients = append(clients, c)
	}

	return clients
}

// NewAuthenticatedSession persists a session authenticated for sub.
func NewAuthenticatedSession(t *testing.T, ctx *oidc.Context, sub string, authTime int) *goidc.Session {
	session := &goidc.Session{
		ID:                 "random_session_id",
		OPBrowserState:     "random_opbs",
		CreatedAtTimestamp: authTime,
	}
	session.Authenticate(sub, authTime)
	require.Nil(t, ctx.SaveSession(session), "could not create the test session")
	return session
}

func RawJWKS(jwk jose.JSONWebKey) []byte {
	jwks, _ := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	return jwks
}

func PrivateRS256JWK(t *testing.T, keyID string) jose.JSONWebKey {
	return PrivateRS256JWKWithUsage(t, keyID, goidc.KeyUsageSignature)
}

func PrivateRS256JWKWithUsage(
	_ *testing.T,
	keyID string,
	usage goidc.KeyUsage,
) jose.JSONWebKey {
	privateKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	alg := string(jose.RS256)
	if usage == goidc.KeyUsageEncryption {
		alg = string(jose.RSA_OAEP_256)
	}
	return jose.JSONWebKey{
		Key:       privateKey,
		KeyID:     keyID,
		Algorithm: alg,
		Use:       string(usage),
	}
}

// Sign signs the claims with the JWK informed.
func Sign(t *testing.T, claims any, jwk jose.JSONWebKey) string {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.SignatureAlgorithm(jwk.Algorithm), Key: jwk.Key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", jwk.KeyID),
	)
	require.Nil(t, err)

	jws, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.Nil(t, err)

	return jws
}

func SafeClaims(t *testing.T, jws string, privateJWK jose.JSONWebKey) map[string]any {
	parsedToken, err := jwt.ParseSigned(jws, []jose.SignatureAlgorithm{jose.SignatureAlgorithm(privateJWK.Algorithm)})
	require.Nil(t, err, "invalid JWT")

	var claims map[string]any
	err = parsedToken.Claims(privateJWK.Public().Key, &claims)
	require.Nil(t, err, "could not read claims")

	return claims
}
