package authorize_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/luikyv/go-authorize/internal/authorize"
	"github.com/luikyv/go-authorize/internal/hashutil"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/oidctest"
	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	user  = "random_user"
	state = "random_state"
	nonce = "random_nonce"
)

func TestAuthorize_CodeWithAuthenticatedSession(t *testing.T) {
	// Given.
	ctx, audit := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID, oidctest.Scope1)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {oidctest.ClientRedirectURI},
		"scope":         {"openid scope1"},
		"state":         {state},
	}, sessionCookie())

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Equal(t, oidctest.ClientRedirectURI, baseURL(redirectURL))
	assert.NotEmpty(t, params.Get("code"))
	assert.Equal(t, state, params.Get("state"))
	assert.Equal(t, "random_session_id", params.Get("session_id"))
	assert.NotEmpty(t, params.Get("session_state"))
	assert.Equal(t, "openid scope1", params.Get("scope"))
	assert.Empty(t, params.Get("access_token"))
	assert.Empty(t, params.Get("id_token"))

	grants := oidctest.Grants(t, ctx)
	require.Len(t, grants, 1)
	assert.Equal(t, goidc.GrantAuthorizationCode, grants[0].Type)
	assert.Equal(t, user, grants[0].Subject)
	assert.Equal(t, params.Get("code"), grants[0].AuthorizationCode)
	assert.Equal(t, []string{goidc.ScopeOpenID, oidctest.Scope1}, grants[0].Scopes)

	session, err := ctx.Session("random_session_id")
	require.Nil(t, err)
	assert.True(t, session.IsPermissionGranted(oidctest.ClientID))

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, goidc.AuditActionUserAuthorization, entry.Action)
	assert.Equal(t, oidctest.ClientID, entry.ClientID)
	assert.Equal(t, "openid scope1", entry.Scope)
	assert.Equal(t, user, entry.Username)
	assert.True(t, entry.Success)
	assert.NotZero(t, entry.Timestamp)
}

func TestAuthorize_Post(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID)

	form := url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {state},
	}
	req := httptest.NewRequest(http.MethodPost, goidc.EndpointAuthorize, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(sessionCookie())

	// When.
	w := do(ctx, req)

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))
	assert.Equal(t, state, params.Get("state"))
}

func TestAuthorize_PromptConsent(t *testing.T) {
	// Given.
	ctx, audit := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {state},
		"prompt":        {"consent select_account"},
	}, sessionCookie())

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Equal(t, oidctest.Host+goidc.EndpointInteractiveAuthorize, baseURL(redirectURL))
	assert.Equal(t, "code", params.Get("response_type"))
	assert.Equal(t, "openid", params.Get("scope"))
	assert.Equal(t, oidctest.ClientID, params.Get("client_id"))
	assert.Equal(t, oidctest.ClientRedirectURI, params.Get("redirect_uri"))
	assert.Equal(t, state, params.Get("state"))
	assert.Equal(t, "select_account", params.Get("prompt"))
	assert.Empty(t, oidctest.Grants(t, ctx))

	require.Len(t, audit.entries, 1)
	assert.False(t, audit.entries[0].Success)
}

func TestAuthorize_PromptNoneWithoutAuthnFilters(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {state},
		"prompt":        {"none"},
	})

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Equal(t, oidctest.ClientRedirectURI, baseURL(redirectURL))
	assert.Equal(t, "login_required", params.Get("error"))
	assert.Equal(t, state, params.Get("state"))
}

func TestAuthorize_PromptNoneClearsStaleSessionCookie(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	session := oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	session.Logout()

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"prompt":        {"none"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "login_required", params.Get("error"))

	cookie := responseCookie(w, "session_id")
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestAuthorize_PromptNoneWithAuthnFilter(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.AuthnFilters = []goidc.AuthnFilterFunc{
		func(_ context.Context, params map[string]string) (goidc.AuthnResult, bool) {
			return goidc.AuthnResult{Subject: params["login_hint"], ACR: "pwd"}, params["login_hint"] != ""
		},
	}
	client(t, ctx).IsTrusted = true

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {state},
		"prompt":        {"none"},
		"login_hint":    {user},
	})

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))

	sessions := oidctest.Sessions(t, ctx)
	require.Len(t, sessions, 1)
	assert.Equal(t, user, sessions[0].Subject)
	assert.Equal(t, "pwd", sessions[0].ACR)
	assert.True(t, sessions[0].IsAuthenticated())
	assert.Equal(t, sessions[0].ID, params.Get("session_id"))

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, sessions[0].ID, cookie.Value)
}

func TestAuthorize_PromptNoneWithUnmatchedAuthnFilter(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.AuthnFilters = []goidc.AuthnFilterFunc{
		func(_ context.Context, _ map[string]string) (goidc.AuthnResult, bool) {
			return goidc.AuthnResult{}, false
		},
	}

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"prompt":        {"none"},
	})

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "login_required", params.Get("error"))
	assert.Empty(t, oidctest.Sessions(t, ctx))
}

func TestAuthorize_NoSession(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.CustomParams = []string{"custom_b", "custom_a"}

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {oidctest.ClientRedirectURI},
		"scope":         {"openid scope1"},
		"state":         {state},
		"nonce":         {nonce},
		"max_age":       {"300"},
		"custom_a":      {"a"},
		"custom_b":      {"b"},
		"unknown":       {"value"},
	})

	// Then.
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t,
		"https://example.com/authorize.htm?response_type=code&scope=openid+scope1&client_id=test_client_id"+
			"&redirect_uri=https%3A%2F%2Fexample.com%2Fcallback&state=random_state&nonce=random_nonce"+
			"&max_age=300&custom_a=a&custom_b=b",
		w.Header().Get("Location"),
	)
}

func TestAuthorize_UnknownClient(t *testing.T) {
	// Given.
	ctx, audit := setUp(t)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {"unknown_client"},
		"response_type": {"code"},
		"scope":         {"openid"},
	})

	// Then.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, goidc.ErrorCodeUnauthorizedClient, jsonErrorCode(t, w))

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "unknown_client", audit.entries[0].ClientID)
	assert.False(t, audit.entries[0].Success)
}

func TestAuthorize_MissingClientID(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)

	// When.
	w := serve(t, ctx, url.Values{"response_type": {"code"}})

	// Then.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, goidc.ErrorCodeUnauthorizedClient, jsonErrorCode(t, w))
}

func TestAuthorize_InvalidRedirectURI(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {"https://attacker.com/callback"},
	})

	// Then.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, goidc.ErrorCodeInvalidRequestRedirectURI, jsonErrorCode(t, w))
}

func TestAuthorize_InvalidParams(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":    {oidctest.ClientID},
		"redirect_uri": {oidctest.ClientRedirectURI},
		"state":        {state},
	})

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Equal(t, oidctest.ClientRedirectURI, baseURL(redirectURL))
	assert.Equal(t, "invalid_request", params.Get("error"))
	assert.Equal(t, state, params.Get("state"))
}

func TestAuthorize_InvalidParamsAndRedirectURI(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {"https://attacker.com/callback"},
		"prompt":        {"none login"},
	})

	// Then.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, goidc.ErrorCodeInvalidRequest, jsonErrorCode(t, w))
}

func TestAuthorize_UnsupportedResponseType(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	client(t, ctx).GrantTypes = []goidc.GrantType{goidc.GrantAuthorizationCode}

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"token"},
		"scope":         {"openid"},
		"state":         {state},
	})

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.NotEmpty(t, redirectURL.Fragment)
	assert.Equal(t, "unsupported_response_type", params.Get("error"))
	assert.Equal(t, state, params.Get("state"))
}

func TestAuthorize_Token(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"token"},
		"scope":         {"openid"},
		"state":         {state},
	}, sessionCookie())

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Empty(t, redirectURL.RawQuery)
	assert.NotEmpty(t, params.Get("access_token"))
	assert.Equal(t, "Bearer", params.Get("token_type"))
	assert.Equal(t, "60", params.Get("expires_in"))
	assert.Empty(t, params.Get("code"))

	grants := oidctest.Grants(t, ctx)
	require.Len(t, grants, 1)
	assert.Equal(t, goidc.GrantImplicit, grants[0].Type)
	assert.Equal(t, params.Get("access_token"), grants[0].AccessToken)
}

func TestAuthorize_CodeAndIDTokenShareTheGrant(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code id_token"},
		"scope":         {"openid"},
		"state":         {state},
		"nonce":         {nonce},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	code := params.Get("code")
	require.NotEmpty(t, code)
	idToken := params.Get("id_token")
	require.NotEmpty(t, idToken)

	grants := oidctest.Grants(t, ctx)
	require.Len(t, grants, 1)
	assert.Equal(t, code, grants[0].AuthorizationCode)

	claims := oidctest.SafeClaims(t, idToken, oidctest.ServerPrivateJWK)
	assert.Equal(t, user, claims["sub"])
	assert.Equal(t, nonce, claims["nonce"])
	assert.Equal(t, "random_session_id", claims["sid"])
	assert.NotEmpty(t, claims["c_hash"])
	assert.NotEmpty(t, claims["s_hash"])
	assert.NotContains(t, claims, "at_hash")
}

func TestAuthorize_IDTokenOnlyIncludesUserClaims(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.UserClaimsFunc = func(_ context.Context, _ string, _ []string) (map[string]any, error) {
		return map[string]any{"email": "random@example.com"}, nil
	}
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"id_token"},
		"scope":         {"openid"},
		"nonce":         {nonce},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	claims := oidctest.SafeClaims(t, params.Get("id_token"), oidctest.ServerPrivateJWK)
	assert.Equal(t, "random@example.com", claims["email"])

	grants := oidctest.Grants(t, ctx)
	require.Len(t, grants, 1)
	assert.Equal(t, goidc.GrantImplicit, grants[0].Type)
}

func TestIssueGrant_SessionIDIsSharedWithTheIDToken(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	session := &goidc.Session{OPBrowserState: "random_opbs"}
	session.Authenticate(user, timeutil.TimestampNow())
	req := authorize.NewRequest(url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"id_token"},
		"redirect_uri":  {oidctest.ClientRedirectURI},
		"scope":         {"openid"},
		"nonce":         {nonce},
	}, nil)

	// When.
	params, err := authorize.IssueGrant(*ctx, client(t, ctx), req, []string{goidc.ScopeOpenID}, session)

	// Then.
	require.Nil(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, session.ID, params["session_id"])
	claims := oidctest.SafeClaims(t, params["id_token"], oidctest.ServerPrivateJWK)
	assert.Equal(t, session.ID, claims["sid"])
}

func TestAuthorize_IDTokenWithoutNonce(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"id_token"},
		"scope":         {"openid"},
		"state":         {state},
	})

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "invalid_request", params.Get("error"))
}

func TestAuthorize_DefaultACRValues(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	client(t, ctx).DefaultACRValues = []string{"pwd"}
	session := oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	session.ACR = "pwd"
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "pwd", params.Get("acr_values"))

	grants := oidctest.Grants(t, ctx)
	require.Len(t, grants, 1)
	assert.Equal(t, "pwd", grants[0].ACRValues)
}

func TestAuthorize_ACRChangedFatal(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.ACRChangeForcesReauthn = false
	ctx.ACRLevels = map[string]int{"pwd": 1, "otp": 2}
	session := oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	session.ACR = "pwd"

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {state},
		"acr_values":    {"otp"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "session_selection_required", params.Get("error"))
	assert.Equal(t, state, params.Get("state"))
	assert.Equal(t, "Use prompt=login in order to alter existing session.", params.Get("hint"))
}

func TestAuthorize_ACRChangedRecoverable(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.ACRLevels = map[string]int{"pwd": 1, "otp": 2}
	session := oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	session.ACR = "pwd"

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"acr_values":    {"otp"},
	}, sessionCookie())

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Equal(t, oidctest.Host+goidc.EndpointInteractiveAuthorize, baseURL(redirectURL))
	assert.Equal(t, "otp", params.Get("acr_values"))
	assert.Empty(t, params.Get("prompt"))

	session, err := ctx.Session("random_session_id")
	require.Nil(t, err)
	assert.Equal(t, goidc.SessionStateUnauthenticated, session.State)
	assert.Equal(t, "login", session.Attribute("prompt"))
}

func TestAuthorize_ACRChangedRecoverableCannotBeReplayed(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.ACRLevels = map[string]int{"pwd": 1, "otp": 2}
	session := oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	session.ACR = "pwd"
	consent(t, ctx, goidc.ScopeOpenID)
	params := url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"acr_values":    {"otp"},
	}
	first := serve(t, ctx, params, sessionCookie())
	firstURL, _ := redirectParams(t, first)
	require.Equal(t, oidctest.Host+goidc.EndpointInteractiveAuthorize, baseURL(firstURL))

	// When.
	w := serve(t, ctx, params, sessionCookie())

	// Then.
	redirectURL, replayParams := redirectParams(t, w)
	assert.Equal(t, oidctest.Host+goidc.EndpointInteractiveAuthorize, baseURL(redirectURL))
	assert.Empty(t, replayParams.Get("code"))
	assert.Empty(t, oidctest.Grants(t, ctx))
}

func TestAuthorize_WeakerACR(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.ACRLevels = map[string]int{"pwd": 1, "otp": 2}
	session := oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	session.ACR = "otp"
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"acr_values":    {"pwd"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))
}

func TestAuthorize_MaxAgeExceeded(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow()-120)
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"max_age":       {"60"},
	}, sessionCookie())

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Equal(t, oidctest.Host+goidc.EndpointInteractiveAuthorize, baseURL(redirectURL))
	assert.Equal(t, "60", params.Get("max_age"))
	assert.Empty(t, oidctest.Sessions(t, ctx))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "session_id=;")
}

func TestAuthorize_MaxAgeSatisfied(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow()-30)
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"max_age":       {"60"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))
}

func TestAuthorize_PromptLogin(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"prompt":        {"login"},
	}, sessionCookie())

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Equal(t, oidctest.Host+goidc.EndpointInteractiveAuthorize, baseURL(redirectURL))
	assert.Empty(t, params.Get("prompt"))
	assert.Empty(t, oidctest.Sessions(t, ctx))
	assert.Empty(t, oidctest.Grants(t, ctx))
}

func TestAuthorize_PasswordGrantSessionIsReset(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	ctx.AllowedSessionParams = []string{"login_hint"}
	session := oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	session.SetAttribute(goidc.SessionAttributeAuthorizedGrant, goidc.GrantPassword)
	session.SetAttribute("random_attribute", "random_value")
	consent(t, ctx, goidc.ScopeOpenID)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"login_hint":    {"random_hint"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))

	session, err := ctx.Session("random_session_id")
	require.Nil(t, err)
	assert.Equal(t, map[string]string{"login_hint": "random_hint"}, session.Attributes)
}

func TestAuthorize_PromptLoginWithoutUser(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	session := oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	session.State = goidc.SessionStateUnauthenticated

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"prompt":        {"login consent"},
	}, sessionCookie())

	// Then.
	redirectURL, params := redirectParams(t, w)
	assert.Equal(t, oidctest.Host+goidc.EndpointInteractiveAuthorize, baseURL(redirectURL))
	assert.Equal(t, "consent", params.Get("prompt"))
	assert.Empty(t, oidctest.Sessions(t, ctx))

	cookie := responseCookie(w, "session_id")
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestAuthorize_TrustedClientWithoutConsent(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	client(t, ctx).IsTrusted = true
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))
}

func TestAuthorize_ConsentRequired(t *testing.T) {
	testCases := []struct {
		name      string
		consented []string
	}{
		{"no consent recorded", nil},
		{"consent does not cover the scopes", []string{goidc.ScopeOpenID}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			// Given.
			ctx, _ := setUp(t)
			oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
			if testCase.consented != nil {
				consent(t, ctx, testCase.consented...)
			}

			// When.
			w := serve(t, ctx, url.Values{
				"client_id":     {oidctest.ClientID},
				"response_type": {"code"},
				"scope":         {"openid scope1"},
			}, sessionCookie())

			// Then.
			redirectURL, params := redirectParams(t, w)
			assert.Equal(t, oidctest.Host+goidc.EndpointInteractiveAuthorize, baseURL(redirectURL))
			assert.Equal(t, "openid scope1", params.Get("scope"))
			assert.Empty(t, oidctest.Grants(t, ctx))
		})
	}
}

func TestAuthorize_RequestObject(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID, oidctest.Scope1)
	reqObject := requestObject(t, map[string]any{
		"scope": "openid scope1",
		"state": "object_state",
		"nonce": nonce,
	})

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid scope1 scope2"},
		"state":         {state},
		"request":       {reqObject},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))
	assert.Equal(t, "object_state", params.Get("state"))
	assert.Equal(t, "openid scope1", params.Get("scope"))

	grants := oidctest.Grants(t, ctx)
	require.Len(t, grants, 1)
	assert.Equal(t, []string{goidc.ScopeOpenID, oidctest.Scope1}, grants[0].Scopes)
	assert.Equal(t, nonce, grants[0].Nonce)
	assert.Equal(t, reqObject, grants[0].RequestObject)
}

func TestAuthorize_RequestObjectWithDifferentClientID(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	reqObject := requestObject(t, map[string]any{"client_id": "other_client"})

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {state},
		"request":       {reqObject},
	})

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "invalid_openid_request_object", params.Get("error"))
	assert.Equal(t, state, params.Get("state"))
}

func TestAuthorize_RequestObjectWithoutOpenIDScope(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	reqObject := requestObject(t, map[string]any{"scope": "openid scope1"})

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"scope1"},
		"request":       {reqObject},
	})

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "invalid_scope", params.Get("error"))
}

func TestAuthorize_RequestObjectSignedByUnknownKey(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	reqObject := oidctest.Sign(t, map[string]any{
		"client_id":     oidctest.ClientID,
		"response_type": "code",
	}, oidctest.PrivateRS256JWK(t, oidctest.ClientKeyID))

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"request":       {reqObject},
	})

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "invalid_openid_request_object", params.Get("error"))
	assert.Equal(t, "Invalid JWT authorization request", params.Get("error_description"))
}

func TestAuthorize_RequestObjectWithDifferentUser(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	reqObject := requestObject(t, map[string]any{
		"claims": map[string]any{
			"id_token": map[string]any{
				"sub": map[string]any{"value": "other_user"},
			},
		},
	})

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"request":       {reqObject},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "user_mismatched", params.Get("error"))
}

func TestAuthorize_RequestURI(t *testing.T) {
	reqObject := requestObject(t, map[string]any{"scope": "openid"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(reqObject))
	}))
	t.Cleanup(server.Close)

	testCases := []struct {
		name          string
		hash          string
		expectedError string
	}{
		{"without hash", "", ""},
		{"matching hash", hashutil.Thumbprint(reqObject), ""},
		{"mismatching hash", hashutil.Thumbprint("random_object"), "invalid_request_uri"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			// Given.
			ctx, _ := setUp(t)
			oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
			consent(t, ctx, goidc.ScopeOpenID)
			requestURI := server.URL + "/request"
			if testCase.hash != "" {
				requestURI += "#" + testCase.hash
			}

			// When.
			w := serve(t, ctx, url.Values{
				"client_id":     {oidctest.ClientID},
				"response_type": {"code"},
				"scope":         {"openid"},
				"request_uri":   {requestURI},
			}, sessionCookie())

			// Then.
			_, params := redirectParams(t, w)
			assert.Equal(t, testCase.expectedError, params.Get("error"))
			if testCase.expectedError == "" {
				assert.NotEmpty(t, params.Get("code"))
			}
		})
	}
}

func TestAuthorize_RequestURIUnreachable(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"request_uri":   {server.URL},
	})

	// Then.
	_, params := redirectParams(t, w)
	assert.Equal(t, "invalid_request_uri", params.Get("error"))
}

func TestAuthorize_PanicIsInternalError(t *testing.T) {
	// Given.
	ctx, audit := setUp(t)
	ctx.ScopePolicyFunc = func(context.Context, *goidc.Client, []string) []string {
		panic("random panic")
	}

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
	})

	// Then.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, goidc.ErrorCodeInternalError, jsonErrorCode(t, w))
	require.Len(t, audit.entries, 1)
	assert.False(t, audit.entries[0].Success)
}

func TestAuthorize_CustomResponseHeaders(t *testing.T) {
	testCases := []struct {
		name           string
		enabled        bool
		expectedHeader string
	}{
		{"enabled", true, "random_value"},
		{"disabled", false, ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			// Given.
			ctx, _ := setUp(t)
			ctx.CustomHeadersInAuthorizationResponse = testCase.enabled
			oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
			consent(t, ctx, goidc.ScopeOpenID)

			// When.
			w := serve(t, ctx, url.Values{
				"client_id":               {oidctest.ClientID},
				"response_type":           {"code"},
				"scope":                   {"openid"},
				"custom_response_headers": {`[{"X-Random-Header": "random_value"}]`},
			}, sessionCookie())

			// Then.
			_, params := redirectParams(t, w)
			assert.NotEmpty(t, params.Get("code"))
			assert.Equal(t, testCase.expectedHeader, w.Header().Get("X-Random-Header"))
		})
	}
}

func TestAuthorize_MalformedCustomResponseHeaders(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":               {oidctest.ClientID},
		"response_type":           {"code"},
		"scope":                   {"openid"},
		"custom_response_headers": {"not json"},
	})

	// Then.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, goidc.ErrorCodeInvalidRequest, jsonErrorCode(t, w))
}

func TestAuthorize_CIBAPush(t *testing.T) {
	// Given.
	ctx, _ := setUp(t)
	deliverer := &pushDeliverer{}
	ctx.CIBAIsEnabled = true
	ctx.PushDeliverer = deliverer
	c := client(t, ctx)
	c.CIBATokenDeliveryMode = goidc.CIBATokenDeliveryModePush
	c.CIBANotificationEndpoint = "https://example.com/ciba"

	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID)
	cibaGrant := &goidc.Grant{
		ID:                       "random_ciba_grant",
		Type:                     goidc.GrantCIBA,
		Subject:                  user,
		ClientID:                 oidctest.ClientID,
		AuthenticatedAtTimestamp: timeutil.TimestampNow(),
		Scopes:                   []string{goidc.ScopeOpenID},
		AuthReqID:                "random_auth_req_id",
		ClientNotificationToken:  "random_notification_token",
	}
	require.Nil(t, ctx.SaveGrant(cibaGrant))

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"auth_req_id":   {"random_auth_req_id"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))

	require.Len(t, deliverer.notifications, 1)
	notification := deliverer.notifications[0]
	assert.Equal(t, "random_auth_req_id", notification.AuthReqID)
	assert.Equal(t, "https://example.com/ciba", notification.Endpoint)
	assert.Equal(t, "random_notification_token", notification.ClientNotificationToken)
	assert.Equal(t, "Bearer", notification.TokenType)
	assert.Equal(t, 60, notification.ExpiresIn)
	assert.NotEmpty(t, notification.AccessToken)
	assert.NotEmpty(t, notification.RefreshToken)
	assert.NotEmpty(t, notification.IDToken)

	assert.Equal(t, notification.AccessToken, cibaGrant.AccessToken)
	assert.Equal(t, notification.RefreshToken, cibaGrant.RefreshToken)
}

func TestAuthorize_CIBAPushFailureIsIgnored(t *testing.T) {
	// Given.
	ctx, audit := setUp(t)
	ctx.CIBAIsEnabled = true
	ctx.PushDeliverer = &pushDeliverer{err: errors.New("random error")}
	client(t, ctx).CIBATokenDeliveryMode = goidc.CIBATokenDeliveryModePush

	oidctest.NewAuthenticatedSession(t, ctx, user, timeutil.TimestampNow())
	consent(t, ctx, goidc.ScopeOpenID)
	require.Nil(t, ctx.SaveGrant(&goidc.Grant{
		ID:        "random_ciba_grant",
		Type:      goidc.GrantCIBA,
		Subject:   user,
		ClientID:  oidctest.ClientID,
		AuthReqID: "random_auth_req_id",
	}))

	// When.
	w := serve(t, ctx, url.Values{
		"client_id":     {oidctest.ClientID},
		"response_type": {"code"},
		"scope":         {"openid"},
		"auth_req_id":   {"random_auth_req_id"},
	}, sessionCookie())

	// Then.
	_, params := redirectParams(t, w)
	assert.NotEmpty(t, params.Get("code"))
	require.Len(t, audit.entries, 1)
	assert.True(t, audit.entries[0].Success)
}

func setUp(t *testing.T) (*oidc.Context, *auditSink) {
	t.Helper()
	ctx := oidctest.NewContext(t)
	sink := &auditSink{}
	ctx.AuditSink = sink
	return ctx, sink
}

func serve(t *testing.T, ctx *oidc.Context, params url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, goidc.EndpointAuthorize+"?"+params.Encode(), nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	return do(ctx, req)
}

func do(ctx *oidc.Context, req *http.Request) *httptest.ResponseRecorder {
	router := http.NewServeMux()
	authorize.RegisterHandlers(router, ctx.Configuration)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sessionCookie() *http.Cookie {
	return &http.Cookie{Name: "session_id", Value: "random_session_id"}
}

func consent(t *testing.T, ctx *oidc.Context, scopes ...string) {
	t.Helper()
	err := ctx.ClientAuthorizationManager.Save(context.Background(), &goidc.ClientAuthorization{
		Subject:  user,
		ClientID: oidctest.ClientID,
		Scopes:   scopes,
	})
	require.Nil(t, err)
}

func client(t *testing.T, ctx *oidc.Context) *goidc.Client {
	t.Helper()
	c, err := ctx.Client(oidctest.ClientID)
	require.Nil(t, err)
	return c
}

// requestObject signs a request object for the test client. The claims
// informed override the default ones.
func requestObject(t *testing.T, claims map[string]any) string {
	t.Helper()
	now := timeutil.TimestampNow()
	defaultClaims := map[string]any{
		"iss":           oidctest.ClientID,
		"aud":           oidctest.Host,
		"iat":           now,
		"exp":           now + 60,
		"client_id":     oidctest.ClientID,
		"response_type": "code",
	}
	for name, value := range claims {
		defaultClaims[name] = value
	}
	return oidctest.Sign(t, defaultClaims, oidctest.ClientPrivateJWK)
}

// redirectParams returns the redirect URL and the parameters sent in either
// its fragment or its query.
func redirectParams(t *testing.T, w *httptest.ResponseRecorder) (*url.URL, url.Values) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, w.Code)

	redirectURL, err := url.Parse(w.Header().Get("Location"))
	require.Nil(t, err)

	if redirectURL.Fragment != "" {
		params, err := url.ParseQuery(redirectURL.EscapedFragment())
		require.Nil(t, err)
		return redirectURL, params
	}
	return redirectURL, redirectURL.Query()
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			cookie = c
		}
	}
	return cookie
}

func baseURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

func jsonErrorCode(t *testing.T, w *httptest.ResponseRecorder) goidc.ErrorCode {
	t.Helper()
	var body struct {
		Code goidc.ErrorCode `json:"error"`
	}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

type auditSink struct {
	mu      sync.Mutex
	entries []goidc.AuditEntry
}

func (s *auditSink) Send(_ context.Context, entry goidc.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

type pushDeliverer struct {
	notifications []goidc.PushNotification
	err           error
}

func (d *pushDeliverer) Deliver(_ context.Context, notification goidc.PushNotification) error {
	if d.err != nil {
		return d.err
	}
	d.notifications = append(d.notifications, notification)
	return nil
}
