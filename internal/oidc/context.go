package oidc

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/luikyv/go-authorize/internal/slogx"
	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

type Context struct {
	Response http.ResponseWriter
	Request  *http.Request
	*Configuration
}

func NewContext(
	w http.ResponseWriter,
	r *http.Request,
	config *Configuration,
) Context {
	return Context{
		Configuration: config,
		Response:      w,
		Request:       r,
	}
}

func Handler(
	config *Configuration,
	exec func(ctx Context),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exec(NewContext(w, r, config))
	}
}

// Logger returns the logger attached to the request, falling back to the
// one configured for the server.
func (ctx Context) Logger() *slog.Logger {
	return slogx.FromContext(ctx.Context(), ctx.Configuration.Logger)
}

// CheckScopesPolicy resolves the requested scopes into the ones that can be
// granted to the client.
func (ctx Context) CheckScopesPolicy(c *goidc.Client, scopes []string) []string {
	if ctx.ScopePolicyFunc != nil {
		return ctx.ScopePolicyFunc(ctx, c, scopes)
	}

	allowed := c.ScopeIDs()
	var granted []string
	for _, s := range scopes {
		if !slices.Contains(allowed, s) || slices.Contains(granted, s) {
			continue
		}
		if len(ctx.Scopes) != 0 && !slices.Contains(ctx.Scopes, s) {
			continue
		}
		granted = append(granted, s)
	}
	return granted
}

func (ctx Context) AuthnFiltersAreEnabled() bool {
	return len(ctx.AuthnFilters) != 0
}

// AuthenticateSilently runs the authentication filters in order and returns
// the result of the first one that matches the parameters.
func (ctx Context) AuthenticateSilently(params map[string]string) (goidc.AuthnResult, bool) {
	for _, filter := range ctx.AuthnFilters {
		if result, ok := filter(ctx, params); ok && result.Subject != "" {
			return result, true
		}
	}
	return goidc.AuthnResult{}, false
}

func (ctx Context) UserClaims(sub string, scopes []string) (map[string]any, error) {
	if ctx.UserClaimsFunc == nil {
		return nil, nil
	}
	return ctx.UserClaimsFunc(ctx, sub, scopes)
}

// Audit sends the entry to the audit sink. Failures are only logged.
func (ctx Context) Audit(entry goidc.AuditEntry) {
	if ctx.AuditSink == nil {
		return
	}

	if err := ctx.AuditSink.Send(ctx, entry); err != nil {
		ctx.Logger().Error("could not send the audit entry",
			slog.String("audit_id", entry.ID), slog.String("error", err.Error()))
	}
}

// CIBAIsSupported reports whether push deliveries can be triggered.
func (ctx Context) CIBAIsSupported() bool {
	return ctx.CIBAIsEnabled && ctx.PushDeliverer != nil
}

//---------------------------------------- CRUD ----------------------------------------//

func (ctx Context) SaveClient(client *goidc.Client) error {
	if err := ctx.ClientManager.Save(ctx.Context(), client); err != nil {
		return fmt.Errorf("could not save the client: %w", err)
	}
	return nil
}

func (ctx Context) Client(id string) (*goidc.Client, error) {
	for _, staticClient := range ctx.StaticClients {
		if staticClient.ID == id {
			return staticClient, nil
		}
	}

	return ctx.ClientManager.Client(ctx.Context(), id)
}

// TouchClient records the access time of the client. Static clients are
// not persisted.
func (ctx Context) TouchClient(client *goidc.Client) error {
	if slices.Contains(ctx.StaticClients, client) {
		return nil
	}

	client.LastAccessedAtTimestamp = timeutil.TimestampNow()
	return ctx.SaveClient(client)
}

func (ctx Context) Session(id string) (*goidc.Session, error) {
	return ctx.SessionManager.Session(ctx.Context(), id)
}

func (ctx Context) SaveSession(session *goidc.Session) error {
	if err := ctx.SessionManager.Save(ctx.Context(), session); err != nil {
		return fmt.Errorf("could not save the session: %w", err)
	}
	return nil
}

func (ctx Context) DeleteSession(id string) error {
	if err := ctx.SessionManager.Delete(ctx.Context(), id); err != nil {
		return fmt.Errorf("could not delete the session: %w", err)
	}
	return nil
}

func (ctx Context) SaveGrant(grant *goidc.Grant) error {
	if err := ctx.GrantManager.Save(ctx.Context(), grant); err != nil {
		return fmt.Errorf("could not save the grant: %w", err)
	}
	return nil
}

func (ctx Context) GrantByAuthReqID(id string) (*goidc.Grant, error) {
	return ctx.GrantManager.GrantByAuthReqID(ctx.Context(), id)
}

func (ctx Context) ClientAuthorization(sub, clientID string) (*goidc.ClientAuthorization, error) {
	return ctx.ClientAuthorizationManager.ClientAuthorization(ctx.Context(), sub, clientID)
}

//---------------------------------------- HTTP Utils ----------------------------------------//

func (ctx Context) BaseURL() string {
	return ctx.Host + ctx.EndpointPrefix
}

func (ctx Context) Header(name string) (string, bool) {
	value := ctx.Request.Header.Get(name)
	if value == "" {
		return "", false
	}

	return value, true
}

// ClientIP returns the address of the user agent, considering the headers set
// by proxies.
func (ctx Context) ClientIP() string {
	if forwarded, ok := ctx.Header("X-Forwarded-For"); ok {
		ip, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(ip)
	}

	if realIP, ok := ctx.Header("X-Real-IP"); ok {
		return realIP
	}

	host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr)
	if err != nil {
		return ctx.Request.RemoteAddr
	}
	return host
}

// ClientCert parses the certificate sent in the X-ClientCert header. The
// header is expected to contain the URL encoded certificate in PEM format.
func (ctx Context) ClientCert() (*x509.Certificate, error) {
	rawClientCert, ok := ctx.Header(goidc.HeaderClientCert)
	if !ok {
		return nil, errors.New("the client certificate was not informed")
	}

	rawClientCert, err := url.QueryUnescape(rawClientCert)
	if err != nil {
		return nil, fmt.Errorf("could not url decode the client certificate: %w", err)
	}

	clientCertPEM, _ := pem.Decode([]byte(rawClientCert))
	if clientCertPEM == nil {
		return nil, errors.New("could not decode the client certificate")
	}

	clientCert, err := x509.ParseCertificate(clientCertPEM.Bytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse the client certificate: %w", err)
	}

	return clientCert, nil
}

func (ctx Context) SessionCookie() (string, bool) {
	cookie, err := ctx.Request.Cookie(ctx.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (ctx Context) SetSessionCookie(sessionID string) {
	http.SetCookie(ctx.Response, &http.Cookie{
		Name:     ctx.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   ctx.SessionLifetimeSecs,
		Secure:   ctx.SessionCookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (ctx Context) ClearSessionCookie() {
	http.SetCookie(ctx.Response, &http.Cookie{
		Name:     ctx.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   ctx.SessionCookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Write responds the current request writing obj as JSON.
func (ctx Context) Write(obj any, status int) error {
	// Check if the request was terminated before writing anything.
	select {
	case <-ctx.Context().Done():
		return nil
	default:
	}

	ctx.Response.Header().Set("Content-Type", "application/json")
	ctx.Response.WriteHeader(status)
	if err := json.NewEncoder(ctx.Response).Encode(obj); err != nil {
		return err
	}

	return nil
}

// WriteError responds with the JSON representation of err. Errors that are
// not a goidc.Error are rendered as internal errors.
func (ctx Context) WriteError(err error) {
	var oidcErr goidc.Error
	if !errors.As(err, &oidcErr) {
		ctx.Logger().Error("internal error", slog.String("error", err.Error()))
		oidcErr = goidc.NewError(goidc.ErrorCodeInternalError, "internal error")
	}

	if err := ctx.Write(oidcErr, oidcErr.StatusCode()); err != nil {
		ctx.Response.WriteHeader(http.StatusInternalServerError)
	}
}

func (ctx Context) Redirect(redirectURL string) {
	http.Redirect(ctx.Response, ctx.Request, redirectURL, http.StatusSeeOther)
}

func (ctx Context) HTTPClient() *http.Client {

	if ctx.HTTPClientFunc == nil {
		return http.DefaultClient
	}

	return ctx.HTTPClientFunc(ctx.Context())
}

//---------------------------------------- Key Management ----------------------------------------//

// IDTokenSigKey returns the server key used to sign ID tokens for the client.
func (ctx Context) IDTokenSigKey(c *goidc.Client) (jose.JSONWebKey, error) {
	if c.IDTokenSigAlg != "" {
		return ctx.privateKeyByAlg(c.IDTokenSigAlg)
	}

	return ctx.privateKeyByAlg(ctx.IDTokenDefaultSigAlg)
}

// privateKeyByAlg tries to find a signing key that matches the algorithm from
// the server JWKS.
func (ctx Context) privateKeyByAlg(alg jose.SignatureAlgorithm) (jose.JSONWebKey, error) {
	for _, jwk := range ctx.PrivateJWKS.Keys {
		if jwk.Algorithm == string(alg) && jwk.Use != string(goidc.KeyUsageEncryption) {
			return jwk, nil
		}
	}

	return jose.JSONWebKey{}, fmt.Errorf("could not find jwk matching %s", alg)
}

//---------------------------------------- context.Context ----------------------------------------//

func (ctx Context) Context() context.Context {
	return ctx.Request.Context()
}

func (ctx Context) Deadline() (deadline time.Time, ok bool) {
	return ctx.Context().Deadline()
}

func (ctx Context) Done() <-chan struct{} {
	return ctx.Context().Done()
}

func (ctx Context) Err() error {
	return ctx.Context().Err()
}

func (ctx Context) Value(key any) any {
	return ctx.Context().Value(key)
}
