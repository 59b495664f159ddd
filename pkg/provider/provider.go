package provider

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"slices"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/luikyv/go-authorize/internal/authorize"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/ratelimit"
	"github.com/luikyv/go-authorize/internal/slogx"
	"github.com/luikyv/go-authorize/internal/storage"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

const (
	defaultIDTokenLifetimeSecs           = 3600
	defaultAccessTokenLifetimeSecs       = 300
	defaultAuthorizationCodeLifetimeSecs = 60
	defaultRefreshTokenLifetimeSecs      = 14 * 24 * 3600
	defaultSessionLifetimeSecs           = 24 * 3600
	defaultJARLeewayTimeSecs             = 30
	defaultSessionCookieName             = "session_id"
	defaultReadHeaderTimeout             = 5 * time.Second
	defaultShutdownTimeout               = 10 * time.Second
)

var defaultGrantTypes = []goidc.GrantType{
	goidc.GrantAuthorizationCode,
	goidc.GrantImplicit,
	goidc.GrantRefreshToken,
}

// Provider is an OpenID provider exposing the authorization endpoint.
type Provider struct {
	config            *oidc.Configuration
	rateLimit         ratelimit.Config
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
}

// New creates a new provider.
// The first signing key of privateJWKS that is not symmetric defines the
// default algorithm for ID tokens, unless another one is configured.
func New(
	issuer string,
	privateJWKS jose.JSONWebKeySet,
	opts ...ProviderOption,
) (
	*Provider,
	error,
) {
	p := &Provider{
		config: &oidc.Configuration{
			Host:        issuer,
			PrivateJWKS: privateJWKS,
		},
		readHeaderTimeout: defaultReadHeaderTimeout,
		shutdownTimeout:   defaultShutdownTimeout,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if err := p.setDefaults(); err != nil {
		return nil, err
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Handler returns an HTTP handler with all the logic defined for the
// provider.
//
//	server := http.NewServeMux()
//	server.Handle("/", op.Handler())
func (p *Provider) Handler() http.Handler {
	server := http.NewServeMux()
	authorize.RegisterHandlers(server, p.config)

	handler := goidc.CacheControlMiddleware(server)
	handler = ratelimit.Middleware(p.rateLimit, ratelimit.IPKey)(handler)
	return slogx.HTTPMiddleware(p.config.Logger)(handler)
}

// Run serves the provider at address until the context is cancelled, at
// which point the server is shut down gracefully.
func (p *Provider) Run(
	ctx context.Context,
	address string,
	middlewares ...goidc.MiddlewareFunc,
) error {
	server := &http.Server{
		Addr:              address,
		Handler:           goidc.ApplyMiddlewares(p.Handler(), middlewares...),
		ReadHeaderTimeout: p.readHeaderTimeout,
	}
	return p.serve(ctx, server, server.ListenAndServe)
}

// TLSOptions configures the TLS listener.
type TLSOptions struct {
	CertFile string
	KeyFile  string
	// ClientCAs, when informed, makes the server verify the certificates
	// clients present. They are then available for certificate bound access
	// tokens.
	ClientCAs *x509.CertPool
}

// RunTLS is like [Provider.Run] but serves HTTPS.
func (p *Provider) RunTLS(
	ctx context.Context,
	address string,
	opts TLSOptions,
	middlewares ...goidc.MiddlewareFunc,
) error {
	handler := goidc.ApplyMiddlewares(p.Handler(), middlewares...)
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.ClientCAs != nil {
		tlsConfig.ClientCAs = opts.ClientCAs
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
		handler = clientCertMiddleware(handler)
	}

	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: p.readHeaderTimeout,
	}
	return p.serve(ctx, server, func() error {
		return server.ListenAndServeTLS(opts.CertFile, opts.KeyFile)
	})
}

func (p *Provider) serve(ctx context.Context, server *http.Server, listen func() error) error {
	errCh := make(chan error, 1)
	go func() {
		p.config.Logger.Info("authorization server listening", slog.String("addr", server.Addr))
		errCh <- listen()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer cancel()
	p.config.Logger.Info("shutting down the authorization server")
	return server.Shutdown(shutdownCtx)
}

// Client is a shortcut to fetch clients using the client storage.
func (p *Provider) Client(ctx context.Context, id string) (*goidc.Client, error) {
	for _, staticClient := range p.config.StaticClients {
		if staticClient.ID == id {
			return staticClient, nil
		}
	}

	return p.config.ClientManager.Client(ctx, id)
}

// SaveClient registers or replaces a client in the client storage.
func (p *Provider) SaveClient(ctx context.Context, client *goidc.Client) error {
	return p.config.ClientManager.Save(ctx, client)
}

func (p *Provider) setDefaults() error {
	defaultSigAlg, ok := firstSigAlg(p.config.PrivateJWKS)
	if !ok {
		return errors.New("the private jwks doesn't contain any asymmetric signing key")
	}

	p.config.IDTokenDefaultSigAlg = nonEmptyOrDefault(
		p.config.IDTokenDefaultSigAlg,
		defaultSigAlg,
	)
	p.config.GrantTypes = nonNilOrDefault(
		p.config.GrantTypes,
		slices.Clone(defaultGrantTypes),
	)
	p.config.ClientManager = nonNilOrDefault(
		p.config.ClientManager,
		goidc.ClientManager(storage.NewClientManager()),
	)
	p.config.SessionManager = nonNilOrDefault(
		p.config.SessionManager,
		goidc.SessionManager(storage.NewSessionManager(0)),
	)
	p.config.GrantManager = nonNilOrDefault(
		p.config.GrantManager,
		goidc.GrantManager(storage.NewGrantManager()),
	)
	p.config.ClientAuthorizationManager = nonNilOrDefault(
		p.config.ClientAuthorizationManager,
		goidc.ClientAuthorizationManager(storage.NewClientAuthorizationManager()),
	)
	p.config.Logger = nonNilOrDefault(p.config.Logger, slog.Default())
	p.config.EndpointAuthorize = nonEmptyOrDefault(
		p.config.EndpointAuthorize,
		goidc.EndpointAuthorize,
	)
	p.config.EndpointInteractiveAuthorize = nonEmptyOrDefault(
		p.config.EndpointInteractiveAuthorize,
		goidc.EndpointInteractiveAuthorize,
	)
	p.config.IDTokenLifetimeSecs = nonZeroOrDefault(
		p.config.IDTokenLifetimeSecs,
		defaultIDTokenLifetimeSecs,
	)
	p.config.AccessTokenLifetimeSecs = nonZeroOrDefault(
		p.config.AccessTokenLifetimeSecs,
		defaultAccessTokenLifetimeSecs,
	)
	p.config.AuthorizationCodeLifetimeSecs = nonZeroOrDefault(
		p.config.AuthorizationCodeLifetimeSecs,
		defaultAuthorizationCodeLifetimeSecs,
	)
	p.config.RefreshTokenLifetimeSecs = nonZeroOrDefault(
		p.config.RefreshTokenLifetimeSecs,
		defaultRefreshTokenLifetimeSecs,
	)
	p.config.SessionCookieName = nonEmptyOrDefault(
		p.config.SessionCookieName,
		defaultSessionCookieName,
	)
	p.config.SessionLifetimeSecs = nonZeroOrDefault(
		p.config.SessionLifetimeSecs,
		defaultSessionLifetimeSecs,
	)
	p.config.JARSigAlgs = nonNilOrDefault(
		p.config.JARSigAlgs,
		[]jose.SignatureAlgorithm{jose.RS256, jose.PS256, jose.ES256},
	)
	p.config.JARLeewayTimeSecs = nonZeroOrDefault(
		p.config.JARLeewayTimeSecs,
		defaultJARLeewayTimeSecs,
	)

	if len(p.config.JARKeyEncAlgs) != 0 {
		p.config.JARContentEncAlgs = nonNilOrDefault(
			p.config.JARContentEncAlgs,
			[]jose.ContentEncryption{jose.A128CBC_HS256},
		)
	}

	return nil
}

func (p *Provider) validate() error {
	return runValidations(
		*p.config,
		validateJWKS,
		validateIDTokenSigKey,
		validateJARSigAlgs,
		validateJAREnc,
		validateEndpoints,
		validateCIBA,
		validateACRLevels,
	)
}

func nonEmptyOrDefault[T ~string](s1 T, s2 T) T {
	if s1 == "" {
		return s2
	}

	return s1
}

func nonZeroOrDefault[T ~int](s1 T, s2 T) T {
	if s1 == 0 {
		return s2
	}

	return s1
}

func nonNilOrDefault[T any](s1 T, s2 T) T {
	v := reflect.ValueOf(s1)
	switch v.Kind() {
	case reflect.Invalid:
		return s2
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Interface, reflect.Chan:
		if v.IsNil() {
			return s2
		}
	}

	return s1
}

func firstSigAlg(jwks jose.JSONWebKeySet) (jose.SignatureAlgorithm, bool) {
	for _, key := range jwks.Keys {
		if key.Use == string(goidc.KeyUsageEncryption) || key.Algorithm == "" || isSymmetric(key.Algorithm) {
			continue
		}
		return jose.SignatureAlgorithm(key.Algorithm), true
	}
	return "", false
}
