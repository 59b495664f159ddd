package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/luikyv/go-authorize/internal/audit"
	"github.com/luikyv/go-authorize/internal/ciba"
	"github.com/luikyv/go-authorize/internal/config"
	"github.com/luikyv/go-authorize/internal/slogx"
	"github.com/luikyv/go-authorize/internal/storage"
	"github.com/luikyv/go-authorize/internal/storage/mongodb"
	"github.com/luikyv/go-authorize/internal/storage/postgres"
	"github.com/luikyv/go-authorize/internal/storage/redisdb"
	"github.com/luikyv/go-authorize/pkg/goidc"
	"github.com/luikyv/go-authorize/pkg/provider"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadEnv(ctx, ".env")
	cfg, err := config.Load(os.Getenv("AUTHZ_CONFIG_FILE"))
	if err != nil {
		slog.Error("could not load the configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slogx.New(slogx.Config{
		Service: "authzserver",
		Version: version,
		Env:     cfg.Log.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("authorization server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	jwks, err := readJSON[jose.JSONWebKeySet](cfg.Provider.JWKSFile)
	if err != nil {
		return fmt.Errorf("could not load the server jwks: %w", err)
	}

	storageOpts, closeStorage, err := storageOptions(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStorage()

	sink, closeSink, err := auditSink(cfg.Audit, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	opts := append(storageOpts, providerOptions(cfg, logger)...)
	opts = append(opts, provider.WithAuditSink(sink))
	if cfg.Provider.CIBAIsEnabled {
		opts = append(opts, provider.WithCIBA(ciba.NewHTTPPushDeliverer(&http.Client{Timeout: 10 * time.Second})))
	}

	op, err := provider.New(cfg.Provider.Issuer, jwks, opts...)
	if err != nil {
		return fmt.Errorf("could not create the provider: %w", err)
	}

	if cfg.Provider.ClientsFile != "" {
		clients, err := readJSON[[]*goidc.Client](cfg.Provider.ClientsFile)
		if err != nil {
			return fmt.Errorf("could not load the clients: %w", err)
		}
		for _, c := range clients {
			if err := op.SaveClient(ctx, c); err != nil {
				return fmt.Errorf("could not register the client %s: %w", c.ID, err)
			}
		}
		logger.Info("clients registered", slog.Int("count", len(clients)))
	}

	return op.Run(ctx, cfg.Server.Addr)
}

func providerOptions(cfg config.Config, logger *slog.Logger) []provider.ProviderOption {
	p := cfg.Provider
	opts := []provider.ProviderOption{
		provider.WithLogger(logger),
		provider.WithPathPrefix(p.PathPrefix),
		provider.WithAuthorizeEndpoint(p.AuthorizeEndpoint),
		provider.WithLoginPageEndpoint(p.LoginPageEndpoint),
		provider.WithIDTokenSignatureAlgorithm(jose.SignatureAlgorithm(p.IDTokenSigAlg)),
		provider.WithTokenLifetimes(
			int(p.AccessTokenLifetime.Seconds()),
			int(p.AuthorizationCodeLifetime.Seconds()),
			int(p.RefreshTokenLifetime.Seconds()),
		),
		provider.WithJARLeeway(int(p.JARLeeway.Seconds())),
		provider.WithSessionCookie(p.SessionCookieName, p.SessionCookieSecure),
		provider.WithACRLevels(p.ACRLevels),
		provider.WithCustomParams(p.CustomParams...),
		provider.WithAllowedSessionParams(p.AllowedSessionParams...),
		provider.WithRateLimit(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window, cfg.RateLimit.Burst),
		provider.WithServerTimeouts(cfg.Server.ReadHeaderTimeout, cfg.Server.ShutdownGracePeriod),
	}

	if len(p.Scopes) != 0 {
		opts = append(opts, provider.WithScopes(p.Scopes...))
	}
	if len(p.GrantTypes) != 0 {
		grantTypes := make([]goidc.GrantType, len(p.GrantTypes))
		for i, gt := range p.GrantTypes {
			grantTypes[i] = goidc.GrantType(gt)
		}
		opts = append(opts, provider.WithGrantTypes(grantTypes...))
	}
	if p.IDTokenLifetime > 0 {
		opts = append(opts, provider.WithIDTokenLifetime(int(p.IDTokenLifetime.Seconds())))
	}
	if p.SessionLifetime > 0 {
		opts = append(opts, provider.WithSessionLifetime(int(p.SessionLifetime.Seconds())))
	}
	if p.LegacyIDTokenClaims {
		opts = append(opts, provider.WithLegacyIDTokenClaims())
	}
	if p.ACRChangeForcesReauthn {
		opts = append(opts, provider.WithACRChangeForcesReauthn())
	}
	if p.DisableAuthnForMaxAgeZero {
		opts = append(opts, provider.WithAuthnForMaxAgeZeroDisabled())
	}
	if p.CustomResponseHeaders {
		opts = append(opts, provider.WithCustomResponseHeaders())
	}
	return opts
}

func storageOptions(ctx context.Context, cfg config.Storage) ([]provider.ProviderOption, func(), error) {
	switch cfg.Backend {
	case config.StorageMongoDB:
		db, err := mongodb.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closeFunc := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Client().Disconnect(shutdownCtx)
		}
		return []provider.ProviderOption{
			provider.WithClientStorage(mongodb.NewClientManager(db)),
			provider.WithSessionStorage(mongodb.NewSessionManager(db)),
			provider.WithGrantStorage(mongodb.NewGrantManager(db)),
			provider.WithClientAuthorizationStorage(mongodb.NewClientAuthorizationManager(db)),
		}, closeFunc, nil
	case config.StorageRedisPostgres:
		rdb, err := redisdb.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		db, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		authorizations, err := postgres.NewClientAuthorizationManager(ctx, db)
		if err != nil {
			_ = rdb.Close()
			_ = db.Close()
			return nil, nil, err
		}
		closeFunc := func() {
			_ = rdb.Close()
			_ = db.Close()
		}
		return []provider.ProviderOption{
			provider.WithSessionStorage(redisdb.NewSessionManager(rdb)),
			provider.WithClientAuthorizationStorage(authorizations),
		}, closeFunc, nil
	default:
		return []provider.ProviderOption{
			provider.WithSessionStorage(storage.NewSessionManager(cfg.MaxSessions)),
		}, func() {}, nil
	}
}

func auditSink(cfg config.Audit, logger *slog.Logger) (goidc.AuditSink, func(), error) {
	if cfg.Sink != config.AuditAMQP {
		return audit.NewLogSink(logger), func() {}, nil
	}

	ch, closeConn, err := audit.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
	if err != nil {
		return nil, nil, err
	}
	return audit.NewAMQPSink(ch, "", cfg.AMQPQueue), func() { _ = closeConn() }, nil
}

func readJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}
