// Package token creates the artifacts issued for authorization grants.
package token

import (
	"log/slog"

	"github.com/luikyv/go-authorize/internal/hashutil"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/strutil"
	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

const (
	authorizationCodeLength = 30
	accessTokenLength       = 40
	refreshTokenLength      = 99
)

// Token is an opaque token issued for a grant.
type Token struct {
	Value        string
	Type         goidc.TokenType
	LifetimeSecs int
	// CertThumbprint is set when the token is bound to the client
	// certificate presented with the request.
	CertThumbprint string
}

// MakeAuthorizationCode generates a new code and attaches it to the grant.
// The grant expiry follows the code lifetime.
func MakeAuthorizationCode(ctx oidc.Context, grant *goidc.Grant) string {
	grant.AuthorizationCode = strutil.Random(authorizationCodeLength)
	grant.ExpiresAtTimestamp = timeutil.TimestampIn(ctx.AuthorizationCodeLifetimeSecs)
	return grant.AuthorizationCode
}

// MakeAccessToken issues an access token for the grant.
// If the request carries a client certificate, the token is bound to its
// thumbprint.
func MakeAccessToken(ctx oidc.Context, grant *goidc.Grant) Token {
	tkn := Token{
		Value:        strutil.Random(accessTokenLength),
		Type:         goidc.TokenTypeBearer,
		LifetimeSecs: ctx.AccessTokenLifetimeSecs,
	}

	if _, ok := ctx.Header(goidc.HeaderClientCert); ok {
		cert, err := ctx.ClientCert()
		if err != nil {
			ctx.Logger().Warn("the access token will not be bound to the client certificate",
				slog.String("error", err.Error()))
		} else {
			tkn.CertThumbprint = hashutil.ThumbprintBytes(cert.Raw)
		}
	}

	grant.AccessToken = tkn.Value
	grant.CertThumbprint = tkn.CertThumbprint
	if expiresAt := timeutil.TimestampIn(tkn.LifetimeSecs); expiresAt > grant.ExpiresAtTimestamp {
		grant.ExpiresAtTimestamp = expiresAt
	}
	return tkn
}

func MakeRefreshToken(ctx oidc.Context, grant *goidc.Grant) Token {
	tkn := Token{
		Value:        strutil.Random(refreshTokenLength),
		LifetimeSecs: ctx.RefreshTokenLifetimeSecs,
	}

	grant.RefreshToken = tkn.Value
	if expiresAt := timeutil.TimestampIn(tkn.LifetimeSecs); expiresAt > grant.ExpiresAtTimestamp {
		grant.ExpiresAtTimestamp = expiresAt
	}
	return tkn
}
