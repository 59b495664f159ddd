package token

import (
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/luikyv/go-authorize/internal/hashutil"
	"github.com/luikyv/go-authorize/internal/joseutil"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

type IDTokenOptions struct {
	Subject   string
	AuthTime  int
	Nonce     string
	ACR       string
	AMR       []string
	SessionID string
	// AccessToken, AuthorizationCode and State are hashed into at_hash,
	// c_hash and s_hash when informed.
	AccessToken       string
	AuthorizationCode string
	State             string
	// TokenBindingHash is set as the tbh member of the cnf claim.
	TokenBindingHash string
	// IncludeUserClaims adds the claims returned by the user claims function
	// for Scopes.
	IncludeUserClaims bool
	Scopes            []string
	AdditionalClaims  map[string]any
}

func MakeIDToken(
	ctx oidc.Context,
	client *goidc.Client,
	opts IDTokenOptions,
) (
	string,
	error,
) {
	jwk, err := ctx.IDTokenSigKey(client)
	if err != nil {
		return "", fmt.Errorf("could not load the id token signing key: %w", err)
	}
	alg := jose.SignatureAlgorithm(jwk.Algorithm)

	now := timeutil.TimestampNow()
	claims := map[string]any{
		goidc.ClaimIssuer:   ctx.Host,
		goidc.ClaimSubject:  opts.Subject,
		goidc.ClaimAudience: client.ID,
		goidc.ClaimIssuedAt: now,
		goidc.ClaimExpiry:   now + ctx.IDTokenLifetimeSecs,
	}

	if opts.AuthTime != 0 {
		claims[goidc.ClaimAuthenticationTime] = opts.AuthTime
	}

	if opts.Nonce != "" {
		claims[goidc.ClaimNonce] = opts.Nonce
	}

	if opts.ACR != "" {
		claims[goidc.ClaimAuthenticationContextReference] = opts.ACR
	}

	if len(opts.AMR) != 0 {
		claims[goidc.ClaimAuthenticationMethodReferences] = opts.AMR
	}

	if opts.SessionID != "" {
		claims[goidc.ClaimSessionID] = opts.SessionID
	}

	if opts.AccessToken != "" {
		claims[goidc.ClaimAccessTokenHash] = hashutil.HalfHash(opts.AccessToken, alg)
	}

	if opts.AuthorizationCode != "" {
		claims[goidc.ClaimAuthorizationCodeHash] = hashutil.HalfHash(opts.AuthorizationCode, alg)
	}

	if opts.State != "" {
		claims[goidc.ClaimStateHash] = hashutil.HalfHash(opts.State, alg)
	}

	if opts.TokenBindingHash != "" {
		claims[goidc.ClaimConfirmation] = map[string]string{
			goidc.ClaimTokenBindingHash: opts.TokenBindingHash,
		}
	}

	if opts.IncludeUserClaims {
		userClaims, err := ctx.UserClaims(opts.Subject, opts.Scopes)
		if err != nil {
			return "", fmt.Errorf("could not load the user claims: %w", err)
		}
		// User claims never override the protocol ones.
		for k, v := range userClaims {
			if _, ok := claims[k]; !ok {
				claims[k] = v
			}
		}
	}

	for k, v := range opts.AdditionalClaims {
		claims[k] = v
	}

	idToken, err := joseutil.Sign(
		claims,
		jose.SigningKey{Algorithm: alg, Key: jwk.Key},
		(&jose.SignerOptions{}).WithHeader("kid", jwk.KeyID),
	)
	if err != nil {
		return "", fmt.Errorf("could not sign the id token: %w", err)
	}

	return idToken, nil
}
