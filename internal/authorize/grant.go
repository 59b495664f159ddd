package authorize

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/luikyv/go-authorize/internal/hashutil"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/strutil"
	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/internal/token"
	"github.com/luikyv/go-authorize/internal/tokenbinding"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// issuance groups what is needed to issue the artifacts of an authorized
// request.
type issuance struct {
	client  *goidc.Client
	req     request
	scopes  []string
	session *goidc.Session
}

// issueGrant creates the artifacts requested by the response type.
// A single grant is created and shared by all of them.
func issueGrant(ctx oidc.Context, iss issuance) (responseParams, *goidc.Grant, error) {
	var (
		params      responseParams
		grant       *goidc.Grant
		code        string
		accessToken token.Token
	)
	rt := iss.req.ResponseType
	tbHash := tokenBindingHash(ctx, iss.client)
	if iss.session.ID == "" {
		iss.session.ID = uuid.NewString()
	}

	if rt.Contains(goidc.ResponseTypeCode) {
		grant = newGrant(iss, goidc.GrantAuthorizationCode)
		grant.TokenBindingHash = tbHash
		grant.CodeChallenge = iss.req.CodeChallenge
		grant.CodeChallengeMethod = iss.req.CodeChallengeMethod
		code = token.MakeAuthorizationCode(ctx, grant)
		if err := ctx.SaveGrant(grant); err != nil {
			return nil, nil, err
		}
		params.add(paramCode, code)
	}

	if rt.Contains(goidc.ResponseTypeToken) {
		if grant == nil {
			grant = newGrant(iss, goidc.GrantImplicit)
		}
		accessToken = token.MakeAccessToken(ctx, grant)
		if err := ctx.SaveGrant(grant); err != nil {
			return nil, nil, err
		}
		params.add(paramAccessToken, accessToken.Value)
		params.add(paramTokenType, string(accessToken.Type))
		params.add(paramExpiresIn, strconv.Itoa(accessToken.LifetimeSecs))
	}

	if rt.Contains(goidc.ResponseTypeIDToken) {
		includeUserClaims := ctx.LegacyIDTokenClaims
		if grant == nil {
			includeUserClaims = true
			grant = newGrant(iss, goidc.GrantImplicit)
			grant.ExpiresAtTimestamp = timeutil.TimestampIn(ctx.IDTokenLifetimeSecs)
			if err := ctx.SaveGrant(grant); err != nil {
				return nil, nil, err
			}
		}

		idToken, err := token.MakeIDToken(ctx, iss.client, token.IDTokenOptions{
			Subject:           grant.Subject,
			AuthTime:          grant.AuthenticatedAtTimestamp,
			Nonce:             grant.Nonce,
			ACR:               iss.session.ACR,
			AMR:               iss.session.AMR,
			SessionID:         iss.session.ID,
			AccessToken:       accessToken.Value,
			AuthorizationCode: code,
			State:             iss.req.State,
			TokenBindingHash:  tbHash,
			IncludeUserClaims: includeUserClaims,
			Scopes:            grant.Scopes,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("could not generate the id token: %w", err)
		}
		params.add(paramIDToken, idToken)
	}

	if grant != nil {
		params.add(paramACRValues, iss.req.ACRValues)
	}

	params.add(paramSessionID, iss.session.ID)
	params.add(paramSessionState, sessionState(iss.session, iss.client.ID, iss.req.RedirectURI))
	params.add(paramState, iss.req.State)

	if grant != nil && iss.req.Scopes != "" {
		scopes := ctx.CheckScopesPolicy(iss.client, grant.Scopes)
		params.add(paramScope, strutil.JoinWithSpaces(scopes))
	}

	if err := ctx.TouchClient(iss.client); err != nil {
		ctx.Logger().Warn("could not update the client last access time",
			slog.String("client_id", iss.client.ID), slog.String("error", err.Error()))
	}

	return params, grant, nil
}

func newGrant(iss issuance, gt goidc.GrantType) *goidc.Grant {
	return &goidc.Grant{
		ID:                       uuid.NewString(),
		Type:                     gt,
		Subject:                  iss.session.Subject,
		ClientID:                 iss.client.ID,
		AuthenticatedAtTimestamp: iss.session.AuthenticatedAtTimestamp,
		Nonce:                    iss.req.Nonce,
		Scopes:                   iss.scopes,
		Claims:                   iss.req.Claims,
		ACRValues:                iss.req.ACRValues,
		RequestObject:            iss.req.verifiedRequestObject,
		SessionID:                iss.session.ID,
		CreatedAtTimestamp:       timeutil.TimestampNow(),
	}
}

// tokenBindingHash returns the hash of the token binding id presented by the
// user agent when the client binds its ID tokens.
func tokenBindingHash(ctx oidc.Context, client *goidc.Client) string {
	if client.IDTokenTokenBindingCnf == "" {
		return ""
	}

	values := ctx.Request.Header.Values(goidc.HeaderTokenBinding)
	if len(values) == 0 {
		return ""
	}
	if len(values) > 1 {
		ctx.Logger().Warn("multiple token binding headers informed, only the first one is used",
			slog.Int("count", len(values)))
	}

	hash, err := tokenbinding.IDHash(values[0])
	if err != nil {
		ctx.Logger().Warn("could not parse the token binding message", slog.String("error", err.Error()))
		return ""
	}
	return hash
}

// sessionState computes the session_state parameter for the client.
func sessionState(session *goidc.Session, clientID, redirectURI string) string {
	return hashutil.SessionState(clientID, strutil.Origin(redirectURI), session.OPBrowserState, uuid.NewString())
}
