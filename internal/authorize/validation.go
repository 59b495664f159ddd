package authorize

import (
	"errors"
	"fmt"
	"slices"

	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/strutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// validateRequest makes sure the client and the redirect URI can be trusted
// and the parameters are consistent with the client.
// The request returned has the redirect URI resolved for the client.
func validateRequest(
	ctx oidc.Context,
	req request,
) (
	*goidc.Client,
	request,
	outcome,
) {
	if req.ClientID == "" {
		return nil, req, jsonError(goidc.ErrorCodeUnauthorizedClient, "client_id is required")
	}

	client, err := ctx.Client(req.ClientID)
	if errors.Is(err, goidc.ErrNotFound) {
		return nil, req, jsonError(goidc.ErrorCodeUnauthorizedClient, "invalid client")
	}
	if err != nil {
		return nil, req, internalError(fmt.Errorf("could not load the client: %w", err))
	}

	redirectURI, redirectURIIsValid := client.RedirectURI(req.RedirectURI)
	if err := validateParams(req); err != nil {
		if !redirectURIIsValid {
			return nil, req, jsonError(goidc.ErrorCodeInvalidRequest, "Invalid redirect uri.")
		}
		req.RedirectURI = redirectURI
		return nil, req, errorRedirect(req, goidc.ErrorCodeInvalidRequest, err.Error())
	}

	if !redirectURIIsValid {
		return nil, req, jsonError(goidc.ErrorCodeInvalidRequestRedirectURI, "invalid redirect_uri")
	}
	req.RedirectURI = redirectURI

	if !responseTypeIsAllowed(ctx, client, req.ResponseType) {
		return nil, req, errorRedirect(req, goidc.ErrorCodeUnsupportedResponseType, "response type not allowed")
	}

	if len(req.ACRValueList()) == 0 && len(client.DefaultACRValues) != 0 {
		req.ACRValues = strutil.JoinWithSpaces(client.DefaultACRValues)
	}

	return client, req, nil
}

// validateParams checks the parameters are well formed.
func validateParams(req request) error {
	if !req.ResponseType.IsKnown() {
		return errors.New("invalid response_type")
	}

	if slices.Contains(req.malformedParams, paramPrompt) {
		return errors.New("invalid prompt")
	}

	if req.Prompts.Contains(goidc.PromptTypeNone) && len(req.Prompts) > 1 {
		return errors.New("prompt none cannot be combined with other values")
	}

	if slices.Contains(req.malformedParams, paramMaxAge) {
		return errors.New("invalid max_age")
	}

	if req.RequestObject != "" && req.RequestURI != "" {
		return errors.New("request and request_uri cannot be informed at the same time")
	}

	// When a request object is informed, the nonce is only checked after it's
	// merged.
	if req.RequestObject == "" && req.RequestURI == "" {
		return validateNonce(req)
	}

	return nil
}

func validateNonce(req request) error {
	if req.ResponseType.Contains(goidc.ResponseTypeIDToken) && req.Nonce == "" {
		return errors.New("nonce is required when the id token is issued in the authorization response")
	}
	return nil
}

// responseTypeIsAllowed reports whether every value of the response type is
// enabled for the client and maps to a grant type supported by both the
// client and the server.
func responseTypeIsAllowed(ctx oidc.Context, client *goidc.Client, rt goidc.ResponseType) bool {
	if !client.IsResponseTypeAllowed(rt) {
		return false
	}

	for _, v := range rt.Values() {
		gt := goidc.GrantImplicit
		if v == goidc.ResponseTypeCode {
			gt = goidc.GrantAuthorizationCode
		}

		if !client.IsGrantTypeAllowed(gt) || !slices.Contains(ctx.GrantTypes, gt) {
			return false
		}
	}

	return true
}

// grantedScopes resolves the scopes requested into the ones that can be
// granted to the client.
func grantedScopes(ctx oidc.Context, client *goidc.Client, scopes string) []string {
	if scopes == "" {
		return nil
	}
	return ctx.CheckScopesPolicy(client, strutil.SplitWithSpaces(scopes))
}
