package authorize

import (
	"net/url"
	"strconv"

	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// redirectURL encodes the parameters into the query or the fragment of base.
func redirectURL(base string, mode goidc.ResponseMode, params responseParams) string {
	encoded := params.encode()
	if encoded == "" {
		return base
	}

	if mode == goidc.ResponseModeFragment {
		return base + "#" + encoded
	}

	return urlWithQueryParams(base, encoded)
}

// urlWithQueryParams appends the encoded parameters to the query of base,
// keeping the ones already present.
func urlWithQueryParams(base, encoded string) string {
	parsedURL, err := url.Parse(base)
	if err != nil {
		return base + "?" + encoded
	}

	if parsedURL.RawQuery != "" {
		parsedURL.RawQuery += "&" + encoded
	} else {
		parsedURL.RawQuery = encoded
	}
	return parsedURL.String()
}

// responseMode returns the response mode based on the response type.
// According to "5. Definitions of Multiple-Valued Response Type Combinations"
// of https://openid.net/specs/oauth-v2-multiple-response-types-1_0.html#Combinations.
func responseMode(params goidc.AuthorizationParameters) goidc.ResponseMode {
	if params.ResponseMode == goidc.ResponseModeQuery || params.ResponseMode == goidc.ResponseModeFragment {
		return params.ResponseMode
	}

	if params.ResponseType.IsImplicit() {
		return goidc.ResponseModeFragment
	}
	return goidc.ResponseModeQuery
}

// errorRedirect sends the error to the redirect URI of the request which must
// have been verified already.
func errorRedirect(
	req request,
	code goidc.ErrorCode,
	desc string,
	extra ...param,
) outcome {
	var params responseParams
	params.add(paramError, string(code))
	params.add(paramErrorDescription, desc)
	params.add(paramState, req.State)
	params = append(params, extra...)

	return redirectOutcome{
		url: redirectURL(req.RedirectURI, responseMode(req.AuthorizationParameters), params),
	}
}

// successRedirect sends the issued artifacts to the redirect URI.
func successRedirect(req request, params responseParams, headers map[string]string) outcome {
	return redirectOutcome{
		url:     redirectURL(req.RedirectURI, responseMode(req.AuthorizationParameters), params),
		success: true,
		headers: headers,
	}
}

// loginPageRedirect sends the user agent to the interactive authorization
// page carrying the current parameters so the flow can be resumed.
func loginPageRedirect(ctx oidc.Context, req request) outcome {
	var params responseParams
	params.add(paramResponseType, string(req.ResponseType))
	params.add(paramScope, req.Scopes)
	params.add(paramClientID, req.ClientID)
	params.add(paramRedirectURI, req.RedirectURI)
	params.add(paramState, req.State)
	params.add(paramResponseMode, string(req.ResponseMode))
	params.add(paramNonce, req.Nonce)
	params.add(paramDisplay, string(req.Display))
	params.add(paramPrompt, req.Prompts.String())
	if req.MaxAge != nil {
		params.add(paramMaxAge, strconv.Itoa(*req.MaxAge))
	}
	params.add(paramUILocales, req.UILocales)
	params.add(paramIDTokenHint, req.IDTokenHint)
	params.add(paramLoginHint, req.LoginHint)
	params.add(paramACRValues, req.ACRValues)
	params.add(paramAMRValues, req.AMRValues)
	params.add(paramRequest, req.RequestObject)
	params.add(paramRequestURI, req.RequestURI)
	params.add(paramCodeChallenge, req.CodeChallenge)
	params.add(paramCodeChallengeMethod, string(req.CodeChallengeMethod))
	params.add(paramSessionID, req.SessionID)
	params.add(paramClaims, req.Claims)
	params.add(paramAuthReqID, req.AuthReqID)
	params.add(paramOriginHeaders, req.OriginHeaders)
	params = append(params, req.sortedCustomParams()...)

	base := ctx.BaseURL() + ctx.EndpointInteractiveAuthorize
	return redirectOutcome{
		url: redirectURL(base, goidc.ResponseModeQuery, params),
	}
}
