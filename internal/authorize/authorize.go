package authorize

import (
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// authorize processes the authorization request until it reaches an
// outcome. The username of the audit entry is filled once the user is known.
func authorize(ctx oidc.Context, req request, entry *goidc.AuditEntry) outcome {
	client, req, out := validateRequest(ctx, req)
	if out != nil {
		return out
	}

	customHeaders, err := parseCustomResponseHeaders(req.CustomResponseHeaders)
	if err != nil {
		return jsonError(goidc.ErrorCodeInvalidRequest, "invalid custom_response_headers")
	}

	session, err := currentSession(ctx)
	if err != nil {
		return internalError(err)
	}
	user := sessionUser(session)

	switch checkACR(ctx, session, req.ACRValueList()) {
	case acrChangedFatal:
		ctx.Logger().Info("the acr changed, please provide a supported and enabled acr value")
		return errorRedirect(req, goidc.ErrorCodeSessionSelectionRequired, "",
			param{name: paramHint, value: hintSessionSelection})
	case acrChangedRecoverable:
		if session, req, err = requireReauthn(ctx, session, req); err != nil {
			return internalError(err)
		}
	}

	if err := resetROPCSession(ctx, session, req); err != nil {
		return internalError(err)
	}

	scopes := grantedScopes(ctx, client, req.Scopes)
	if req.RequestObject != "" || req.RequestURI != "" {
		req, scopes, out = resolveRequestObject(ctx, client, req, scopes, user)
		if out != nil {
			return out
		}

		if err := validateNonce(req); err != nil {
			return errorRedirect(req, goidc.ErrorCodeInvalidRequest, err.Error())
		}
	}

	if user == "" {
		if !req.Prompts.Contains(goidc.PromptTypeNone) {
			if req.Prompts.Contains(goidc.PromptTypeLogin) {
				endSession(ctx, session, req.SessionID)
				req.SessionID = ""
				req.Prompts = req.Prompts.Without(goidc.PromptTypeLogin)
			}
			return loginPageRedirect(ctx, req)
		}

		staleSession := session
		if session, out = authenticateSilently(ctx, req); out != nil {
			if staleSession != nil {
				ctx.ClearSessionCookie()
			}
			return out
		}
		user = session.Subject
	}

	if !authnIsFresh(ctx, session, client, req.MaxAge) {
		endSession(ctx, session, req.SessionID)
		req.SessionID = ""
		return loginPageRedirect(ctx, req)
	}

	entry.Username = user

	if out := checkConsent(ctx, session, client, req, scopes); out != nil {
		return out
	}

	if req.Prompts.Contains(goidc.PromptTypeLogin) {
		// Sessions flagged for a new authentication are kept so the login page
		// can set them up again.
		if session.State == goidc.SessionStateAuthenticated {
			endSession(ctx, session, req.SessionID)
		}
		req.SessionID = ""
		req.Prompts = req.Prompts.Without(goidc.PromptTypeLogin)
		return loginPageRedirect(ctx, req)
	}

	if consentIsRequired(session, client, req) {
		req.Prompts = req.Prompts.Without(goidc.PromptTypeConsent)
		return loginPageRedirect(ctx, req)
	}

	params, grant, err := issueGrant(ctx, issuance{
		client:  client,
		req:     req,
		scopes:  scopes,
		session: session,
	})
	if err != nil {
		return internalError(err)
	}

	if !ctx.CustomHeadersInAuthorizationResponse {
		customHeaders = nil
	}
	out = successRedirect(req, params, customHeaders)

	notifyCIBA(ctx, req.AuthReqID, grant)
	return out
}
