package authorize

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// currentSession returns the session referenced by the session cookie.
// It returns nil if there's no valid session.
func currentSession(ctx oidc.Context) (*goidc.Session, error) {
	id, ok := ctx.SessionCookie()
	if !ok {
		return nil, nil
	}

	session, err := ctx.Session(id)
	if errors.Is(err, goidc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load the session: %w", err)
	}
	return session, nil
}

// sessionUser returns the subject of the user authenticated in the session.
func sessionUser(session *goidc.Session) string {
	if session == nil || !session.IsAuthenticated() {
		return ""
	}
	return session.Subject
}

type acrCheck int

const (
	acrUnchanged acrCheck = iota
	// acrChangedRecoverable means the user must authenticate again to satisfy
	// the acr values requested.
	acrChangedRecoverable
	// acrChangedFatal means the current session cannot be used and the client
	// must explicitly ask for a new authentication.
	acrChangedFatal
)

// checkACR compares the acr values requested with the one used to
// authenticate the session.
func checkACR(ctx oidc.Context, session *goidc.Session, requested []string) acrCheck {
	if session == nil || !session.IsAuthenticated() || len(requested) == 0 {
		return acrUnchanged
	}

	sessionLevel, sessionACRIsKnown := ctx.ACRLevels[session.ACR]
	for _, acr := range requested {
		if acr == session.ACR {
			return acrUnchanged
		}
	}

	for _, acr := range requested {
		level, ok := ctx.ACRLevels[acr]
		if ok && sessionACRIsKnown && level <= sessionLevel {
			continue
		}

		if ctx.ACRChangeForcesReauthn {
			return acrChangedRecoverable
		}
		return acrChangedFatal
	}

	return acrUnchanged
}

// requireReauthn flags the session so the user authenticates again.
func requireReauthn(ctx oidc.Context, session *goidc.Session, req request) (*goidc.Session, request, error) {
	if req.Prompts.Contains(goidc.PromptTypeLogin) {
		return session, req, nil
	}

	ctx.Logger().Info("the acr changed, adding prompt=login")
	req.Prompts = req.Prompts.With(goidc.PromptTypeLogin)
	session.State = goidc.SessionStateUnauthenticated
	session.SetAttribute(sessionAttributePrompt, req.Prompts.String())
	if err := ctx.SaveSession(session); err != nil {
		return nil, req, err
	}
	return session, req, nil
}

// resetROPCSession prepares sessions created by the resource owner password
// credentials grant to be used by the authorization endpoint.
func resetROPCSession(ctx oidc.Context, session *goidc.Session, req request) error {
	if session == nil || session.Attribute(goidc.SessionAttributeAuthorizedGrant) != goidc.GrantPassword {
		return nil
	}

	session.Attributes = req.allowedParams(ctx.AllowedSessionParams)
	return ctx.SaveSession(session)
}

// authenticateSilently tries to authenticate the user with the
// authentication filters. It's only used with prompt=none.
func authenticateSilently(ctx oidc.Context, req request) (*goidc.Session, outcome) {
	if !ctx.AuthnFiltersAreEnabled() {
		return nil, errorRedirect(req, goidc.ErrorCodeLoginRequired, "")
	}

	result, ok := ctx.AuthenticateSilently(req.params)
	if !ok {
		return nil, errorRedirect(req, goidc.ErrorCodeLoginRequired, "")
	}

	now := timeutil.TimestampNow()
	session := &goidc.Session{
		ID:                 uuid.NewString(),
		ACR:                result.ACR,
		AMR:                result.AMR,
		OPBrowserState:     uuid.NewString(),
		CreatedAtTimestamp: now,
		ExpiresAtTimestamp: now + ctx.SessionLifetimeSecs,
	}
	session.Authenticate(result.Subject, now)
	for name, value := range req.allowedParams(ctx.AllowedSessionParams) {
		session.SetAttribute(name, value)
	}

	if err := ctx.SaveSession(session); err != nil {
		return nil, internalError(err)
	}
	ctx.SetSessionCookie(session.ID)
	return session, nil
}

// authnIsFresh reports whether the session authentication satisfies the max
// age requested or the client default.
func authnIsFresh(ctx oidc.Context, session *goidc.Session, client *goidc.Client, maxAge *int) bool {
	if maxAge == nil {
		maxAge = client.DefaultMaxAgeSecs
	}

	if maxAge == nil {
		return true
	}

	if *maxAge == 0 {
		return ctx.DisableAuthnForMaxAgeZero
	}

	return timeutil.TimestampNow()-session.AuthenticatedAtTimestamp <= *maxAge
}

// endSession logs the user out and removes the session identified by id or
// by the session cookie.
func endSession(ctx oidc.Context, session *goidc.Session, id string) {
	if session != nil {
		session.Logout()
	}

	if id == "" {
		id, _ = ctx.SessionCookie()
	}

	if id != "" {
		if err := ctx.DeleteSession(id); err != nil {
			ctx.Logger().Error("could not remove the session",
				slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}

	ctx.ClearSessionCookie()
}
