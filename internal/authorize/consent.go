package authorize

import (
	"errors"
	"fmt"

	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// checkConsent grants the client permission on the session when the user
// already consented to the scopes requested or when the client is trusted.
// It returns an outcome when the user must be sent to the consent page.
func checkConsent(
	ctx oidc.Context,
	session *goidc.Session,
	client *goidc.Client,
	req request,
	scopes []string,
) outcome {
	if len(scopes) == 0 {
		return nil
	}

	auth, err := ctx.ClientAuthorization(session.Subject, client.ID)
	if err != nil && !errors.Is(err, goidc.ErrNotFound) {
		return internalError(fmt.Errorf("could not load the client authorization: %w", err))
	}

	switch {
	case auth != nil && auth.Covers(scopes):
		session.GrantPermission(client.ID)
	case auth != nil:
		return loginPageRedirect(ctx, req)
	case client.IsTrusted:
		session.GrantPermission(client.ID)
	default:
		return nil
	}

	if err := ctx.SaveSession(session); err != nil {
		return internalError(err)
	}
	return nil
}

// consentIsRequired reports whether the consent page must be displayed even if
// previous consents would satisfy the request.
func consentIsRequired(session *goidc.Session, client *goidc.Client, req request) bool {
	return req.Prompts.Contains(goidc.PromptTypeConsent) || !session.IsPermissionGranted(client.ID)
}
