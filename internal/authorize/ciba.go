package authorize

import (
	"fmt"
	"log/slog"

	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/token"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// notifyCIBA pushes the tokens of the backchannel authentication identified
// by authReqID when its client uses the push delivery mode.
// Failures are only logged.
func notifyCIBA(ctx oidc.Context, authReqID string, grant *goidc.Grant) {
	if authReqID == "" || !ctx.CIBAIsSupported() || grant == nil {
		return
	}

	if err := pushCIBATokens(ctx, authReqID, grant); err != nil {
		ctx.Logger().Error("could not push the ciba tokens",
			slog.String("auth_req_id", authReqID), slog.String("error", err.Error()))
	}
}

func pushCIBATokens(ctx oidc.Context, authReqID string, grant *goidc.Grant) error {
	cibaGrant, err := ctx.GrantByAuthReqID(authReqID)
	if err != nil {
		return fmt.Errorf("could not load the ciba grant: %w", err)
	}

	client, err := ctx.Client(cibaGrant.ClientID)
	if err != nil {
		return fmt.Errorf("could not load the ciba client: %w", err)
	}

	if client.CIBATokenDeliveryMode != goidc.CIBATokenDeliveryModePush {
		return nil
	}

	refreshToken := token.MakeRefreshToken(ctx, cibaGrant)

	// The access token is issued with the attributes of the grant just
	// authorized. It's recorded on the ciba grant so the one already
	// returned to the user agent is kept.
	primary := *grant
	accessToken := token.MakeAccessToken(ctx, &primary)
	cibaGrant.AccessToken = accessToken.Value
	cibaGrant.CertThumbprint = accessToken.CertThumbprint

	idToken, err := token.MakeIDToken(ctx, client, token.IDTokenOptions{
		Subject:     cibaGrant.Subject,
		AuthTime:    cibaGrant.AuthenticatedAtTimestamp,
		AccessToken: accessToken.Value,
		Scopes:      cibaGrant.Scopes,
	})
	if err != nil {
		return fmt.Errorf("could not generate the ciba id token: %w", err)
	}

	if err := ctx.SaveGrant(cibaGrant); err != nil {
		return err
	}

	return ctx.PushDeliverer.Deliver(ctx, goidc.PushNotification{
		AuthReqID:               authReqID,
		Endpoint:                client.CIBANotificationEndpoint,
		ClientNotificationToken: cibaGrant.ClientNotificationToken,
		AccessToken:             accessToken.Value,
		TokenType:               string(accessToken.Type),
		RefreshToken:            refreshToken.Value,
		ExpiresIn:               accessToken.LifetimeSecs,
		IDToken:                 idToken,
	})
}
