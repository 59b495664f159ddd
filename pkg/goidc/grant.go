package goidc

import "slices"

// Grant holds the information shared by all the artifacts issued for a single
// authorization.
// The Type distinguishes authorization code, implicit and CIBA grants.
type Grant struct {
	ID                       string              `json:"id" bson:"_id"`
	Type                     GrantType           `json:"type" bson:"type"`
	Subject                  string              `json:"sub" bson:"sub"`
	ClientID                 string              `json:"client_id" bson:"client_id"`
	AuthenticatedAtTimestamp int                 `json:"auth_time,omitempty" bson:"auth_time,omitempty"`
	Nonce                    string              `json:"nonce,omitempty" bson:"nonce,omitempty"`
	Scopes                   []string            `json:"scopes,omitempty" bson:"scopes,omitempty"`
	CodeChallenge            string              `json:"code_challenge,omitempty" bson:"code_challenge,omitempty"`
	CodeChallengeMethod      CodeChallengeMethod `json:"code_challenge_method,omitempty" bson:"code_challenge_method,omitempty"`
	// Claims is the raw claims request parameter.
	Claims    string `json:"claims,omitempty" bson:"claims,omitempty"`
	ACRValues string `json:"acr_values,omitempty" bson:"acr_values,omitempty"`
	// RequestObject is the request object the authorization originated from,
	// if any.
	RequestObject    string `json:"request_object,omitempty" bson:"request_object,omitempty"`
	SessionID        string `json:"session_id,omitempty" bson:"session_id,omitempty"`
	TokenBindingHash string `json:"token_binding_hash,omitempty" bson:"token_binding_hash,omitempty"`

	AuthorizationCode string `json:"code,omitempty" bson:"code,omitempty"`
	AccessToken       string `json:"access_token,omitempty" bson:"access_token,omitempty"`
	// CertThumbprint is the SHA-256 thumbprint of the client certificate the
	// access token is bound to.
	CertThumbprint string `json:"x5t#S256,omitempty" bson:"cert_thumbprint,omitempty"`
	RefreshToken   string `json:"refresh_token,omitempty" bson:"refresh_token,omitempty"`

	AuthReqID               string `json:"auth_req_id,omitempty" bson:"auth_req_id,omitempty"`
	ClientNotificationToken string `json:"client_notification_token,omitempty" bson:"client_notification_token,omitempty"`

	CreatedAtTimestamp int `json:"created_at" bson:"created_at"`
	ExpiresAtTimestamp int `json:"expires_at" bson:"expires_at"`
}

func (g *Grant) HasScope(scope string) bool {
	return slices.Contains(g.Scopes, scope)
}

// ClientAuthorization records the scopes a user consented to for a client.
type ClientAuthorization struct {
	Subject  string   `json:"sub" bson:"sub"`
	ClientID string   `json:"client_id" bson:"client_id"`
	Scopes   []string `json:"scopes" bson:"scopes"`
}

// Covers reports whether every scope informed was previously consented.
func (ca *ClientAuthorization) Covers(scopes []string) bool {
	for _, s := range scopes {
		if !slices.Contains(ca.Scopes, s) {
			return false
		}
	}
	return true
}
