package goidc

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/go-jose/go-jose/v4"
)

type Client struct {
	ID            string         `json:"client_id" bson:"_id"`
	Name          string         `json:"client_name,omitempty" bson:"client_name,omitempty"`
	RedirectURIs  []string       `json:"redirect_uris" bson:"redirect_uris"`
	GrantTypes    []GrantType    `json:"grant_types" bson:"grant_types"`
	ResponseTypes []ResponseType `json:"response_types" bson:"response_types"`
	// Scopes is the space separated list of scopes the client may request.
	Scopes           string   `json:"scope,omitempty" bson:"scope,omitempty"`
	DefaultACRValues []string `json:"default_acr_values,omitempty" bson:"default_acr_values,omitempty"`
	// DefaultMaxAgeSecs is used when the authorization request doesn't
	// inform max_age.
	DefaultMaxAgeSecs *int `json:"default_max_age,omitempty" bson:"default_max_age,omitempty"`
	// IsTrusted clients skip the consent step when no previous consent was
	// recorded for the user.
	IsTrusted bool `json:"trusted_client,omitempty" bson:"trusted_client,omitempty"`
	// IDTokenTokenBindingCnf is the confirmation method used to bind ID tokens
	// to the token binding presented by the user agent. An empty value disables
	// token binding for the client.
	IDTokenTokenBindingCnf string                  `json:"id_token_token_binding_cnf,omitempty" bson:"id_token_token_binding_cnf,omitempty"`
	IDTokenSigAlg          jose.SignatureAlgorithm `json:"id_token_signed_response_alg,omitempty" bson:"id_token_signed_response_alg,omitempty"`
	// PublicJWKS is the client's JSON web key set used to verify request
	// objects. It takes precedence over PublicJWKSURI.
	PublicJWKS    json.RawMessage         `json:"jwks,omitempty" bson:"jwks,omitempty"`
	PublicJWKSURI string                  `json:"jwks_uri,omitempty" bson:"jwks_uri,omitempty"`
	JARSigAlg     jose.SignatureAlgorithm `json:"request_object_signing_alg,omitempty" bson:"request_object_signing_alg,omitempty"`

	CIBATokenDeliveryMode    CIBATokenDeliveryMode `json:"backchannel_token_delivery_mode,omitempty" bson:"backchannel_token_delivery_mode,omitempty"`
	CIBANotificationEndpoint string                `json:"backchannel_client_notification_endpoint,omitempty" bson:"backchannel_client_notification_endpoint,omitempty"`

	CreatedAtTimestamp      int `json:"created_at,omitempty" bson:"created_at,omitempty"`
	LastAccessedAtTimestamp int `json:"last_accessed_at,omitempty" bson:"last_accessed_at,omitempty"`
}

func (c *Client) IsGrantTypeAllowed(gt GrantType) bool {
	return slices.Contains(c.GrantTypes, gt)
}

// IsResponseTypeAllowed reports whether every token of rt is enabled for the
// client.
func (c *Client) IsResponseTypeAllowed(rt ResponseType) bool {
	var allowed []ResponseType
	for _, registered := range c.ResponseTypes {
		allowed = append(allowed, registered.Values()...)
	}

	for _, v := range rt.Values() {
		if !slices.Contains(allowed, v) {
			return false
		}
	}
	return true
}

// RedirectURI returns the redirect URI to be used for the client given the
// one informed in the request.
// An empty uri resolves to the registered one only when the client has a
// single redirect URI.
func (c *Client) RedirectURI(uri string) (string, bool) {
	if uri == "" {
		if len(c.RedirectURIs) == 1 {
			return c.RedirectURIs[0], true
		}
		return "", false
	}

	if slices.Contains(c.RedirectURIs, uri) {
		return uri, true
	}
	return "", false
}

func (c *Client) ScopeIDs() []string {
	return strings.Fields(c.Scopes)
}
