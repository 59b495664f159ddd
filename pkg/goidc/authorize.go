package goidc

import (
	"encoding/json"
	"strings"
)

// AuthorizationParameters contains the parameters of an authorization request
// that can be informed either directly or through a request object.
type AuthorizationParameters struct {
	ResponseType          ResponseType        `json:"response_type,omitempty"`
	ResponseMode          ResponseMode        `json:"response_mode,omitempty"`
	RedirectURI           string              `json:"redirect_uri,omitempty"`
	Scopes                string              `json:"scope,omitempty"`
	State                 string              `json:"state,omitempty"`
	Nonce                 string              `json:"nonce,omitempty"`
	Display               DisplayValue        `json:"display,omitempty"`
	Prompts               Prompts             `json:"-"`
	MaxAge                *int                `json:"max_age,omitempty"`
	ACRValues             string              `json:"acr_values,omitempty"`
	AMRValues             string              `json:"amr_values,omitempty"`
	UILocales             string              `json:"ui_locales,omitempty"`
	IDTokenHint           string              `json:"id_token_hint,omitempty"`
	LoginHint             string              `json:"login_hint,omitempty"`
	CodeChallenge         string              `json:"code_challenge,omitempty"`
	CodeChallengeMethod   CodeChallengeMethod `json:"code_challenge_method,omitempty"`
	Claims                string              `json:"claims,omitempty"`
	RequestObject         string              `json:"request,omitempty"`
	RequestURI            string              `json:"request_uri,omitempty"`
	SessionID             string              `json:"session_id,omitempty"`
	OriginHeaders         string              `json:"origin_headers,omitempty"`
	CustomResponseHeaders string              `json:"custom_response_headers,omitempty"`
	AuthReqID             string              `json:"auth_req_id,omitempty"`
}

func (p AuthorizationParameters) ACRValueList() []string {
	return strings.Fields(p.ACRValues)
}

// RequestObject holds the claims of a verified request object that take part
// in the authorization request.
type RequestObject struct {
	ClientID     string         `json:"client_id"`
	ResponseType ResponseType   `json:"response_type"`
	RedirectURI  string         `json:"redirect_uri"`
	Scopes       string         `json:"scope"`
	State        string         `json:"state"`
	Nonce        string         `json:"nonce"`
	Display      DisplayValue   `json:"display"`
	Prompt       string         `json:"prompt"`
	MaxAge       *int           `json:"max_age"`
	Claims       *ClaimsRequest `json:"claims"`
}

// ClaimsRequest is the claims member of a request object.
type ClaimsRequest struct {
	IDToken  map[string]json.RawMessage `json:"id_token,omitempty"`
	UserInfo map[string]json.RawMessage `json:"userinfo,omitempty"`
}

type ClaimRequest struct {
	Essential bool   `json:"essential,omitempty"`
	Value     string `json:"value,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

// IDTokenSubject returns the value requested for the sub claim of the ID
// token, if any.
func (cr *ClaimsRequest) IDTokenSubject() string {
	if cr == nil {
		return ""
	}

	raw, ok := cr.IDToken[ClaimSubject]
	if !ok {
		return ""
	}

	var claim ClaimRequest
	if err := json.Unmarshal(raw, &claim); err != nil {
		return ""
	}
	return claim.Value
}

// IDTokenMaxAge returns the max_age informed inside the id_token member.
func (cr *ClaimsRequest) IDTokenMaxAge() *int {
	if cr == nil {
		return nil
	}

	raw, ok := cr.IDToken[ClaimMaxAge]
	if !ok {
		return nil
	}

	var maxAge int
	if err := json.Unmarshal(raw, &maxAge); err != nil {
		return nil
	}
	return &maxAge
}
