package goidc

import (
	"slices"
	"strings"
)

const (
	EndpointAuthorize            = "/authorize"
	EndpointInteractiveAuthorize = "/authorize.htm"
)

type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantImplicit          GrantType = "implicit"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantCIBA              GrantType = "urn:openid:params:grant-type:ciba"
)

type ResponseType string

const (
	ResponseTypeCode                   ResponseType = "code"
	ResponseTypeIDToken                ResponseType = "id_token"
	ResponseTypeToken                  ResponseType = "token"
	ResponseTypeCodeAndIDToken         ResponseType = "code id_token"
	ResponseTypeCodeAndToken           ResponseType = "code token"
	ResponseTypeIDTokenAndToken        ResponseType = "id_token token"
	ResponseTypeCodeAndIDTokenAndToken ResponseType = "code id_token token"
)

// Values splits a space separated response type into its individual tokens.
// Repeated and empty tokens are dropped.
func (rt ResponseType) Values() []ResponseType {
	var values []ResponseType
	for _, v := range strings.Fields(string(rt)) {
		if !slices.Contains(values, ResponseType(v)) {
			values = append(values, ResponseType(v))
		}
	}
	return values
}

func (rt ResponseType) Contains(responseType ResponseType) bool {
	return slices.Contains(rt.Values(), responseType)
}

func (rt ResponseType) IsImplicit() bool {
	return rt.Contains(ResponseTypeIDToken) || rt.Contains(ResponseTypeToken)
}

// Equals reports whether both response types contain the same tokens
// regardless of their order.
func (rt ResponseType) Equals(other ResponseType) bool {
	values, otherValues := rt.Values(), other.Values()
	if len(values) != len(otherValues) {
		return false
	}
	for _, v := range values {
		if !slices.Contains(otherValues, v) {
			return false
		}
	}
	return true
}

// IsKnown reports whether rt is non-empty and only made of code, token and
// id_token.
func (rt ResponseType) IsKnown() bool {
	values := rt.Values()
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v != ResponseTypeCode && v != ResponseTypeIDToken && v != ResponseTypeToken {
			return false
		}
	}
	return true
}

type ResponseMode string

const (
	ResponseModeQuery    ResponseMode = "query"
	ResponseModeFragment ResponseMode = "fragment"
)

type TokenType string

const (
	TokenTypeBearer TokenType = "Bearer"
)

const (
	ClaimIssuer                         string = "iss"
	ClaimSubject                        string = "sub"
	ClaimAudience                       string = "aud"
	ClaimExpiry                         string = "exp"
	ClaimIssuedAt                       string = "iat"
	ClaimNonce                          string = "nonce"
	ClaimAuthenticationTime             string = "auth_time"
	ClaimAuthenticationMethodReferences string = "amr"
	ClaimAuthenticationContextReference string = "acr"
	ClaimAccessTokenHash                string = "at_hash"
	ClaimAuthorizationCodeHash          string = "c_hash"
	ClaimStateHash                      string = "s_hash"
	ClaimSessionID                      string = "sid"
	ClaimConfirmation                   string = "cnf"
	ClaimTokenBindingHash               string = "tbh"
	ClaimMaxAge                         string = "max_age"
	ClaimAuthorizedParty                string = "azp"
)

const ScopeOpenID = "openid"

type KeyUsage string

const (
	KeyUsageSignature  KeyUsage = "sig"
	KeyUsageEncryption KeyUsage = "enc"
)

type CodeChallengeMethod string

const (
	CodeChallengeMethodSHA256 CodeChallengeMethod = "S256"
	CodeChallengeMethodPlain  CodeChallengeMethod = "plain"
)

const (
	// HeaderClientCert is the header used to transmit a client certificate
	// that was validated by a trusted source, usually a TLS terminating proxy.
	// The value is expected to be the URL encoding of the certificate in PEM
	// format.
	HeaderClientCert string = "X-ClientCert"
	// HeaderTokenBinding carries the base64url encoded token binding message
	// as defined by RFC 8473.
	HeaderTokenBinding string = "Sec-Token-Binding"
)

type DisplayValue string

const (
	DisplayValuePage  DisplayValue = "page"
	DisplayValuePopUp DisplayValue = "popup"
	DisplayValueTouch DisplayValue = "touch"
	DisplayValueWAP   DisplayValue = "wap"
)

type PromptType string

const (
	PromptTypeNone          PromptType = "none"
	PromptTypeLogin         PromptType = "login"
	PromptTypeConsent       PromptType = "consent"
	PromptTypeSelectAccount PromptType = "select_account"
)

// Prompts is the list of prompt values informed by the client.
type Prompts []PromptType

// ParsePrompts splits a space separated prompt parameter.
// It returns false if any of the values is unknown.
func ParsePrompts(s string) (Prompts, bool) {
	var prompts Prompts
	for _, v := range strings.Fields(s) {
		p := PromptType(v)
		switch p {
		case PromptTypeNone, PromptTypeLogin, PromptTypeConsent, PromptTypeSelectAccount:
		default:
			return nil, false
		}
		if !slices.Contains(prompts, p) {
			prompts = append(prompts, p)
		}
	}
	return prompts, true
}

func (p Prompts) Contains(prompt PromptType) bool {
	return slices.Contains(p, prompt)
}

// Without returns a copy of the prompts not containing the prompt informed.
func (p Prompts) Without(prompt PromptType) Prompts {
	var prompts Prompts
	for _, v := range p {
		if v != prompt {
			prompts = append(prompts, v)
		}
	}
	return prompts
}

// With returns a copy of the prompts containing the prompt informed.
func (p Prompts) With(prompt PromptType) Prompts {
	prompts := slices.Clone(p)
	if !prompts.Contains(prompt) {
		prompts = append(prompts, prompt)
	}
	return prompts
}

func (p Prompts) String() string {
	values := make([]string, len(p))
	for i, v := range p {
		values[i] = string(v)
	}
	return strings.Join(values, " ")
}

type CIBATokenDeliveryMode string

const (
	CIBATokenDeliveryModePoll CIBATokenDeliveryMode = "poll"
	CIBATokenDeliveryModePing CIBATokenDeliveryMode = "ping"
	CIBATokenDeliveryModePush CIBATokenDeliveryMode = "push"
)

type SessionState string

const (
	SessionStateUnauthenticated SessionState = "unauthenticated"
	SessionStateAuthenticated   SessionState = "authenticated"
)

const (
	// SessionAttributeAuthorizedGrant is set on sessions created by the
	// resource owner password credentials grant.
	SessionAttributeAuthorizedGrant = "authorized_grant"
	GrantPassword                   = "password"
)
