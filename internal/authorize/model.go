package authorize

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/luikyv/go-authorize/pkg/goidc"
)

type request struct {
	ClientID string
	goidc.AuthorizationParameters
	// params holds the first value of every parameter informed.
	params map[string]string
	// customParams are the configured non standard parameters that were
	// informed.
	customParams map[string]string
	// malformedParams lists parameters whose values could not be parsed.
	malformedParams []string
	// verifiedRequestObject is the request object the parameters were merged
	// with, if any.
	verifiedRequestObject string
}

func newRequest(values url.Values, customParamNames []string) request {
	req := request{
		ClientID: values.Get(paramClientID),
		AuthorizationParameters: goidc.AuthorizationParameters{
			ResponseType:          goidc.ResponseType(values.Get(paramResponseType)),
			ResponseMode:          goidc.ResponseMode(values.Get(paramResponseMode)),
			RedirectURI:           values.Get(paramRedirectURI),
			Scopes:                values.Get(paramScope),
			State:                 values.Get(paramState),
			Nonce:                 values.Get(paramNonce),
			Display:               goidc.DisplayValue(values.Get(paramDisplay)),
			ACRValues:             values.Get(paramACRValues),
			AMRValues:             values.Get(paramAMRValues),
			UILocales:             values.Get(paramUILocales),
			IDTokenHint:           values.Get(paramIDTokenHint),
			LoginHint:             values.Get(paramLoginHint),
			CodeChallenge:         values.Get(paramCodeChallenge),
			CodeChallengeMethod:   goidc.CodeChallengeMethod(values.Get(paramCodeChallengeMethod)),
			Claims:                values.Get(paramClaims),
			RequestObject:         values.Get(paramRequest),
			RequestURI:            values.Get(paramRequestURI),
			SessionID:             values.Get(paramSessionID),
			OriginHeaders:         values.Get(paramOriginHeaders),
			CustomResponseHeaders: values.Get(paramCustomResponseHeaders),
			AuthReqID:             values.Get(paramAuthReqID),
		},
		params:       make(map[string]string, len(values)),
		customParams: make(map[string]string),
	}

	for name := range values {
		req.params[name] = values.Get(name)
	}

	for _, name := range customParamNames {
		if value := values.Get(name); value != "" {
			req.customParams[name] = value
		}
	}

	if prompts, ok := goidc.ParsePrompts(values.Get(paramPrompt)); ok {
		req.Prompts = prompts
	} else {
		req.malformedParams = append(req.malformedParams, paramPrompt)
	}

	if maxAge := values.Get(paramMaxAge); maxAge != "" {
		if secs, err := strconv.Atoi(maxAge); err == nil && secs >= 0 {
			req.MaxAge = &secs
		} else {
			req.malformedParams = append(req.malformedParams, paramMaxAge)
		}
	}

	return req
}

// allowedParams returns the informed parameters that can be recorded as
// session attributes.
func (req request) allowedParams(names []string) map[string]string {
	allowed := make(map[string]string)
	for _, name := range names {
		if value, ok := req.params[name]; ok && value != "" {
			allowed[name] = value
		}
	}
	return allowed
}

// param is a single response parameter.
type param struct {
	name  string
	value string
}

// responseParams keeps the response parameters in the order they were added.
type responseParams []param

func (p *responseParams) add(name, value string) {
	*p = append(*p, param{name: name, value: value})
}

// encode serializes the parameters skipping the blank ones.
func (p responseParams) encode() string {
	var pairs []string
	for _, prm := range p {
		if prm.value == "" {
			continue
		}
		pairs = append(pairs, url.QueryEscape(prm.name)+"="+url.QueryEscape(prm.value))
	}
	return strings.Join(pairs, "&")
}

// parseCustomResponseHeaders decodes the custom_response_headers parameter
// which is a JSON array of objects mapping header names to values.
func parseCustomResponseHeaders(s string) (map[string]string, error) {
	headers := make(map[string]string)
	if s == "" {
		return headers, nil
	}

	var objs []map[string]string
	if err := json.Unmarshal([]byte(s), &objs); err != nil {
		return nil, fmt.Errorf("could not parse the custom response headers: %w", err)
	}

	for _, obj := range objs {
		for name, value := range obj {
			headers[name] = value
		}
	}
	return headers, nil
}

// sortedCustomParams returns the custom parameters ordered by name.
func (req request) sortedCustomParams() responseParams {
	names := make([]string, 0, len(req.customParams))
	for name := range req.customParams {
		names = append(names, name)
	}
	slices.Sort(names)

	var params responseParams
	for _, name := range names {
		params.add(name, req.customParams[name])
	}
	return params
}
