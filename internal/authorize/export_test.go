package authorize

import (
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

type Request = request

var (
	NewRequest                 = newRequest
	ValidateParams             = validateParams
	ResponseMode               = responseMode
	ParseCustomResponseHeaders = parseCustomResponseHeaders
	AuthnIsFresh               = authnIsFresh
	CheckACR                   = checkACR
)

const (
	ACRUnchanged          = acrUnchanged
	ACRChangedRecoverable = acrChangedRecoverable
	ACRChangedFatal       = acrChangedFatal
)

// RedirectURL builds the redirect from name and value pairs.
func RedirectURL(base string, mode goidc.ResponseMode, pairs ...string) string {
	var params responseParams
	for i := 0; i+1 < len(pairs); i += 2 {
		params.add(pairs[i], pairs[i+1])
	}
	return redirectURL(base, mode, params)
}

// ResolveRequestObject reports whether the request ended while resolving
// the request object with the URL it was redirected to.
func ResolveRequestObject(
	ctx oidc.Context,
	client *goidc.Client,
	req Request,
	scopes []string,
	user string,
) (
	Request,
	[]string,
	string,
) {
	merged, scopes, out := resolveRequestObject(ctx, client, req, scopes, user)
	if out == nil {
		return merged, scopes, ""
	}
	return merged, scopes, out.(redirectOutcome).url
}

// IssueGrant issues the artifacts of an authorized request and returns the
// response parameters by name.
func IssueGrant(
	ctx oidc.Context,
	client *goidc.Client,
	req Request,
	scopes []string,
	session *goidc.Session,
) (
	map[string]string,
	error,
) {
	params, _, err := issueGrant(ctx, issuance{
		client:  client,
		req:     req,
		scopes:  scopes,
		session: session,
	})
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(params))
	for _, p := range params {
		values[p.name] = p.value
	}
	return values, nil
}
