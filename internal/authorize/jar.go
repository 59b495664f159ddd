package authorize

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/luikyv/go-authorize/internal/clientutil"
	"github.com/luikyv/go-authorize/internal/hashutil"
	"github.com/luikyv/go-authorize/internal/joseutil"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/strutil"
	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// resolveRequestObject loads the request object informed by value or by
// reference, verifies it and merges it into the request.
// user is the subject of the user already authenticated, if any.
func resolveRequestObject(
	ctx oidc.Context,
	client *goidc.Client,
	req request,
	scopes []string,
	user string,
) (
	request,
	[]string,
	outcome,
) {
	reqObject := req.RequestObject
	if req.RequestURI != "" {
		fetched, err := fetchRequestObject(ctx, req.RequestURI)
		if err != nil {
			ctx.Logger().Info("invalid request_uri", slog.String("error", err.Error()))
			return req, scopes, errorRedirect(req, goidc.ErrorCodeInvalidRequestURI, "")
		}
		reqObject = fetched
	}

	obj, err := verifyRequestObject(ctx, client, reqObject)
	if err != nil {
		ctx.Logger().Info("invalid request object", slog.String("error", err.Error()))
		return req, scopes, errorRedirect(req, goidc.ErrorCodeInvalidOpenIDRequestObject,
			"Invalid JWT authorization request")
	}

	return mergeRequestObject(ctx, client, req, reqObject, obj, scopes, user)
}

// fetchRequestObject gets the request object referenced by uri.
// When uri has a fragment, it must be the base64url encoded SHA-256 hash of
// the request object.
func fetchRequestObject(ctx oidc.Context, uri string) (string, error) {
	parsedURI, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("could not parse the request uri: %w", err)
	}
	hash := parsedURI.Fragment
	parsedURI.Fragment = ""

	httpReq, err := http.NewRequestWithContext(ctx.Context(), http.MethodGet, parsedURI.String(), nil)
	if err != nil {
		return "", fmt.Errorf("could not build the request uri request: %w", err)
	}

	resp, err := ctx.HTTPClient().Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("could not fetch the request uri: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching the request uri resulted in %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, requestObjectMaxSize))
	if err != nil {
		return "", fmt.Errorf("could not read the request uri response: %w", err)
	}
	reqObject := string(body)

	if hash != "" && hash != hashutil.Thumbprint(reqObject) {
		return "", errors.New("the request object doesn't match the request uri hash")
	}

	return reqObject, nil
}

// verifyRequestObject verifies the request object with the custom function
// when configured or with the client keys otherwise.
func verifyRequestObject(
	ctx oidc.Context,
	client *goidc.Client,
	reqObject string,
) (
	goidc.RequestObject,
	error,
) {
	if ctx.VerifyRequestObjectFunc != nil {
		return ctx.VerifyRequestObjectFunc(ctx, client, reqObject)
	}

	if joseutil.IsJWE(reqObject) {
		signedReqObject, err := joseutil.Decrypt(reqObject, ctx.PrivateJWKS, ctx.JARKeyEncAlgs, ctx.JARContentEncAlgs)
		if err != nil {
			return goidc.RequestObject{}, err
		}
		reqObject = signedReqObject
	}

	parsedToken, err := jwt.ParseSigned(reqObject, jarAlgorithms(ctx, client))
	if err != nil {
		return goidc.RequestObject{}, fmt.Errorf("could not parse the request object: %w", err)
	}

	jwks, err := clientutil.JWKS(ctx, client)
	if err != nil {
		return goidc.RequestObject{}, err
	}

	jwk, err := verificationKey(jwks, parsedToken.Headers[0].KeyID)
	if err != nil {
		return goidc.RequestObject{}, err
	}

	var claims jwt.Claims
	var obj goidc.RequestObject
	if err := parsedToken.Claims(jwk.Key, &claims, &obj); err != nil {
		return goidc.RequestObject{}, fmt.Errorf("could not verify the request object: %w", err)
	}

	if err := validateClaims(ctx, claims, client); err != nil {
		return goidc.RequestObject{}, err
	}

	return obj, nil
}

func jarAlgorithms(ctx oidc.Context, client *goidc.Client) []jose.SignatureAlgorithm {
	if client.JARSigAlg != "" {
		return []jose.SignatureAlgorithm{client.JARSigAlg}
	}
	return ctx.JARSigAlgs
}

// verificationKey returns the key matching the key id or the first signing
// key when no key id was informed.
func verificationKey(jwks jose.JSONWebKeySet, keyID string) (jose.JSONWebKey, error) {
	if keyID != "" {
		keys := jwks.Key(keyID)
		if len(keys) == 0 {
			return jose.JSONWebKey{}, fmt.Errorf("could not find the client key %s", keyID)
		}
		return keys[0], nil
	}

	for _, jwk := range jwks.Keys {
		if jwk.Use != string(goidc.KeyUsageEncryption) {
			return jwk, nil
		}
	}
	return jose.JSONWebKey{}, errors.New("the client has no signing key")
}

// validateClaims checks the registered claims that were informed.
func validateClaims(ctx oidc.Context, claims jwt.Claims, client *goidc.Client) error {
	expected := jwt.Expected{Time: timeutil.Now()}
	if claims.Issuer != "" {
		expected.Issuer = client.ID
	}
	if len(claims.Audience) != 0 {
		expected.AnyAudience = []string{ctx.Host}
	}

	leeway := time.Duration(ctx.JARLeewayTimeSecs) * time.Second
	if err := claims.ValidateWithLeeway(expected, leeway); err != nil {
		return fmt.Errorf("the request object contains invalid claims: %w", err)
	}
	return nil
}

// mergeRequestObject merges the request object into the request.
// Values informed in the request object take precedence.
// The request informed is not modified.
func mergeRequestObject(
	ctx oidc.Context,
	client *goidc.Client,
	req request,
	reqObject string,
	obj goidc.RequestObject,
	scopes []string,
	user string,
) (
	request,
	[]string,
	outcome,
) {
	if !obj.ResponseType.Equals(req.ResponseType) {
		return req, scopes, errorRedirect(req, goidc.ErrorCodeInvalidOpenIDRequestObject,
			"The responseType parameter is not the same in the JWT")
	}

	if obj.ClientID == "" || obj.ClientID != req.ClientID {
		return req, scopes, errorRedirect(req, goidc.ErrorCodeInvalidOpenIDRequestObject,
			"The clientId parameter is not the same in the JWT")
	}

	if objScopes := strutil.SplitWithSpaces(obj.Scopes); len(objScopes) != 0 {
		// The scope parameter must always be sent using the OAuth 2.0 syntax
		// containing the openid value.
		if !strutil.ContainsOpenID(scopes) {
			return req, scopes, errorRedirect(req, goidc.ErrorCodeInvalidScope,
				"scope parameter does not contain openid value which is required.")
		}
		scopes = ctx.CheckScopesPolicy(client, objScopes)
	}

	if obj.RedirectURI != "" && obj.RedirectURI != req.RedirectURI {
		return req, scopes, errorRedirect(req, goidc.ErrorCodeInvalidOpenIDRequestObject,
			"The redirect_uri parameter is not the same in the JWT")
	}

	merged := req
	merged.verifiedRequestObject = reqObject
	merged.State = nonEmptyOrDefault(obj.State, req.State)
	merged.Nonce = nonEmptyOrDefault(obj.Nonce, req.Nonce)
	merged.Display = nonEmptyOrDefault(obj.Display, req.Display)

	if obj.Prompt != "" {
		prompts, ok := goidc.ParsePrompts(obj.Prompt)
		if !ok {
			return req, scopes, errorRedirect(merged, goidc.ErrorCodeInvalidOpenIDRequestObject,
				"The prompt parameter is not valid in the JWT")
		}
		if len(prompts) != 0 {
			merged.Prompts = prompts
		}
	}

	if obj.MaxAge != nil {
		maxAge := *obj.MaxAge
		merged.MaxAge = &maxAge
	}

	if maxAge := obj.Claims.IDTokenMaxAge(); maxAge != nil {
		merged.MaxAge = maxAge
	}

	if sub := obj.Claims.IDTokenSubject(); sub != "" && user != "" && !strings.EqualFold(sub, user) {
		return req, scopes, errorRedirect(merged, goidc.ErrorCodeUserMismatched, "")
	}

	return merged, scopes, nil
}

func nonEmptyOrDefault[T ~string](s1 T, s2 T) T {
	if s1 == "" {
		return s2
	}
	return s1
}
