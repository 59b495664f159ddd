// Package clientutil contains helpers to deal with client metadata.
package clientutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-jose/go-jose/v4"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// JWKS returns the client public JWKS using the following priority:
//  1. Directly from the jwks attribute if present.
//  2. From jwks_uri as a fallback.
//
// Fetched keys are not cached on the client.
func JWKS(ctx oidc.Context, c *goidc.Client) (jose.JSONWebKeySet, error) {
	if len(c.PublicJWKS) != 0 {
		var jwks jose.JSONWebKeySet
		if err := json.Unmarshal(c.PublicJWKS, &jwks); err != nil {
			return jose.JSONWebKeySet{}, fmt.Errorf("could not parse the client jwks: %w", err)
		}
		return jwks, nil
	}

	if c.PublicJWKSURI == "" {
		return jose.JSONWebKeySet{}, errors.New("the client jwks was informed neither by value nor by reference")
	}

	return fetchJWKS(ctx, c.PublicJWKSURI)
}

func fetchJWKS(ctx oidc.Context, uri string) (jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx.Context(), http.MethodGet, uri, nil)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("could not build the jwks request: %w", err)
	}

	resp, err := ctx.HTTPClient().Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("could not fetch the client jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return jose.JSONWebKeySet{}, fmt.Errorf("fetching the client jwks resulted in %d", resp.StatusCode)
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("could not parse the client jwks: %w", err)
	}

	return jwks, nil
}
