package provider

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

func validateJWKS(config oidc.Configuration) error {
	for _, key := range config.PrivateJWKS.Keys {
		if !key.Valid() {
			return fmt.Errorf("the key with ID: %s is not valid", key.KeyID)
		}
	}

	return nil
}

func validateIDTokenSigKey(config oidc.Configuration) error {
	if isSymmetric(string(config.IDTokenDefaultSigAlg)) {
		return errors.New("symetric algorithms are not allowed for signing id tokens")
	}

	for _, key := range config.PrivateJWKS.Keys {
		if key.Algorithm == string(config.IDTokenDefaultSigAlg) &&
			key.Use != string(goidc.KeyUsageEncryption) {
			return nil
		}
	}

	return fmt.Errorf("the server jwks has no signing key for %s", config.IDTokenDefaultSigAlg)
}

func validateJARSigAlgs(config oidc.Configuration) error {
	for _, alg := range config.JARSigAlgs {
		if isSymmetric(string(alg)) {
			return errors.New("symetric algorithms are not allowed for request objects")
		}
	}

	return nil
}

func validateJAREnc(config oidc.Configuration) error {
	for _, alg := range config.JARKeyEncAlgs {
		if !slices.ContainsFunc(config.PrivateJWKS.Keys, func(key jose.JSONWebKey) bool {
			return key.Use == string(goidc.KeyUsageEncryption) && key.Algorithm == string(alg)
		}) {
			return fmt.Errorf("the server jwks has no encryption key for %s", alg)
		}
	}

	return nil
}

func validateEndpoints(config oidc.Configuration) error {
	if !strings.HasPrefix(config.EndpointAuthorize, "/") ||
		!strings.HasPrefix(config.EndpointInteractiveAuthorize, "/") {
		return errors.New("endpoints must start with /")
	}

	if config.EndpointAuthorize == config.EndpointInteractiveAuthorize {
		return errors.New("the login page cannot be served at the authorization endpoint")
	}

	return nil
}

func validateCIBA(config oidc.Configuration) error {
	if config.CIBAIsEnabled && config.PushDeliverer == nil {
		return errors.New("ciba requires a push deliverer")
	}

	if config.CIBAIsEnabled && !slices.Contains(config.GrantTypes, goidc.GrantCIBA) {
		return errors.New("ciba is enabled but its grant type is not supported")
	}

	return nil
}

func validateACRLevels(config oidc.Configuration) error {
	for acr, level := range config.ACRLevels {
		if acr == "" || level < 0 {
			return fmt.Errorf("invalid level %d for acr %q", level, acr)
		}
	}

	return nil
}

func runValidations(
	config oidc.Configuration,
	validators ...func(oidc.Configuration) error,
) error {
	for _, validator := range validators {
		if err := validator(config); err != nil {
			return err
		}
	}

	return nil
}

func isSymmetric(alg string) bool {
	return strings.HasPrefix(alg, "HS")
}
