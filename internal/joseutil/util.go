package joseutil

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	jwsRegexp = regexp.MustCompile(`^[\w-]+\.[\w-]*\.[\w-]+$`)
	jweRegexp = regexp.MustCompile(`^[\w-]+\.[\w-]*\.[\w-]*\.[\w-]+\.[\w-]*$`)
)

func Sign(claims any, signer jose.SigningKey, opts *jose.SignerOptions) (string, error) {
	if opts == nil {
		opts = &jose.SignerOptions{}
	}
	if _, ok := opts.ExtraHeaders[jose.HeaderType]; !ok {
		opts = opts.WithType("JWT")
	}

	joseSigner, err := jose.NewSigner(signer, opts)
	if err != nil {
		return "", err
	}

	jws, err := jwt.Signed(joseSigner).Claims(claims).Serialize()
	if err != nil {
		return "", err
	}

	return jws, nil
}

// Decrypt decrypts a compact JWE with the key in jwks that matches its key
// id. When the JWE header has no key id, the first encryption key is used.
func Decrypt(
	jwe string,
	jwks jose.JSONWebKeySet,
	keyAlgs []jose.KeyAlgorithm,
	contentAlgs []jose.ContentEncryption,
) (
	string,
	error,
) {
	parsedJWE, err := jose.ParseEncrypted(jwe, keyAlgs, contentAlgs)
	if err != nil {
		return "", fmt.Errorf("could not parse the jwe: %w", err)
	}

	key, ok := decryptionKey(jwks, parsedJWE.Header.KeyID)
	if !ok {
		return "", errors.New("could not find a key to decrypt the jwe")
	}

	content, err := parsedJWE.Decrypt(key.Key)
	if err != nil {
		return "", fmt.Errorf("could not decrypt the jwe: %w", err)
	}

	return string(content), nil
}

func decryptionKey(jwks jose.JSONWebKeySet, keyID string) (jose.JSONWebKey, bool) {
	if keyID != "" {
		keys := jwks.Key(keyID)
		if len(keys) == 0 {
			return jose.JSONWebKey{}, false
		}
		return keys[0], true
	}

	for _, key := range jwks.Keys {
		if key.Use == "enc" {
			return key, true
		}
	}
	return jose.JSONWebKey{}, false
}

func IsJWS(token string) bool {
	return jwsRegexp.MatchString(token)
}

func IsJWE(token string) bool {
	return jweRegexp.MatchString(token)
}
