package joseutil_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/luikyv/go-authorize/internal/joseutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	// Given.
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	claims := map[string]any{
		"claim": "value",
	}

	// When.
	jws, err := joseutil.Sign(claims, jose.SigningKey{Algorithm: jose.RS256, Key: key}, nil)

	// Then.
	require.NoError(t, err)
	assert.True(t, joseutil.IsJWS(jws))

	parsedJWS, err := jwt.ParseSigned(jws, []jose.SignatureAlgorithm{jose.RS256})
	require.NoError(t, err)

	var parsedClaims map[string]any
	require.NoError(t, parsedJWS.Claims(key.Public(), &parsedClaims))
	assert.Equal(t, "value", parsedClaims["claim"])
}

func TestDecrypt(t *testing.T) {
	// Given.
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	jwk := jose.JSONWebKey{
		KeyID:     "enc_key",
		Key:       key,
		Algorithm: string(jose.RSA_OAEP_256),
		Use:       "enc",
	}
	encrypter, err := jose.NewEncrypter(
		jose.A128CBC_HS256,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: key.Public(), KeyID: jwk.KeyID},
		(&jose.EncrypterOptions{}).WithType("JWT").WithContentType("JWT"),
	)
	require.NoError(t, err)
	jwe, _ := encrypter.Encrypt([]byte("random_content"))
	jweStr, _ := jwe.CompactSerialize()
	assert.True(t, joseutil.IsJWE(jweStr))

	// When.
	content, err := joseutil.Decrypt(
		jweStr,
		jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}},
		[]jose.KeyAlgorithm{jose.RSA_OAEP_256},
		[]jose.ContentEncryption{jose.A128CBC_HS256},
	)

	// Then.
	require.NoError(t, err)
	assert.Equal(t, "random_content", content)
}

func TestDecrypt_UnknownKey(t *testing.T) {
	// Given.
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	encrypter, _ := jose.NewEncrypter(
		jose.A128CBC_HS256,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: key.Public(), KeyID: "other_key"},
		nil,
	)
	jwe, _ := encrypter.Encrypt([]byte("random_content"))
	jweStr, _ := jwe.CompactSerialize()

	// When.
	_, err := joseutil.Decrypt(
		jweStr,
		jose.JSONWebKeySet{},
		[]jose.KeyAlgorithm{jose.RSA_OAEP_256},
		[]jose.ContentEncryption{jose.A128CBC_HS256},
	)

	// Then.
	assert.Error(t, err)
}
