package hashutil

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"

	"github.com/go-jose/go-jose/v4"
)

// Thumbprint generates a base64 URL-encoded SHA-256 hash (thumbprint) of a
// given string.
func Thumbprint(s string) string {
	return ThumbprintBytes([]byte(s))
}

func ThumbprintBytes(b []byte) string {
	hash := sha256.Sum256(b)
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// HalfHash hashes the claim with the hash function associated with alg and
// encodes the left-most half of the result as required by at_hash, c_hash and
// s_hash.
func HalfHash(claim string, alg jose.SignatureAlgorithm) string {
	var hash hash.Hash
	switch alg {
	case jose.RS384, jose.ES384, jose.PS384, jose.HS384:
		hash = sha512.New384()
	case jose.RS512, jose.ES512, jose.PS512, jose.HS512:
		hash = sha512.New()
	default:
		hash = sha256.New()
	}

	hash.Write([]byte(claim))
	halfHashedClaim := hash.Sum(nil)[:hash.Size()/2]
	return base64.RawURLEncoding.EncodeToString(halfHashedClaim)
}

// SessionState computes the OpenID Connect session management session_state
// value for a client.
func SessionState(clientID, origin, opBrowserState, salt string) string {
	hash := sha256.Sum256([]byte(clientID + " " + origin + " " + opBrowserState + " " + salt))
	return hex.EncodeToString(hash[:]) + "." + salt
}
