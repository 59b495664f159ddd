// Package strutil contains functions to help handling strings.
package strutil

import (
	"crypto/rand"
	"math/big"
	"net/url"
	"slices"
	"strings"

	"github.com/luikyv/go-authorize/pkg/goidc"
)

const charset string = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func ContainsOpenID(scopes []string) bool {
	return slices.Contains(scopes, goidc.ScopeOpenID)
}

func SplitWithSpaces(s string) []string {
	return strings.Fields(s)
}

// JoinWithSpaces is the inverse of SplitWithSpaces.
func JoinWithSpaces(s []string) string {
	return strings.Join(s, " ")
}

func Random(length int) string {
	result := strings.Builder{}
	charsetLength := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, charsetLength)
		if err != nil {
			panic(err)
		}
		result.WriteByte(charset[n.Int64()])
	}

	return result.String()
}

// Origin returns the scheme and host of the uri, e.g. https://example.com:8443.
// An empty string is returned if the uri cannot be parsed.
func Origin(uri string) string {
	parsedURL, err := url.Parse(uri)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return ""
	}

	return parsedURL.Scheme + "://" + parsedURL.Host
}

// EqualFoldAny reports whether s is equal, ignoring case, to any of the
// values.
func EqualFoldAny(s string, values ...string) bool {
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.EqualFold(s, v)
	})
}
