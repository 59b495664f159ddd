package storage

import (
	"github.com/luikyv/go-authorize/pkg/goidc"
)

var (
	_ goidc.ClientManager              = NewClientManager()
	_ goidc.SessionManager             = NewSessionManager(0)
	_ goidc.GrantManager               = NewGrantManager()
	_ goidc.ClientAuthorizationManager = NewClientAuthorizationManager()
)

// findFirst returns the first element in a map for which the condition is
// true. If no element is found, 'ok' is set to false.
func findFirst[T any](m map[string]T, condition func(T) bool) (element T, ok bool) {
	for _, element = range m {
		if condition(element) {
			return element, true
		}
	}

	return element, false
}

func removeOldest[T any](m map[string]T, createdAtFunc func(T) int) {
	var oldestKey string
	var oldestCreatedAt int

	for key, value := range m {
		createdAt := createdAtFunc(value)
		if oldestCreatedAt == 0 || createdAt < oldestCreatedAt {
			oldestKey = key
			oldestCreatedAt = createdAt
		}
	}

	delete(m, oldestKey)
}
