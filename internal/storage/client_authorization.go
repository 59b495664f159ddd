package storage

import (
	"context"
	"sync"

	"github.com/luikyv/go-authorize/pkg/goidc"
)

type ClientAuthorizationManager struct {
	Authorizations map[string]*goidc.ClientAuthorization
	mu             sync.RWMutex
}

func NewClientAuthorizationManager() *ClientAuthorizationManager {
	return &ClientAuthorizationManager{
		Authorizations: make(map[string]*goidc.ClientAuthorization),
	}
}

func (m *ClientAuthorizationManager) Save(_ context.Context, auth *goidc.ClientAuthorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Authorizations[authorizationKey(auth.Subject, auth.ClientID)] = auth
	return nil
}

func (m *ClientAuthorizationManager) ClientAuthorization(
	_ context.Context,
	sub string,
	clientID string,
) (
	*goidc.ClientAuthorization,
	error,
) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	auth, exists := m.Authorizations[authorizationKey(sub, clientID)]
	if !exists {
		return nil, goidc.ErrNotFound
	}

	return auth, nil
}

func authorizationKey(sub, clientID string) string {
	return sub + " " + clientID
}
