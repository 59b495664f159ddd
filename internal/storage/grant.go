package storage

import (
	"context"
	"sync"

	"github.com/luikyv/go-authorize/pkg/goidc"
)

type GrantManager struct {
	Grants map[string]*goidc.Grant
	mu     sync.RWMutex
}

func NewGrantManager() *GrantManager {
	return &GrantManager{
		Grants: make(map[string]*goidc.Grant),
	}
}

func (m *GrantManager) Save(_ context.Context, grant *goidc.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Grants[grant.ID] = grant
	return nil
}

func (m *GrantManager) Grant(_ context.Context, id string) (*goidc.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grant, exists := m.Grants[id]
	if !exists {
		return nil, goidc.ErrNotFound
	}

	return grant, nil
}

func (m *GrantManager) GrantByAuthReqID(_ context.Context, authReqID string) (*goidc.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grant, exists := findFirst(m.Grants, func(g *goidc.Grant) bool {
		return g.Type == goidc.GrantCIBA && g.AuthReqID == authReqID
	})
	if !exists {
		return nil, goidc.ErrNotFound
	}

	return grant, nil
}
