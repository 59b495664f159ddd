// Package provider implements a configurable OpenID Connect authorization
// endpoint.
//
// A new provider can be configured with [ProviderOption]s and instantiated
// using [New]. By default clients, sessions, grants and client
// authorizations are stored in memory.
//
// It is highly recommended to replace the default storage with durable
// implementations of [goidc.ClientManager], [goidc.SessionManager],
// [goidc.GrantManager] and [goidc.ClientAuthorizationManager].
package provider
