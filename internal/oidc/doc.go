// Package oidc is a complement of the package goidc containing private structs
// and functions that are not meant to be accessible for users of goidc.
// It contains the server configuration and the request context every
// endpoint handler operates on.
package oidc
