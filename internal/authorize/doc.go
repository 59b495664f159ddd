// Package authorize handles the implementation of the authorization endpoint.
//
// A request goes through validation, request object resolution, the session
// checks, consent and finally grant issuance. Every stage either lets the
// request continue or returns the outcome that ends it.
//
// In terms of parameter validation, the client and the redirect URI must
// ALWAYS be validated first.
// This ensures that any subsequent errors can be properly redirected to the
// client.
package authorize
