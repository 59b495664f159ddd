package authorize

import (
	"github.com/luikyv/go-authorize/pkg/goidc"
)

// outcome is the terminal result of an authorization request.
// A nil outcome returned by a stage means the request must go on.
type outcome interface {
	isOutcome()
}

// redirectOutcome sends the user agent to url.
type redirectOutcome struct {
	url string
	// success is set only when the redirect carries the issued artifacts.
	success bool
	headers map[string]string
}

// jsonErrorOutcome is used when the redirect URI cannot be trusted.
type jsonErrorOutcome struct {
	err goidc.Error
}

// internalErrorOutcome reports unexpected failures.
type internalErrorOutcome struct {
	err error
}

func (redirectOutcome) isOutcome()      {}
func (jsonErrorOutcome) isOutcome()     {}
func (internalErrorOutcome) isOutcome() {}

func jsonError(code goidc.ErrorCode, desc string) outcome {
	return jsonErrorOutcome{err: goidc.NewError(code, desc)}
}

func internalError(err error) outcome {
	return internalErrorOutcome{err: err}
}

func isSuccess(out outcome) bool {
	redirect, ok := out.(redirectOutcome)
	return ok && redirect.success
}
