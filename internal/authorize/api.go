package authorize

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"

	"github.com/luikyv/go-authorize/internal/oidc"
	"github.com/luikyv/go-authorize/internal/slogx"
	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

func RegisterHandlers(router *http.ServeMux, config *oidc.Configuration, middlewares ...goidc.MiddlewareFunc) {
	router.Handle(
		"GET "+config.EndpointPrefix+config.EndpointAuthorize,
		goidc.ApplyMiddlewares(oidc.Handler(config, handler), middlewares...),
	)
	router.Handle(
		"POST "+config.EndpointPrefix+config.EndpointAuthorize,
		goidc.ApplyMiddlewares(oidc.Handler(config, handler), middlewares...),
	)
}

func handler(ctx oidc.Context) {
	req := newRequest(requestValues(ctx), ctx.CustomParams)

	entry := goidc.AuditEntry{
		ID:       slogx.NewID(),
		Action:   goidc.AuditActionUserAuthorization,
		IP:       ctx.ClientIP(),
		ClientID: req.ClientID,
		Scope:    req.Scopes,
	}
	defer func() {
		if r := recover(); r != nil {
			ctx.Logger().Error("panic while processing the authorization request",
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			entry.Success = false
			writeOutcome(ctx, internalError(fmt.Errorf("panic: %v", r)))
		}
		entry.Timestamp = timeutil.TimestampNow()
		ctx.Audit(entry)
	}()

	out := authorize(ctx, req, &entry)
	entry.Success = isSuccess(out)
	writeOutcome(ctx, out)
}

func requestValues(ctx oidc.Context) url.Values {
	if ctx.Request.Method != http.MethodPost {
		return ctx.Request.URL.Query()
	}

	if err := ctx.Request.ParseForm(); err != nil {
		ctx.Logger().Info("could not parse the authorization form", slog.String("error", err.Error()))
	}
	return ctx.Request.PostForm
}

func writeOutcome(ctx oidc.Context, out outcome) {
	switch o := out.(type) {
	case redirectOutcome:
		for name, value := range o.headers {
			ctx.Response.Header().Set(name, value)
		}
		ctx.Redirect(o.url)
	case jsonErrorOutcome:
		ctx.Logger().Info("authorization request failed", slog.String("error", o.err.Error()))
		ctx.WriteError(o.err)
	case internalErrorOutcome:
		ctx.WriteError(o.err)
	}
}
