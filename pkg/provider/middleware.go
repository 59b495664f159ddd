package provider

import (
	"encoding/pem"
	"net/http"
	"net/url"

	"github.com/luikyv/go-authorize/pkg/goidc"
)

// clientCertMiddleware transmits the certificate presented during the TLS
// handshake in the client certificate header, URL encoded in PEM format.
// Any value sent by the user agent is discarded.
func clientCertMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(goidc.HeaderClientCert)
		if r.TLS != nil && len(r.TLS.PeerCertificates) != 0 {
			rawCert := pem.EncodeToMemory(&pem.Block{
				Type:  "CERTIFICATE",
				Bytes: r.TLS.PeerCertificates[0].Raw,
			})
			r.Header.Set(goidc.HeaderClientCert, url.QueryEscape(string(rawCert)))
		}
		next.ServeHTTP(w, r)
	})
}
