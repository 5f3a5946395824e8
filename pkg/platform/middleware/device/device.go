// Package device derives an opaque device fingerprint from stable request
// attributes and threads it through the request context. The binding registry
// only ever compares the resulting strings; it never sees the inputs.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"agora/pkg/requestcontext"
)

// Fingerprint hashes the stable attributes of a request into an opaque
// identifier: user agent, accept headers, and the client IP.
func Fingerprint(r *http.Request) string {
	components := []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		ClientIP(r),
	}
	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(sum[:])
}

// ClientIP returns the originating client IP, honoring X-Forwarded-For when a
// proxy added it.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// Middleware computes the fingerprint once per request and stores it in the
// context together with the client metadata the audit ledger records.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithDeviceFingerprint(ctx, Fingerprint(r))
		ctx = requestcontext.WithClientMetadata(ctx, ClientIP(r), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
