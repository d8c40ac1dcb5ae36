package webdavfs

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/net/webdav"
)

// corsMethods is the full DAV method set the preflight response
// advertises (spec §4.7's CORS contract).
const corsMethods = "GET, PUT, DELETE, PROPFIND, PROPPATCH, MKCOL, COPY, MOVE, LOCK, UNLOCK, OPTIONS"

const corsHeaders = "Authorization, Content-Type, Depth, Destination, If, Lock-Token, Overwrite, X-Requested-With"

const corsExposeHeaders = "DAV, ETag, Content-Range, Content-Length, WWW-Authenticate"

// NewHandler builds the http.Handler for the WebDAV mount: basic auth
// against username/password, CORS header echoing on every response, and
// the underlying webdav.Handler backed by fs (spec §4.7).
func NewHandler(fs webdav.FileSystem, username, password string) http.Handler {
	dav := &webdav.Handler{
		FileSystem: fs,
		LockSystem: webdav.NewMemLS(),
	}
	return corsMiddleware(basicAuthMiddleware(dav, username, password))
}

// corsMiddleware echoes the request's Origin (never "*", since
// credentials are allowed) on every response and answers preflight
// OPTIONS requests directly (spec §4.7).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", corsMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
			w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// basicAuthMiddleware enforces the configured WebDAV credentials using a
// constant-time comparison to avoid leaking password length via timing.
func basicAuthMiddleware(next http.Handler, username, password string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="filen-webdav"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
