// CLAUDE:SUMMARY HTTP middleware stack for the superx server: HEAD as GET, security headers that keep annotated pages inert, request body ceiling.
// Package shield holds the HTTP middleware wrapped around every superx route.
package shield

import "net/http"

// DefaultMaxBody bounds request bodies, which carry inline HTML sources.
const DefaultMaxBody int64 = 16 << 20

// Stack returns the middleware in application order. maxBody <= 0 uses
// DefaultMaxBody.
func Stack(maxBody int64) []func(http.Handler) http.Handler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
	}
}

// HeadToGet serves HEAD through GET routes. net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBody rejects requests whose declared length exceeds maxBytes and caps
// the rest while they are read.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
