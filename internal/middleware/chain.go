// Package middleware holds the HTTP interceptors shared by the server.
package middleware

import "net/http"

// Interceptor inspects a request before it reaches its handler. It returns
// the (possibly enriched) request and true to continue, or false once it has
// written a response and the chain must stop.
type Interceptor interface {
	Intercept(w http.ResponseWriter, r *http.Request) (*http.Request, bool)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(w http.ResponseWriter, r *http.Request) (*http.Request, bool)

func (f InterceptorFunc) Intercept(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	return f(w, r)
}

// Chain evaluates interceptors in order and calls next only if all continue.
func Chain(interceptors ...Interceptor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, ic := range interceptors {
				var ok bool
				r, ok = ic.Intercept(w, r)
				if !ok {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
