package router

import (
	"net/http"
	"slices"
	"strings"
)

// Router wraps http.ServeMux with middleware chaining and path prefixes.
// Middleware runs inside the mux, after the route is matched, so
// r.Pattern is available to every middleware in the chain.
type Router struct {
	mux    *http.ServeMux
	prefix string
	chain  []Middleware
}

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// New creates a new Router with optional global middleware
func New(middleware ...Middleware) *Router {
	return &Router{
		mux:   http.NewServeMux(),
		chain: middleware,
	}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Get registers a GET route
func (r *Router) Get(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodGet, pattern, handler, middleware...)
}

// Post registers a POST route
func (r *Router) Post(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPost, pattern, handler, middleware...)
}

// Put registers a PUT route
func (r *Router) Put(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPut, pattern, handler, middleware...)
}

// Delete registers a DELETE route
func (r *Router) Delete(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodDelete, pattern, handler, middleware...)
}

// Patch registers a PATCH route
func (r *Router) Patch(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPatch, pattern, handler, middleware...)
}

// Handle registers a route with an explicit method. An empty method matches
// every method.
func (r *Router) Handle(method, pattern string, handler http.Handler, middleware ...Middleware) {
	full := r.prefix + pattern
	if method != "" {
		full = method + " " + full
	}
	r.mux.Handle(full, r.wrap(handler, middleware))
}

// wrap applies the group chain then the route middleware, outermost first.
func (r *Router) wrap(handler http.Handler, middleware []Middleware) http.Handler {
	combined := append(slices.Clone(r.chain), middleware...)

	result := handler
	for _, m := range slices.Backward(combined) {
		result = m(result)
	}
	return result
}

// Group creates a sub-router with additional middleware
func (r *Router) Group(middleware ...Middleware) *Router {
	return &Router{
		mux:    r.mux,
		prefix: r.prefix,
		chain:  append(slices.Clone(r.chain), middleware...),
	}
}

// Route registers the routes added by fn under prefix with extra
// middleware.
func (r *Router) Route(prefix string, fn func(*Router), middleware ...Middleware) {
	sub := r.Group(middleware...)
	sub.prefix = r.prefix + strings.TrimSuffix(prefix, "/")
	fn(sub)
}

// NotFound serves every path under the router's prefix that no other route
// matches.
func (r *Router) NotFound(handler http.HandlerFunc) {
	r.Handle("", "/", handler)
}
