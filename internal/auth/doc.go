// ABOUTME: Package auth handles API authentication: HS256 JWT verification,
// ABOUTME: bearer-token middleware, and identity propagation through context.

// Package auth authenticates API callers.
//
// Tokens are HS256 JWTs whose "sub" claim carries the user id. The HTTP
// middleware verifies the bearer token, resolves the user, and attaches an
// Identity to the request context for handlers to read with FromContext.
package auth
