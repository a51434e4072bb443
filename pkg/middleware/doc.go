// Package middleware provides HTTP middleware for authentication and rate
// limiting.
//
// AuthMiddleware validates the bearer JWT, loads the server session named by
// the token id and stores an auth.AuthContext on the request. A missing,
// invalid, expired or revoked token is a 401 with SessionExpiredMessage.
//
// RateLimiter keeps an x/time/rate token bucket per user (or per client IP
// for anonymous requests). DistributedRateLimiter shares a fixed window
// across instances through Redis and fails open by default.
package middleware
