// Package api assembles the helpdesk REST server.
//
// NewServer builds every domain service over one database, blob store and
// optional redis client, mounts their handlers on a gorilla/mux router and
// wraps the result in the shared middleware chain:
//
//	otelhttp -> recovery -> request id -> logging -> CORS -> body limit -> audit -> router
//
// The router itself has two trees. Login, password reset, health and
// metrics are public; everything else runs behind the bearer-token
// middleware and the per-caller rate limiter, and each mutating route is
// further gated by the permission matrix.
package api
