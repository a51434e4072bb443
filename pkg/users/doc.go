// Package users manages helpdesk accounts and the authentication flows built
// on them: login, logout, and the forgot/reset password round trip.
//
// Login issues a signed token whose id names a server-side session, so
// logout and password resets revoke tokens before they expire. The login
// response carries the caller's permission matrix, which clients cache.
package users
