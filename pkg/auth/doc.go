// Package auth issues and validates session tokens, hashes passwords and
// carries the authenticated caller through request contexts.
//
// Tokens are HS256 JWTs whose jti doubles as the server-side session id:
// logging out deletes the session, which invalidates the token even before
// it expires.
//
//	tm := auth.NewTokenManager(secret, 24*time.Hour)
//	token, claims, err := tm.Issue(user.ID, user.RoleID, user.CompanyID)
//	...
//	claims, err := tm.Parse(token)
package auth
