// Package session holds the signed-in user's state.
//
// On the client, a Session bundles the token, profile, cached permission
// matrix and data table markers under fixed keys in a Backend (a JSON file
// for the CLI, Redis or memory elsewhere). PermissionStore answers Can from
// the cached matrix and treats anything unreadable as "no permissions".
//
// On the server, ServerStore keeps one Record per issued token, keyed by the
// token id, so that logging out revokes the token.
package session
