// Package permissions implements the company → role → page → action
// permission matrix.
//
// The applicability table (which actions mean anything on which page) is
// embedded as catalog.yaml. Matrices are stored per (company, role) in
// Postgres, resolved through a cached Service and enforced on HTTP routes by
// Guard.RequirePermission:
//
//	svc := permissions.NewService(permissions.NewStore(db), nil, 5*time.Minute, metrics)
//	guard := permissions.NewGuard(svc, metrics)
//	router.Handle("/tickets", guard.RequirePermission(permissions.PageTickets, permissions.ActionCreate)(h))
//
// Editor is the admin-side working copy used by the CLI to load, toggle and
// save a role's matrix.
package permissions
