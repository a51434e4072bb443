// Package client is the Go client for the helpdesk REST API.
//
// A Client carries the signed-in Session: it sends the stored bearer token,
// loads the permission matrix on login and clears the session whenever the
// server answers 401. Non-2xx responses come back as *apperr.Error so
// callers can branch on the kind and show the server's message.
//
//	sess := session.New(ctx, session.NewFileBackend(path), logger)
//	c := client.New("http://localhost:8080", sess, logger)
//	if _, err := c.Login(ctx, email, password); err != nil {
//		return err
//	}
//	if sess.Permissions.Can(permissions.PageTickets, permissions.ActionView) {
//		list, err := c.Tickets(ctx, client.TicketQuery{Status: "Open"})
//		...
//	}
package client
