package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/platinummonkey/helpdesk/pkg/companies"
	"github.com/platinummonkey/helpdesk/pkg/dashboard"
	"github.com/platinummonkey/helpdesk/pkg/orders"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/projects"
	"github.com/platinummonkey/helpdesk/pkg/reports"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
	"github.com/platinummonkey/helpdesk/pkg/users"
)

func idQuery(pairs ...interface{}) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case int64:
			if v > 0 {
				q.Set(key, strconv.FormatInt(v, 10))
			}
		case string:
			if v != "" {
				q.Set(key, v)
			}
		case bool:
			if v {
				q.Set(key, "true")
			}
		}
	}
	return q
}

// Companies lists the companies visible to the caller.
func (c *Client) Companies(ctx context.Context) ([]*companies.Company, error) {
	var out []*companies.Company
	_, err := c.do(ctx, http.MethodGet, "/companies", nil, nil, &out)
	return out, err
}

// Roles lists roles, narrowed to one company when companyID > 0.
func (c *Client) Roles(ctx context.Context, companyID int64) ([]*permissions.Role, error) {
	var out []*permissions.Role
	_, err := c.do(ctx, http.MethodGet, "/roles", idQuery("companyId", companyID), nil, &out)
	return out, err
}

// Projects lists projects, optionally for one company and only active ones.
func (c *Client) Projects(ctx context.Context, companyID int64, activeOnly bool) ([]*projects.Project, error) {
	var out []*projects.Project
	q := idQuery("companyId", companyID, "active", activeOnly)
	_, err := c.do(ctx, http.MethodGet, "/projects", q, nil, &out)
	return out, err
}

// Users lists users, optionally for one company.
func (c *Client) Users(ctx context.Context, companyID int64) ([]*users.User, error) {
	var out []*users.User
	_, err := c.do(ctx, http.MethodGet, "/users", idQuery("companyId", companyID), nil, &out)
	return out, err
}

// Assign assigns one user to a project.
func (c *Client) Assign(ctx context.Context, projectID, userID int64) error {
	req := projects.AssignmentRequest{UserID: userID, ProjectID: projectID}
	_, err := c.do(ctx, http.MethodPost, "/projects/assign", nil, req, nil)
	return err
}

// TicketQuery narrows a ticket listing.
type TicketQuery struct {
	Status    string
	ProjectID int64
	CompanyID int64
}

// Tickets lists the tickets visible to the caller.
func (c *Client) Tickets(ctx context.Context, q TicketQuery) ([]*tickets.Ticket, error) {
	var out []*tickets.Ticket
	query := idQuery("status", q.Status, "projectId", q.ProjectID, "companyId", q.CompanyID)
	_, err := c.do(ctx, http.MethodGet, "/tickets", query, nil, &out)
	return out, err
}

// Ticket returns a ticket with its history, assignments and comments.
func (c *Client) Ticket(ctx context.Context, id int64) (*tickets.Detail, error) {
	var out tickets.Detail
	if _, err := c.do(ctx, http.MethodGet, "/tickets/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TicketReport returns the detailed report rows for f.
func (c *Client) TicketReport(ctx context.Context, f reports.Filter) ([]*reports.Row, error) {
	var out []*reports.Row
	_, err := c.do(ctx, http.MethodPost, "/tickets/ticket-report", nil, f, &out)
	return out, err
}

// ExportTicketReport downloads the report as xlsx or pdf.
func (c *Client) ExportTicketReport(ctx context.Context, f reports.Filter, format reports.Format) (*File, error) {
	q := url.Values{"format": {string(format)}}
	return c.download(ctx, http.MethodPost, "/tickets/ticket-report/export", q, f)
}

// PurchaseOrders lists purchase orders, optionally for one company.
func (c *Client) PurchaseOrders(ctx context.Context, companyID int64) ([]*orders.PurchaseOrder, error) {
	var out []*orders.PurchaseOrder
	_, err := c.do(ctx, http.MethodGet, "/purchase-orders", idQuery("companyId", companyID), nil, &out)
	return out, err
}

// Dashboard returns the dashboard statistics.
func (c *Client) Dashboard(ctx context.Context, companyID, projectID int64) (*dashboard.Stats, error) {
	var out dashboard.Stats
	q := idQuery("companyId", companyID, "projectId", projectID)
	if _, err := c.do(ctx, http.MethodGet, "/dashboard/dashboard-stats", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RolePermissions fetches the stored matrix of one role.
func (c *Client) RolePermissions(ctx context.Context, companyID, roleID int64) (permissions.Matrix, error) {
	var out []struct {
		Permissions permissions.Matrix `json:"permissions"`
	}
	q := idQuery("companyId", companyID, "roleId", roleID)
	if _, err := c.do(ctx, http.MethodGet, "/permissions", q, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return permissions.Matrix{}, nil
	}
	return out[0].Permissions, nil
}

// SavePermissions stores a role's matrix and returns the server message.
func (c *Client) SavePermissions(ctx context.Context, req permissions.SaveRequest) (string, error) {
	return c.do(ctx, http.MethodPost, "/permissions", nil, req, nil)
}
