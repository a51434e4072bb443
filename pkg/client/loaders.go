package client

import (
	"context"
	"strings"

	"github.com/platinummonkey/helpdesk/pkg/companies"
	"github.com/platinummonkey/helpdesk/pkg/users"
)

func matches(query string, fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// CompanyLoader returns a combobox loader over the caller's active
// companies, matched on name.
func (c *Client) CompanyLoader() func(ctx context.Context, query string) ([]*companies.Company, error) {
	return func(ctx context.Context, query string) ([]*companies.Company, error) {
		list, err := c.Companies(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]*companies.Company, 0, len(list))
		for _, co := range list {
			if co.IsActive && matches(query, co.Name) {
				out = append(out, co)
			}
		}
		return out, nil
	}
}

// UserLoader returns a combobox loader over a company's active users,
// matched on name or email. companyID 0 searches every visible user.
func (c *Client) UserLoader(companyID int64) func(ctx context.Context, query string) ([]*users.User, error) {
	return func(ctx context.Context, query string) ([]*users.User, error) {
		list, err := c.Users(ctx, companyID)
		if err != nil {
			return nil, err
		}
		out := make([]*users.User, 0, len(list))
		for _, u := range list {
			if u.IsActive && matches(query, u.Name, u.Email) {
				out = append(out, u)
			}
		}
		return out, nil
	}
}
