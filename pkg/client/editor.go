package client

import (
	"context"

	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// EditorRemote adapts the client to the permission matrix editor.
func (c *Client) EditorRemote() permissions.Remote {
	return editorRemote{c}
}

type editorRemote struct {
	c *Client
}

func (r editorRemote) ListCompanies(ctx context.Context) ([]permissions.Option, error) {
	list, err := r.c.Companies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]permissions.Option, 0, len(list))
	for _, co := range list {
		out = append(out, permissions.Option{ID: co.ID, Name: co.Name})
	}
	return out, nil
}

func (r editorRemote) ListRoles(ctx context.Context) ([]permissions.Role, error) {
	list, err := r.c.Roles(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]permissions.Role, 0, len(list))
	for _, role := range list {
		out = append(out, *role)
	}
	return out, nil
}

func (r editorRemote) GetPermissions(ctx context.Context, companyID, roleID int64) (permissions.Matrix, error) {
	return r.c.RolePermissions(ctx, companyID, roleID)
}

func (r editorRemote) SavePermissions(ctx context.Context, req permissions.SaveRequest) error {
	_, err := r.c.SavePermissions(ctx, req)
	return err
}
