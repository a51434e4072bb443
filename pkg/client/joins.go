package client

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/companies"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/projects"
)

// AssignFailedMessage is reported when any assignment in a batch fails.
const AssignFailedMessage = "One or more assignments failed."

// maxParallel caps concurrent requests in a batch.
const maxParallel = 4

// FormData is the option set behind the user and project forms.
type FormData struct {
	Companies []*companies.Company
	Roles     []*permissions.Role
	Projects  []*projects.Project
}

// LoadFormData fetches companies, roles and active projects concurrently.
// Any failure returns that error and no data.
func (c *Client) LoadFormData(ctx context.Context, companyID int64) (*FormData, error) {
	var (
		cs []*companies.Company
		rs []*permissions.Role
		ps []*projects.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cs, err = c.Companies(gctx)
		return err
	})
	g.Go(func() (err error) {
		rs, err = c.Roles(gctx, companyID)
		return err
	})
	g.Go(func() (err error) {
		ps, err = c.Projects(gctx, companyID, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &FormData{Companies: cs, Roles: rs, Projects: ps}, nil
}

// AssignUsers assigns every user to the project concurrently. Requests
// already sent are not rolled back when one fails.
func (c *Client) AssignUsers(ctx context.Context, projectID int64, userIDs []int64) error {
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for _, id := range userIDs {
		id := id
		g.Go(func() error {
			return c.Assign(ctx, projectID, id)
		})
	}
	if err := g.Wait(); err != nil {
		return &apperr.Error{Kind: apperr.KindOf(err), Message: AssignFailedMessage, Err: err}
	}
	return nil
}
