package users

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/helpdesk/pkg/companies"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/projects"
)

// CompanyLister lists the companies visible to a company's members.
type CompanyLister interface {
	ListCompanies(ctx context.Context, viewerCompanyID int64) ([]*companies.Company, error)
}

// RoleLister lists every role.
type RoleLister interface {
	ListRoles(ctx context.Context) ([]permissions.Role, error)
}

// ProjectLister lists projects.
type ProjectLister interface {
	ListProjects(ctx context.Context, filter projects.Filter) ([]*projects.Project, error)
}

// DropdownValues are the option lists for the user form.
type DropdownValues struct {
	Companies []*companies.Company `json:"companies"`
	Roles     []permissions.Role   `json:"roles"`
	Projects  []*projects.Project  `json:"projects"`
}

// DropdownLoader assembles DropdownValues.
type DropdownLoader struct {
	companies CompanyLister
	roles     RoleLister
	projects  ProjectLister
}

// NewDropdownLoader creates a loader over the three listers.
func NewDropdownLoader(c CompanyLister, r RoleLister, p ProjectLister) *DropdownLoader {
	return &DropdownLoader{companies: c, roles: r, projects: p}
}

// Load fetches the lists concurrently. Roles are limited to the visible
// companies and projects to active ones. Any failure fails the whole load.
func (l *DropdownLoader) Load(ctx context.Context, viewerCompanyID int64) (*DropdownValues, error) {
	var (
		out   DropdownValues
		roles []permissions.Role
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Companies, err = l.companies.ListCompanies(gctx, viewerCompanyID)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = l.roles.ListRoles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Projects, err = l.projects.ListProjects(gctx, projects.Filter{ViewerCompanyID: viewerCompanyID, ActiveOnly: true})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	visible := make(map[int64]bool, len(out.Companies))
	for _, c := range out.Companies {
		visible[c.ID] = true
	}
	out.Roles = make([]permissions.Role, 0, len(roles))
	for _, r := range roles {
		if visible[r.CompanyID] {
			out.Roles = append(out.Roles, r)
		}
	}
	return &out, nil
}
