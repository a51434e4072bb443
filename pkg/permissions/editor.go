package permissions

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

// Remote is the server surface the editor talks to.
type Remote interface {
	ListCompanies(ctx context.Context) ([]Option, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetPermissions(ctx context.Context, companyID, roleID int64) (Matrix, error)
	SavePermissions(ctx context.Context, req SaveRequest) error
}

// CellState is the aggregate state of a row or column of checkboxes.
type CellState struct {
	Checked       bool
	Indeterminate bool
}

// Editor is the admin's working copy of one role's matrix. Edits stay local
// until Save succeeds.
type Editor struct {
	remote  Remote
	catalog *Catalog

	mu        sync.Mutex
	companies []Option
	roles     []Role
	companyID int64
	roleID    int64
	matrix    Matrix
}

// NewEditor creates an editor against remote. A nil catalog uses the
// built-in one.
func NewEditor(remote Remote, catalog *Catalog) *Editor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Editor{remote: remote, catalog: catalog}
}

// Load fetches companies and roles concurrently. Nothing is replaced unless
// both succeed.
func (e *Editor) Load(ctx context.Context) error {
	var companies []Option
	var roles []Role

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		companies, err = e.remote.ListCompanies(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = e.remote.ListRoles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load initial data: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.companies = companies
	e.roles = roles
	return nil
}

// Companies returns the loaded company options.
func (e *Editor) Companies() []Option {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Option(nil), e.companies...)
}

// RoleOptions returns the roles owned by the selected company.
func (e *Editor) RoleOptions() []Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.companyID == 0 {
		return nil
	}
	return FilterRoles(e.roles, e.companyID)
}

// SelectCompany changes the company and clears the role selection and
// working matrix.
func (e *Editor) SelectCompany(companyID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if companyID != e.companyID {
		e.companyID = companyID
		e.roleID = 0
		e.matrix = nil
	}
}

// SelectRole fetches the stored matrix for roleID under the selected
// company. A role with no stored matrix starts all zero.
func (e *Editor) SelectRole(ctx context.Context, roleID int64) error {
	e.mu.Lock()
	companyID := e.companyID
	role, ok := e.findRole(roleID)
	e.mu.Unlock()

	if companyID == 0 {
		return apperr.Validation("Please select a company first")
	}
	if !ok || role.CompanyID != companyID {
		return apperr.Validation("Role does not belong to the selected company")
	}

	stored, err := e.remote.GetPermissions(ctx, companyID, roleID)
	if err != nil {
		return fmt.Errorf("failed to load permissions for %s: %w", role.Name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.companyID != companyID {
		return nil
	}
	e.roleID = roleID
	e.matrix = stored.Normalize(e.catalog)
	return nil
}

// Select picks a company and role in one step.
func (e *Editor) Select(ctx context.Context, companyID, roleID int64) error {
	e.SelectCompany(companyID)
	return e.SelectRole(ctx, roleID)
}

// Selection returns the selected company and role ids.
func (e *Editor) Selection() (companyID, roleID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.companyID, e.roleID
}

// Matrix returns a copy of the working matrix.
func (e *Editor) Matrix() Matrix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matrix.Clone()
}

// Enabled reports whether the cell can be edited at all.
func (e *Editor) Enabled(page Page, action Action) bool {
	return e.catalog.Applicable(page, action)
}

// Toggle flips one cell. Inapplicable cells are left untouched.
func (e *Editor) Toggle(page Page, action Action) {
	if !e.catalog.Applicable(page, action) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(page, action, !e.matrix.Can(page, action))
}

// ToggleRow turns every applicable action on page off when all are on, and
// on otherwise.
func (e *Editor) ToggleRow(page Page) {
	actions := e.catalog.ActionsFor(page)
	e.mu.Lock()
	defer e.mu.Unlock()

	all := len(actions) > 0
	for _, a := range actions {
		if !e.matrix.Can(page, a) {
			all = false
			break
		}
	}
	for _, a := range actions {
		e.set(page, a, !all)
	}
}

// ToggleColumn applies the ToggleRow rule to action across its pages.
func (e *Editor) ToggleColumn(action Action) {
	pages := e.catalog.PagesFor(action)
	e.mu.Lock()
	defer e.mu.Unlock()

	all := len(pages) > 0
	for _, p := range pages {
		if !e.matrix.Can(p, action) {
			all = false
			break
		}
	}
	for _, p := range pages {
		e.set(p, action, !all)
	}
}

// RowState summarizes the applicable cells of page.
func (e *Editor) RowState(page Page) CellState {
	actions := e.catalog.ActionsFor(page)
	e.mu.Lock()
	defer e.mu.Unlock()

	on := 0
	for _, a := range actions {
		if e.matrix.Can(page, a) {
			on++
		}
	}
	return cellState(on, len(actions))
}

// ColumnState summarizes the applicable cells of action.
func (e *Editor) ColumnState(action Action) CellState {
	pages := e.catalog.PagesFor(action)
	e.mu.Lock()
	defer e.mu.Unlock()

	on := 0
	for _, p := range pages {
		if e.matrix.Can(p, action) {
			on++
		}
	}
	return cellState(on, len(pages))
}

func cellState(on, total int) CellState {
	return CellState{
		Checked:       total > 0 && on == total,
		Indeterminate: on > 0 && on < total,
	}
}

// set must be called with mu held.
func (e *Editor) set(page Page, action Action, on bool) {
	if e.matrix == nil {
		e.matrix = e.catalog.ZeroMatrix()
	}
	row, ok := e.matrix[page]
	if !ok {
		row = make(map[Action]int)
		e.matrix[page] = row
	}
	if on {
		row[action] = 1
	} else {
		row[action] = 0
	}
}

// Payload builds the save request: every applicable cell explicit and
// inapplicable cells omitted.
func (e *Editor) Payload() (SaveRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.companyID == 0 || e.roleID == 0 || e.matrix == nil {
		return SaveRequest{}, apperr.Validation("Please select a company and a role before saving.")
	}
	return SaveRequest{
		CompanyID:   e.companyID,
		RoleID:      e.roleID,
		Permissions: e.matrix.Normalize(e.catalog),
	}, nil
}

// Save sends the working matrix. On failure the working copy is kept so the
// admin can retry.
func (e *Editor) Save(ctx context.Context) (string, error) {
	req, err := e.Payload()
	if err != nil {
		return "", err
	}
	if err := e.remote.SavePermissions(ctx, req); err != nil {
		return "", fmt.Errorf("failed to save permissions: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	roleName, companyName := "", ""
	if role, ok := e.findRole(req.RoleID); ok {
		roleName = role.Name
	}
	for _, c := range e.companies {
		if c.ID == req.CompanyID {
			companyName = c.Name
			break
		}
	}
	return fmt.Sprintf("Permissions for %s at %s updated successfully!", roleName, companyName), nil
}

// findRole must be called with mu held.
func (e *Editor) findRole(roleID int64) (Role, bool) {
	for _, r := range e.roles {
		if r.ID == roleID {
			return r, true
		}
	}
	return Role{}, false
}
