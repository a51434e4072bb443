package permissions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

type fakeRemote struct {
	mu        sync.Mutex
	companies []Option
	roles     []Role
	stored    map[int64]Matrix
	rolesErr  error
	saveErr   error
	saved     []SaveRequest
}

func (f *fakeRemote) ListCompanies(context.Context) ([]Option, error) {
	return f.companies, nil
}

func (f *fakeRemote) ListRoles(context.Context) ([]Role, error) {
	return f.roles, f.rolesErr
}

func (f *fakeRemote) GetPermissions(_ context.Context, _, roleID int64) (Matrix, error) {
	return f.stored[roleID].Clone(), nil
}

func (f *fakeRemote) SavePermissions(_ context.Context, req SaveRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, req)
	return nil
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		companies: []Option{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Globex"}},
		roles: []Role{
			{ID: 10, Name: "Admin", CompanyID: 1},
			{ID: 11, Name: "Agent", CompanyID: 1},
			{ID: 20, Name: "Viewer", CompanyID: 2},
		},
		stored: map[int64]Matrix{
			11: {PageTickets: {ActionView: 1}, PageUsers: {ActionView: 1}},
		},
	}
}

func loadedEditor(t *testing.T, remote *fakeRemote) *Editor {
	e := NewEditor(remote, nil)
	require.NoError(t, e.Load(context.Background()))
	return e
}

func TestEditor_LoadFailureKeepsNothing(t *testing.T) {
	remote := newFakeRemote()
	remote.rolesErr = errors.New("boom")

	e := NewEditor(remote, nil)
	err := e.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load initial data")
	assert.Empty(t, e.Companies())
}

func TestEditor_RoleOptionsFilteredByCompany(t *testing.T) {
	e := loadedEditor(t, newFakeRemote())
	assert.Empty(t, e.RoleOptions())

	e.SelectCompany(1)
	opts := e.RoleOptions()
	require.Len(t, opts, 2)
	for _, r := range opts {
		assert.Equal(t, int64(1), r.CompanyID)
	}
}

func TestEditor_SelectRole(t *testing.T) {
	ctx := context.Background()

	t.Run("stored matrix normalized", func(t *testing.T) {
		e := loadedEditor(t, newFakeRemote())
		require.NoError(t, e.Select(ctx, 1, 11))

		m := e.Matrix()
		assert.True(t, m.Can(PageTickets, ActionView))
		_, hasUsersView := m[PageUsers][ActionView]
		assert.False(t, hasUsersView)
	})

	t.Run("missing matrix is all zero", func(t *testing.T) {
		e := loadedEditor(t, newFakeRemote())
		require.NoError(t, e.Select(ctx, 1, 10))
		assert.Empty(t, e.Matrix().Granted())
		assert.Contains(t, e.Matrix(), PageTickets)
	})

	t.Run("role from another company", func(t *testing.T) {
		e := loadedEditor(t, newFakeRemote())
		err := e.Select(ctx, 1, 20)
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})

	t.Run("company change resets role", func(t *testing.T) {
		e := loadedEditor(t, newFakeRemote())
		require.NoError(t, e.Select(ctx, 1, 11))
		e.SelectCompany(2)

		companyID, roleID := e.Selection()
		assert.Equal(t, int64(2), companyID)
		assert.Zero(t, roleID)
		assert.Nil(t, e.Matrix())

		e.SelectCompany(2)
		_, roleID = e.Selection()
		assert.Zero(t, roleID)
	})
}

func TestEditor_ToggleIgnoresInapplicable(t *testing.T) {
	e := loadedEditor(t, newFakeRemote())
	require.NoError(t, e.Select(context.Background(), 1, 10))

	assert.False(t, e.Enabled(PageUsers, ActionView))
	e.Toggle(PageUsers, ActionView)
	assert.False(t, e.Matrix().Can(PageUsers, ActionView))

	e.Toggle(PageUsers, ActionEdit)
	assert.True(t, e.Matrix().Can(PageUsers, ActionEdit))
	e.Toggle(PageUsers, ActionEdit)
	assert.False(t, e.Matrix().Can(PageUsers, ActionEdit))
}

func TestEditor_ToggleRow(t *testing.T) {
	e := loadedEditor(t, newFakeRemote())
	require.NoError(t, e.Select(context.Background(), 1, 10))

	original := e.Matrix()
	e.ToggleRow(PageCompanies)
	assert.Equal(t, CellState{Checked: true}, e.RowState(PageCompanies))
	for _, a := range DefaultCatalog().ActionsFor(PageCompanies) {
		assert.True(t, e.Matrix().Can(PageCompanies, a))
	}
	assert.False(t, e.Matrix().Can(PageCompanies, ActionDelete))

	e.ToggleRow(PageCompanies)
	assert.Equal(t, original[PageCompanies], e.Matrix()[PageCompanies])

	// a partially selected row goes all-on
	e.Toggle(PageCompanies, ActionLink)
	assert.Equal(t, CellState{Indeterminate: true}, e.RowState(PageCompanies))
	e.ToggleRow(PageCompanies)
	assert.Equal(t, CellState{Checked: true}, e.RowState(PageCompanies))
}

func TestEditor_ToggleColumn(t *testing.T) {
	e := loadedEditor(t, newFakeRemote())
	require.NoError(t, e.Select(context.Background(), 1, 11))

	// Tickets.view is on, TicketDetails.view is off
	assert.Equal(t, CellState{Indeterminate: true}, e.ColumnState(ActionView))

	e.ToggleColumn(ActionView)
	assert.Equal(t, CellState{Checked: true}, e.ColumnState(ActionView))
	assert.False(t, e.Matrix().Can(PageUsers, ActionView))

	e.ToggleColumn(ActionView)
	assert.Equal(t, CellState{}, e.ColumnState(ActionView))
}

func TestEditor_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("requires selection", func(t *testing.T) {
		e := loadedEditor(t, newFakeRemote())
		_, err := e.Save(ctx)
		require.Error(t, err)
		assert.Equal(t, "Please select a company and a role before saving.", apperr.MessageOf(err))
	})

	t.Run("payload and message", func(t *testing.T) {
		remote := newFakeRemote()
		e := loadedEditor(t, remote)
		require.NoError(t, e.Select(ctx, 1, 11))
		e.Toggle(PageTicketDetails, ActionReopen)

		msg, err := e.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Permissions for Agent at Acme updated successfully!", msg)

		require.Len(t, remote.saved, 1)
		payload := remote.saved[0]
		assert.Equal(t, int64(1), payload.CompanyID)
		assert.Equal(t, int64(11), payload.RoleID)
		assert.Equal(t, 1, payload.Permissions[PageTicketDetails][ActionReopen])
		assert.Equal(t, 0, payload.Permissions[PageTicketDetails][ActionRootCause])

		c := DefaultCatalog()
		for page, row := range payload.Permissions {
			assert.Len(t, row, len(c.ActionsFor(page)))
			for action := range row {
				assert.True(t, c.Applicable(page, action))
			}
		}
	})

	t.Run("failure keeps edits", func(t *testing.T) {
		remote := newFakeRemote()
		remote.saveErr = errors.New("offline")
		e := loadedEditor(t, remote)
		require.NoError(t, e.Select(ctx, 1, 11))
		e.Toggle(PageDashboard, ActionEdit)

		_, err := e.Save(ctx)
		require.Error(t, err)
		assert.True(t, e.Matrix().Can(PageDashboard, ActionEdit))
	})
}
