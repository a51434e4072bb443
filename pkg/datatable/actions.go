package datatable

import "github.com/platinummonkey/helpdesk/pkg/permissions"

// Action is a row action of an admin list.
type Action string

const (
	ActionView          Action = "view"
	ActionEdit          Action = "edit"
	ActionDelete        Action = "delete"
	ActionStatusChange  Action = "status_change"
	ActionLocation      Action = "location"
	ActionAssign        Action = "assign"
	ActionLink          Action = "link"
	ActionCreateInvoice Action = "create_invoice"
)

// Actions lists every row action in display order.
var Actions = []Action{
	ActionView, ActionEdit, ActionLocation, ActionAssign, ActionLink,
	ActionCreateInvoice, ActionStatusChange, ActionDelete,
}

// needsActive marks the actions hidden on inactive rows.
var needsActive = map[Action]bool{
	ActionEdit:     true,
	ActionLocation: true,
	ActionAssign:   true,
}

// Flags says which row actions the caller may use.
type Flags map[Action]bool

// Checker answers permission questions, such as session.PermissionStore.
type Checker interface {
	Can(page permissions.Page, action permissions.Action) bool
}

// FlagsFor returns the row action flags for a list on page. create_invoice
// follows create on the Invoices page.
func FlagsFor(c Checker, page permissions.Page) Flags {
	return Flags{
		ActionView:          c.Can(page, permissions.ActionView),
		ActionEdit:          c.Can(page, permissions.ActionEdit),
		ActionDelete:        c.Can(page, permissions.ActionDelete),
		ActionStatusChange:  c.Can(page, permissions.ActionStatusChange),
		ActionLocation:      c.Can(page, permissions.ActionLocation),
		ActionAssign:        c.Can(page, permissions.ActionAssign),
		ActionLink:          c.Can(page, permissions.ActionLink),
		ActionCreateInvoice: c.Can(permissions.PageInvoices, permissions.ActionCreate),
	}
}

// RowActions returns the actions shown for row. Edit, location and assign
// also need the row to be active.
func (t *Table[T]) RowActions(row T, flags Flags) []Action {
	active := t.Active == nil || t.Active(row)
	out := make([]Action, 0, len(Actions))
	for _, a := range Actions {
		if !flags[a] {
			continue
		}
		if needsActive[a] && !active {
			continue
		}
		out = append(out, a)
	}
	return out
}
