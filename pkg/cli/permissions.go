package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

func newPermissionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "View or edit a role's permission matrix",
	}
	cmd.AddCommand(newPermissionsShowCommand(a), newPermissionsSetCommand(a))
	return cmd
}

type selection struct {
	company int64
	role    int64
}

func (s *selection) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&s.company, "company", 0, "Company id")
	cmd.Flags().Int64Var(&s.role, "role", 0, "Role id")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("role")
}

func (a *app) openEditor(ctx context.Context, sel selection) (*permissions.Editor, error) {
	if err := a.requireLogin(ctx); err != nil {
		return nil, err
	}
	ed := permissions.NewEditor(a.client.EditorRemote(), nil)
	if err := ed.Load(ctx); err != nil {
		return nil, err
	}
	if err := ed.Select(ctx, sel.company, sel.role); err != nil {
		return nil, err
	}
	return ed, nil
}

func newPermissionsShowCommand(a *app) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the matrix of one role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ed, err := a.openEditor(cmd.Context(), sel)
			if err != nil {
				return err
			}
			return printMatrix(a, ed, permissions.DefaultCatalog())
		},
	}
	sel.bind(cmd)
	return cmd
}

// printMatrix renders pages as rows and actions as columns: x granted,
// . denied, blank not applicable. The header row marks each column's
// aggregate state the same way, with ~ for a partial column.
func printMatrix(a *app, ed *permissions.Editor, catalog *permissions.Catalog) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 1, ' ', 0)
	header := []string{"Page", "All"}
	states := []string{"", ""}
	for _, act := range catalog.Actions {
		header = append(header, act.Label)
		states = append(states, stateMark(ed.ColumnState(act.Key)))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	fmt.Fprintln(w, strings.Join(states, "\t"))

	m := ed.Matrix()
	for _, p := range catalog.Pages {
		cells := []string{p.Label, stateMark(ed.RowState(p.Key))}
		for _, act := range catalog.Actions {
			switch {
			case !ed.Enabled(p.Key, act.Key):
				cells = append(cells, "")
			case m.Can(p.Key, act.Key):
				cells = append(cells, "x")
			default:
				cells = append(cells, ".")
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func stateMark(s permissions.CellState) string {
	switch {
	case s.Checked:
		return "x"
	case s.Indeterminate:
		return "~"
	default:
		return "."
	}
}

// parseCell reads Page.action.
func parseCell(catalog *permissions.Catalog, s string) (permissions.Page, permissions.Action, error) {
	page, action, ok := strings.Cut(s, ".")
	if !ok {
		return "", "", apperr.Validation("%q must look like Page.action", s)
	}
	p, act := permissions.Page(page), permissions.Action(action)
	if !catalog.Applicable(p, act) {
		return "", "", apperr.Validation("%s does not apply to %s", action, page)
	}
	return p, act, nil
}

func newPermissionsSetCommand(a *app) *cobra.Command {
	var sel selection
	var grant, revoke, rows, columns []string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change cells of a role's matrix and save it",
		Long: `Change cells of a role's matrix and save it.

--grant and --revoke take Page.action cells. --row and --column toggle a
whole page or action the way the header checkboxes do: all on becomes all
off, anything else becomes all on. Toggles run before grants and revokes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			catalog := permissions.DefaultCatalog()
			ed, err := a.openEditor(ctx, sel)
			if err != nil {
				return err
			}

			for _, r := range rows {
				if !catalog.HasPage(permissions.Page(r)) {
					return apperr.Validation("unknown page %q", r)
				}
				ed.ToggleRow(permissions.Page(r))
			}
			for _, c := range columns {
				if !catalog.HasAction(permissions.Action(c)) {
					return apperr.Validation("unknown action %q", c)
				}
				ed.ToggleColumn(permissions.Action(c))
			}
			for _, list := range []struct {
				cells []string
				want  bool
			}{{grant, true}, {revoke, false}} {
				for _, cell := range list.cells {
					p, act, err := parseCell(catalog, cell)
					if err != nil {
						return err
					}
					if ed.Matrix().Can(p, act) != list.want {
						ed.Toggle(p, act)
					}
				}
			}

			msg, err := ed.Save(ctx)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	sel.bind(cmd)
	cmd.Flags().StringSliceVar(&grant, "grant", nil, "Cells to grant, as Page.action")
	cmd.Flags().StringSliceVar(&revoke, "revoke", nil, "Cells to revoke, as Page.action")
	cmd.Flags().StringSliceVar(&rows, "row", nil, "Pages to toggle as a whole")
	cmd.Flags().StringSliceVar(&columns, "column", nil, "Actions to toggle as a whole")
	return cmd
}
