package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/client"
	"github.com/platinummonkey/helpdesk/pkg/companies"
	"github.com/platinummonkey/helpdesk/pkg/datatable"
	"github.com/platinummonkey/helpdesk/pkg/orders"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/projects"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
	"github.com/platinummonkey/helpdesk/pkg/users"
)

// listFlags are shared by every list command.
type listFlags struct {
	search  string
	page    int
	perPage int
	export  string
	company int64
}

func (f *listFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Keep rows where any field contains this text")
	cmd.Flags().IntVar(&f.page, "page", 0, "Page to show (default: the last page viewed)")
	cmd.Flags().IntVar(&f.perPage, "per-page", datatable.DefaultPerPage, "Rows per page")
	cmd.Flags().StringVar(&f.export, "export", "", "Write the rows to this .xlsx file instead of printing")
}

// listing describes how one entity is fetched and shown.
type listing[T any] struct {
	page    permissions.Page
	columns []datatable.Column[T]
	active  func(T) bool
	id      func(T) int64
	fetch   func(ctx context.Context) ([]T, error)
}

func runList[T any](ctx context.Context, a *app, l listing[T], f listFlags) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	rows, err := l.fetch(ctx)
	if err != nil {
		return err
	}

	table := datatable.New(l.columns, rows)
	table.Active = l.active
	table.Search(f.search)

	if f.export != "" {
		return exportTable(a, table, f.export)
	}

	markers := datatable.LoadMarkers(ctx, a.session)
	if f.page > 0 {
		markers.Page = f.page
	}
	if pages := table.PageCount(f.perPage); markers.Page > pages && pages > 0 {
		markers.Page = pages
	}
	visible := table.Paginate(markers.Page, f.perPage)
	if len(visible) > 0 {
		markers.Row = l.id(visible[0])
	}
	if err := markers.Save(ctx, a.session); err != nil {
		a.logger.WithError(err).Warn("failed to save list position")
	}

	flags := datatable.FlagsFor(a.session.Permissions, l.page)
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(append(table.Headers(), "Actions"), "\t"))
	for _, row := range visible {
		cells := make([]string, 0, len(l.columns)+1)
		for _, v := range table.Values(row) {
			cells = append(cells, datatable.Stringify(v))
		}
		cells = append(cells, actionList(table.RowActions(row, flags)))
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	a.printf("Page %d of %d (%d rows)\n", markers.Page, max(table.PageCount(f.perPage), 1), len(table.Visible()))
	return nil
}

func actionList(actions []datatable.Action) string {
	if len(actions) == 0 {
		return "-"
	}
	parts := make([]string, len(actions))
	for i, act := range actions {
		parts[i] = string(act)
	}
	return strings.Join(parts, ",")
}

func exportTable[T any](a *app, table *datatable.Table[T], path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := table.ExportXLSX(file); err != nil {
		file.Close()
		os.Remove(path)
		if errors.Is(err, datatable.ErrNoData) {
			return apperr.Validation("%s", err.Error())
		}
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	a.printf("Exported %d rows to %s\n", len(table.ExportRows()), path)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Active"
	}
	return "Inactive"
}

func newCompaniesCommand(a *app) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "companies",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), a, listing[*companies.Company]{
				page: permissions.PageCompanies,
				columns: []datatable.Column[*companies.Company]{
					{Name: "ID", Field: "id"},
					{Name: "Name", Field: "name"},
					{Name: "Contact", Field: "contact_no"},
					{Name: "Email", Field: "mail_address"},
					{Name: "Status", Selector: func(c *companies.Company) any { return yesNo(c.IsActive) }},
				},
				active: func(c *companies.Company) bool { return c.IsActive },
				id:     func(c *companies.Company) int64 { return c.ID },
				fetch:  a.client.Companies,
			}, f)
		},
	}
	f.bind(cmd)
	return cmd
}

func newProjectsCommand(a *app) *cobra.Command {
	var f listFlags
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), a, listing[*projects.Project]{
				page: permissions.PageProjects,
				columns: []datatable.Column[*projects.Project]{
					{Name: "ID", Field: "id"},
					{Name: "Name", Field: "name"},
					{Name: "Company", Field: "company_name"},
					{Name: "PM", Field: "pm_name"},
					{Name: "Status", Field: "status"},
				},
				active: func(p *projects.Project) bool { return p.IsActive },
				id:     func(p *projects.Project) int64 { return p.ID },
				fetch: func(ctx context.Context) ([]*projects.Project, error) {
					return a.client.Projects(ctx, f.company, activeOnly)
				},
			}, f)
		},
	}
	f.bind(cmd)
	cmd.Flags().Int64Var(&f.company, "company", 0, "Only this company")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active projects")
	return cmd
}

func newUsersCommand(a *app) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), a, listing[*users.User]{
				page: permissions.PageUsers,
				columns: []datatable.Column[*users.User]{
					{Name: "ID", Field: "id"},
					{Name: "Name", Field: "name"},
					{Name: "Email", Field: "email"},
					{Name: "Role", Field: "role"},
					{Name: "Company", Field: "company_name"},
					{Name: "Status", Selector: func(u *users.User) any { return yesNo(u.IsActive) }},
				},
				active: func(u *users.User) bool { return u.IsActive },
				id:     func(u *users.User) int64 { return u.ID },
				fetch: func(ctx context.Context) ([]*users.User, error) {
					return a.client.Users(ctx, f.company)
				},
			}, f)
		},
	}
	f.bind(cmd)
	cmd.Flags().Int64Var(&f.company, "company", 0, "Only this company")
	return cmd
}

func newOrdersCommand(a *app) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List purchase orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), a, listing[*orders.PurchaseOrder]{
				page: permissions.PagePurchaseOrders,
				columns: []datatable.Column[*orders.PurchaseOrder]{
					{Name: "ID", Field: "id"},
					{Name: "PO Number", Field: "poNumber"},
					{Name: "Customer", Field: "customer"},
					{Name: "Project", Field: "project"},
					{Name: "Amount", Field: "poAmount"},
					{Name: "Invoiced", Field: "invoicedAmount"},
					{Name: "Date", Selector: func(o *orders.PurchaseOrder) any { return o.PODate.Format("2006-01-02") }},
				},
				active: func(o *orders.PurchaseOrder) bool { return o.IsActive },
				id:     func(o *orders.PurchaseOrder) int64 { return o.ID },
				fetch: func(ctx context.Context) ([]*orders.PurchaseOrder, error) {
					return a.client.PurchaseOrders(ctx, f.company)
				},
			}, f)
		},
	}
	f.bind(cmd)
	cmd.Flags().Int64Var(&f.company, "company", 0, "Only this company")
	return cmd
}

func newTicketsCommand(a *app) *cobra.Command {
	var f listFlags
	var q client.TicketQuery
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.CompanyID = f.company
			return runList(cmd.Context(), a, listing[*tickets.Ticket]{
				page: permissions.PageTickets,
				columns: []datatable.Column[*tickets.Ticket]{
					{Name: "Ticket", Field: "ticket_uid"},
					{Name: "Title", Field: "title"},
					{Name: "Project", Field: "project_name"},
					{Name: "Status", Field: "status"},
					{Name: "Assigned To", Field: "assigned_to_name"},
					{Name: "Complaint At", Selector: func(t *tickets.Ticket) any { return t.ComplaintAt.Format("2006-01-02 15:04") }},
				},
				id: func(t *tickets.Ticket) int64 { return t.ID },
				fetch: func(ctx context.Context) ([]*tickets.Ticket, error) {
					return a.client.Tickets(ctx, q)
				},
			}, f)
		},
	}
	f.bind(cmd)
	cmd.Flags().Int64Var(&f.company, "company", 0, "Only this company")
	cmd.Flags().StringVar(&q.Status, "status", "", "Only this status (Open, In Progress, Resolved, Reopened)")
	cmd.Flags().Int64Var(&q.ProjectID, "project", 0, "Only this project")
	cmd.AddCommand(newTicketShowCommand(a))
	return cmd
}
