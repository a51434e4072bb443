package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/reports"
)

const dateLayout = "2006-01-02"

func parseDate(flag, s string) (httputil.Timestamp, error) {
	if s == "" {
		return httputil.Timestamp{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return httputil.Timestamp{}, apperr.Validation("--%s must be YYYY-MM-DD", flag)
	}
	return httputil.Timestamp{Time: t}, nil
}

func newReportCommand(a *app) *cobra.Command {
	var (
		from, to, format, out string
		companyID, projectID  int64
		f                     reports.Filter
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print or download the detailed ticket report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx); err != nil {
				return err
			}
			var err error
			if f.StartDate, err = parseDate("from", from); err != nil {
				return err
			}
			if f.EndDate, err = parseDate("to", to); err != nil {
				return err
			}
			f.CompanyID = httputil.OptionalID(companyID)
			f.ProjectID = httputil.OptionalID(projectID)

			if format == "" {
				return printReport(ctx, a, f)
			}
			file, err := a.client.ExportTicketReport(ctx, f, reports.Format(format))
			if err != nil {
				return err
			}
			name := file.Name
			if name == "" {
				name = reports.Filename(reports.Format(format), time.Now())
			}
			path := filepath.Join(out, filepath.Base(name))
			if err := os.WriteFile(path, file.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			a.printf("Saved %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Complaints on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Complaints on or before this date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&companyID, "company", 0, "Only this company")
	cmd.Flags().Int64Var(&projectID, "project", 0, "Only this project")
	cmd.Flags().StringVar(&f.Channel, "channel", "", "Only this channel (Call, Mail, WhatsApp)")
	cmd.Flags().StringVar(&f.ComplaintBy, "complaint-by", "", "Only complaints by this person")
	cmd.Flags().StringVar(&format, "format", "", "Download as xlsx or pdf instead of printing")
	cmd.Flags().StringVar(&out, "out", ".", "Directory for the downloaded file")
	return cmd
}

func printReport(ctx context.Context, a *app, f reports.Filter) error {
	rows, err := a.client.TicketReport(ctx, f)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Ticket\tTitle\tProject\tStatus\tComplaint At\tResolved At\tResolution Time")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TicketUID, r.Title, r.ProjectName, r.Status,
			reports.FormatDateTime(&r.ComplaintAt), reports.FormatDateTime(r.ResolvedAt), r.ResolutionTime)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	a.printf("%d tickets\n", len(rows))
	return nil
}

func newDashboardCommand(a *app) *cobra.Command {
	var companyID, projectID int64
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show ticket and entity counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx); err != nil {
				return err
			}
			s, err := a.client.Dashboard(ctx, companyID, projectID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Open\t%d\n", s.TicketStats.Open)
			fmt.Fprintf(w, "In Progress\t%d\n", s.TicketStats.InProgress)
			fmt.Fprintf(w, "Resolved\t%d\n", s.TicketStats.Resolved)
			fmt.Fprintf(w, "Reopened\t%d\n", s.TicketStats.Reopened)
			fmt.Fprintf(w, "Companies\t%d\n", s.GeneralStats.TotalCompanies)
			fmt.Fprintf(w, "Projects\t%d\n", s.GeneralStats.TotalProjects)
			fmt.Fprintf(w, "Users\t%d\n", s.GeneralStats.TotalUsers)
			h := s.HistoricalStats
			fmt.Fprintf(w, "Today\t%d created, %d resolved\n", h.CreatedToday, h.ResolvedToday)
			fmt.Fprintf(w, "This week\t%d created, %d resolved\n", h.CreatedThisWeek, h.ResolvedThisWeek)
			fmt.Fprintf(w, "This month\t%d created, %d resolved\n", h.CreatedThisMonth, h.ResolvedThisMonth)
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 0, "Only this company")
	cmd.Flags().Int64Var(&projectID, "project", 0, "Only this project")
	return cmd
}
