package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/reports"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
)

func newTicketShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one ticket with its timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return apperr.Validation("ticket id must be a positive number")
			}
			d, err := a.client.Ticket(ctx, id)
			if err != nil {
				return err
			}

			t := d.Ticket
			a.printf("%s  %s\n", t.TicketUID, t.Title)
			a.printf("Status:      %s\n", t.Status)
			a.printf("Project:     %s / %s\n", t.ProjectName, t.LocationName)
			a.printf("Complaint:   %s by %s via %s\n", reports.FormatDateTime(&t.ComplaintAt), t.ComplaintBy, t.Channel)
			if t.AssignedToName != "" {
				a.printf("Assigned to: %s\n", t.AssignedToName)
			}
			if t.Status == tickets.StatusResolved {
				a.printf("Resolved:    %s by %s (%s)\n", reports.FormatDateTime(t.ResolvedAt), t.ResolvedByName, reports.ResolutionTime(t))
			}
			if t.Description != "" {
				a.printf("\n%s\n", t.Description)
			}

			if len(d.Activity) > 0 {
				a.printf("\nActivity:\n")
			}
			for _, act := range d.Activity {
				when := reports.FormatDateTime(&act.Timestamp)
				switch act.Kind {
				case tickets.ActivityComment:
					a.printf("  %s  %s: %s\n", when, act.Comment.AuthorName, act.Comment.Text)
				case tickets.ActivityStatus:
					a.printf("  %s  %s -> %s by %s: %s\n", when, act.Status.OldStatus, act.Status.NewStatus,
						act.Status.ChangedByName, act.Status.Remarks)
				}
			}
			return nil
		},
	}
}
