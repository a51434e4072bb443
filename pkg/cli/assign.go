package cli

import (
	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

func newAssignCommand(a *app) *cobra.Command {
	var projectID, companyID int64
	var userIDs []int64
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign users to an active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx); err != nil {
				return err
			}
			if len(userIDs) == 0 {
				return apperr.Validation("--users needs at least one user id")
			}

			form, err := a.client.LoadFormData(ctx, companyID)
			if err != nil {
				return err
			}
			name := ""
			for _, p := range form.Projects {
				if p.ID == projectID {
					name = p.Name
					break
				}
			}
			if name == "" {
				return apperr.Validation("Project %d is not an active project you can see", projectID)
			}

			if err := a.client.AssignUsers(ctx, projectID, userIDs); err != nil {
				return err
			}
			a.printf("Assigned %d user(s) to %s\n", len(userIDs), name)
			return nil
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "Project id")
	cmd.Flags().Int64Var(&companyID, "company", 0, "Company the project belongs to")
	cmd.Flags().Int64SliceVar(&userIDs, "users", nil, "User ids, comma separated")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
