package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/combobox"
	"github.com/platinummonkey/helpdesk/pkg/companies"
	"github.com/platinummonkey/helpdesk/pkg/users"
)

func newPickCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Search for a company or user and print its id",
	}
	cmd.AddCommand(newPickCompanyCommand(a), newPickUserCommand(a))
	return cmd
}

func newPickCompanyCommand(a *app) *cobra.Command {
	var choice int
	cmd := &cobra.Command{
		Use:   "company <query>",
		Short: "Find active companies by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, loadErr := remoteBox(a.client.CompanyLoader(), combobox.Config[*companies.Company, int64]{
				Value: func(c *companies.Company) int64 { return c.ID },
				Label: func(c *companies.Company) string { return c.Name },
				Group: func(c *companies.Company) string {
					if c.IsInternal {
						return "Internal"
					}
					return ""
				},
			})
			return runPick(cmd.Context(), a, box, loadErr, strings.Join(args, " "), choice)
		},
	}
	cmd.Flags().IntVar(&choice, "select", 0, "Pick the Nth match and print only its id")
	return cmd
}

func newPickUserCommand(a *app) *cobra.Command {
	var choice int
	var companyID int64
	cmd := &cobra.Command{
		Use:   "user <query>",
		Short: "Find active users by name or email",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, loadErr := remoteBox(a.client.UserLoader(companyID), combobox.Config[*users.User, int64]{
				Value: func(u *users.User) int64 { return u.ID },
				Label: func(u *users.User) string { return fmt.Sprintf("%s <%s>", u.Name, u.Email) },
				Group: func(u *users.User) string { return u.CompanyName },
			})
			return runPick(cmd.Context(), a, box, loadErr, strings.Join(args, " "), choice)
		},
	}
	cmd.Flags().IntVar(&choice, "select", 0, "Pick the Nth match and print only its id")
	cmd.Flags().Int64Var(&companyID, "company", 0, "Only users of this company")
	return cmd
}

// remoteBox builds a combobox over loader and keeps the last load error,
// which the combobox itself only turns into an empty list.
func remoteBox[T any](loader func(context.Context, string) ([]T, error), cfg combobox.Config[T, int64]) (*combobox.Combobox[T, int64], *error) {
	var lastErr error
	cfg.Loader = func(ctx context.Context, q string) ([]T, error) {
		opts, err := loader(ctx, q)
		lastErr = err
		return opts, err
	}
	return combobox.New(cfg), &lastErr
}

func runPick[T any](ctx context.Context, a *app, box *combobox.Combobox[T, int64], loadErr *error, query string, choice int) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	box.Search(ctx, query)
	if *loadErr != nil {
		return *loadErr
	}

	items := box.Items()
	if len(items) == 0 {
		return &apperr.Error{Kind: apperr.KindNotFound, Message: fmt.Sprintf("No match for %q", query)}
	}

	if choice > 0 {
		if choice > len(items) {
			return apperr.Validation("--select must be between 1 and %d", len(items))
		}
		for i := 1; i < choice; i++ {
			_ = box.HandleKey(ctx, combobox.KeyArrowDown)
		}
		if err := box.HandleKey(ctx, combobox.KeyEnter); err != nil {
			return err
		}
		id, ok := box.Selected()
		if !ok {
			return apperr.Validation("nothing selected")
		}
		a.printf("%d\n", id)
		return nil
	}

	n := 0
	for _, g := range box.Groups() {
		if g.Name != "" {
			a.printf("%s:\n", g.Name)
		}
		for range g.Options {
			item := items[n]
			n++
			a.printf("  %2d. %s\n", n, item.Label)
		}
	}
	return nil
}
