package cli

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// passwordEnv is read when --password is omitted.
const passwordEnv = "HELPDESK_PASSWORD"

func passwordFrom(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(passwordEnv)
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Login(cmd.Context(), email, passwordFrom(password))
			if err != nil {
				return err
			}
			a.printf("Logged in as %s (%s, %s)\n", res.User.Name, res.User.Role, res.User.CompanyName)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or "+passwordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			a.printf("Logged out successfully!\n")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and granted permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx); err != nil {
				return err
			}
			u := a.session.User(ctx)
			if u == nil {
				return apperr.Unauthorized("Not logged in. Run helpdeskctl login first.")
			}
			a.printf("%s <%s>\n", u.Name, u.Email)
			a.printf("Role:    %s\n", u.Role)
			a.printf("Company: %s\n", u.CompanyName)

			granted := a.session.Permissions.Matrix().Granted()
			pages := make([]string, 0, len(granted))
			for p := range granted {
				pages = append(pages, string(p))
			}
			sort.Strings(pages)
			for _, p := range pages {
				a.printf("  %-16s %s\n", p, joinActions(granted[permissions.Page(p)]))
			}
			return nil
		},
	}
}

func joinActions(actions []permissions.Action) string {
	parts := make([]string, len(actions))
	for i, act := range actions {
		parts[i] = string(act)
	}
	return strings.Join(parts, ", ")
}

func newForgotPasswordCommand(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.client.ForgotPassword(cmd.Context(), email)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResetPasswordCommand(a *app) *cobra.Command {
	var token, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.client.ResetPassword(cmd.Context(), token, passwordFrom(password))
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Reset token")
	cmd.Flags().StringVar(&password, "password", "", "New password (or "+passwordEnv+")")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
