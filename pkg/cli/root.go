package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/client"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/session"
)

// DefaultServer is used when neither --server nor HELPDESK_SERVER is set.
const DefaultServer = "http://localhost:8080"

// Options override what the root command would otherwise build from flags.
// Tests use them to point the CLI at an httptest server.
type Options struct {
	Out        io.Writer
	Backend    session.Backend
	HTTPClient *http.Client
}

type app struct {
	opts        Options
	server      string
	sessionFile string
	verbose     bool

	out     io.Writer
	logger  *observability.Logger
	session *session.Session
	client  *client.Client
}

// NewRootCommand creates the helpdeskctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:           "helpdeskctl",
		Short:         "Helpdesk administration CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	server := os.Getenv("HELPDESK_SERVER")
	if server == "" {
		server = DefaultServer
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "Helpdesk API base URL")
	root.PersistentFlags().StringVar(&a.sessionFile, "session-file", "", "Session file (default: user config dir)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log requests to stderr")

	root.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newForgotPasswordCommand(a),
		newResetPasswordCommand(a),
		newCompaniesCommand(a),
		newProjectsCommand(a),
		newUsersCommand(a),
		newTicketsCommand(a),
		newOrdersCommand(a),
		newPickCommand(a),
		newPermissionsCommand(a),
		newAssignCommand(a),
		newReportCommand(a),
		newDashboardCommand(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	a.out = a.opts.Out
	if a.out == nil {
		a.out = os.Stdout
	}

	level := observability.WarnLevel
	if a.verbose {
		level = observability.DebugLevel
	}
	a.logger = observability.NewLogger(level, os.Stderr)

	backend := a.opts.Backend
	if backend == nil {
		path := a.sessionFile
		if path == "" {
			var err error
			if path, err = session.DefaultPath(); err != nil {
				return err
			}
		}
		backend = session.NewFileBackend(path)
	}
	a.session = session.New(ctx, backend, a.logger)

	var clientOpts []client.Option
	if a.opts.HTTPClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(a.opts.HTTPClient))
	}
	a.client = client.New(a.server, a.session, a.logger, clientOpts...)
	return nil
}

// requireLogin fails early when no token is stored.
func (a *app) requireLogin(ctx context.Context) error {
	if !a.session.Authenticated(ctx) {
		return apperr.Unauthorized("Not logged in. Run helpdeskctl login first.")
	}
	return nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// Execute runs the root command and prints a failure's user-facing message.
func Execute(ctx context.Context, opts Options) int {
	cmd := NewRootCommand(opts)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message(err))
		return 1
	}
	return 0
}

// message prefers the API's message and falls back to the error text for
// local failures and field-level validation errors.
func message(err error) string {
	if apperr.KindOf(err) == apperr.KindInternal || len(apperr.FieldsOf(err)) > 0 {
		return err.Error()
	}
	return apperr.MessageOf(err)
}
