package cli

import (
	"context"
	"fmt"
	"strconv"

	library "github.com/goliatone/go-library-client"
	"github.com/spf13/cobra"
)

// globalFlagKeys maps root flags onto config keys
var globalFlagKeys = map[string]string{
	"mode":              "mode",
	"production-origin": "production_origin",
	"dev-proxy-origin":  "dev_proxy_origin",
	"storage":           "storage.driver",
	"dsn":               "storage.dsn",
	"verbose":           "verbose",
}

// NewRootCommand builds libctl. The returned App must be closed after the
// command ran.
func NewRootCommand(opts ...Option) (*cobra.Command, *App) {
	a := newApp(opts...)

	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Library lending client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.authorize(cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.String("config", "libctl.yaml", "path to the YAML config file")
	flags.String("env-file", ".env", "path to a .env file")
	flags.String("mode", "", "production or development")
	flags.String("production-origin", "", "backend API origin used in production mode")
	flags.String("dev-proxy-origin", "", "dev proxy origin used in development mode")
	flags.String("storage", "", "session storage: memory or sqlite")
	flags.String("dsn", "", "sqlite session database path")
	flags.BoolP("verbose", "v", false, "log to stderr")

	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if err := a.setup(cmd); err == nil {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a.hideUnavailable(cmd.Root(), a.session(ctx))
		}
		defaultHelp(cmd, args)
	})

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRegisterCmd(a),
		newBooksCmd(a),
		newLoansCmd(a),
		newUsersCmd(a),
		newProxyCmd(a),
	)

	return root, a
}

// Execute runs libctl with args and returns the process exit code
func Execute(ctx context.Context, args []string, opts ...Option) int {
	root, app := NewRootCommand(opts...)
	defer app.Close()

	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(app.errOut, "Error:", library.UserMessage(err))
		return 1
	}
	return 0
}

func screen(cmd *cobra.Command, path string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationScreen] = path
	return cmd
}

func affordance(cmd *cobra.Command, a library.Affordance) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationAffordance] = string(a)
	return cmd
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
