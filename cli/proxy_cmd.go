package cli

import (
	"os/signal"
	"syscall"

	"github.com/goliatone/go-library-client/devproxy"
	"github.com/spf13/cobra"
)

func newProxyCmd(a *App) *cobra.Command {
	var listen, target string
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run the development API proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.Config.Proxy
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("target") {
				cfg.Target = target
			}

			srv, err := devproxy.New(devproxy.Config{
				Listen:  cfg.Listen,
				Target:  cfg.Target,
				Timeout: a.Config.Timeout,
			}, newWriterLogger(a.errOut))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Listen() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return srv.Shutdown()
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on")
	cmd.Flags().StringVar(&target, "target", "", "backend origin to forward /api to")
	return cmd
}
