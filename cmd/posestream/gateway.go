package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/DFly7/SimpleMediaPipe/internal/gateway"
	"github.com/DFly7/SimpleMediaPipe/internal/metrics"
	"github.com/spf13/cobra"
)

func gatewayCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run a scoring server",
		Long: `Serve the Socket.IO endpoint at /socket.io/ and score incoming pose
frames by landmark visibility. /healthz and /metrics are served alongside.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Gateway.Port = port
			}

			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := gateway.New(cfg.Gateway, gateway.Options{
				Logger:  logger,
				Metrics: metrics.NewGateway(),
			})
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override gateway port")
	return cmd
}
