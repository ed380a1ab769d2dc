package main

import (
	"fmt"
	"os"

	"github.com/DFly7/SimpleMediaPipe/internal/config"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "posestream",
		Short: "Stream pose keypoints to a scoring server",
		Long: `posestream sends body-pose keypoints to a Socket.IO scoring server
over a single WebSocket and surfaces the scores it sends back.

  stream    headless client fed by the synthetic pose feed
  tui       interactive dashboard
  gateway   a scoring server speaking the same protocol`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to config file")

	cmd.AddCommand(
		streamCmd(opts),
		tuiCmd(opts),
		gatewayCmd(opts),
		versionCmd(),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// overrideEndpoint replaces the configured endpoint when --url is set.
func overrideEndpoint(cfg *config.Config, rawURL string) error {
	if rawURL == "" {
		return nil
	}
	ep, err := config.ParseEndpoint(rawURL)
	if err != nil {
		return err
	}
	cfg.Endpoint = ep
	return nil
}
