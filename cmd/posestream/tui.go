package main

import (
	"github.com/DFly7/SimpleMediaPipe/internal/client"
	"github.com/DFly7/SimpleMediaPipe/internal/metrics"
	"github.com/DFly7/SimpleMediaPipe/internal/pose"
	"github.com/DFly7/SimpleMediaPipe/internal/tui/app"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func tuiCmd(opts *rootOptions) *cobra.Command {
	var (
		rawURL  string
		logFile string
		style   string
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := overrideEndpoint(cfg, rawURL); err != nil {
				return err
			}

			logger := zap.NewNop()
			if logFile != "" {
				if logger, err = newLogger(cfg.Log, logFile); err != nil {
					return err
				}
			}
			defer logger.Sync()

			session := client.New(client.Options{
				Endpoint:       cfg.Endpoint,
				Client:         cfg.Client,
				WorldLandmarks: cfg.Feed.WorldLandmarks,
				Logger:         logger,
				Metrics:        metrics.NewClient(),
			})
			defer session.Close()
			feed := pose.NewFeed(cfg.Feed, logger)

			p := tea.NewProgram(app.New(session, feed, style), tea.WithAltScreen())
			app.Subscribe(session, p.Send)

			_, err = p.Run()
			feed.Stop()
			session.Disconnect()
			return err
		},
	}

	cmd.Flags().StringVar(&rawURL, "url", "", "Scoring server URL")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file (default: discard)")
	cmd.Flags().StringVar(&style, "style", "dark", "Help overlay style: dark, light, or notty")
	return cmd
}
