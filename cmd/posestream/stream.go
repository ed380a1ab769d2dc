package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/DFly7/SimpleMediaPipe/internal/client"
	"github.com/DFly7/SimpleMediaPipe/internal/metrics"
	"github.com/DFly7/SimpleMediaPipe/internal/pose"
	"github.com/DFly7/SimpleMediaPipe/internal/socketio"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func streamCmd(opts *rootOptions) *cobra.Command {
	var (
		rawURL string
		fps    int
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream synthetic pose frames and log the scores",
		Long: `Connect to the scoring server, stream frames from the synthetic pose
feed, and log every score and feedback message until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := overrideEndpoint(cfg, rawURL); err != nil {
				return err
			}
			if fps > 0 {
				cfg.Feed.FPS = fps
			}

			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			serveMetrics(ctx, cfg.Metrics.Addr, logger)

			session := client.New(client.Options{
				Endpoint:       cfg.Endpoint,
				Client:         cfg.Client,
				WorldLandmarks: cfg.Feed.WorldLandmarks,
				Logger:         logger,
				Metrics:        metrics.NewClient(),
			})
			session.OnStateChange(func(st client.State) {
				logger.Info("Connection state", zap.Stringer("state", st))
			})
			session.OnScore(func(ev client.ScoreEvent) {
				logger.Info("Score", zap.Int("score", ev.Score))
			})
			session.OnFeedback(func(text string) {
				logger.Info("Feedback", zap.String("text", text))
			})
			session.Connect()

			feed := pose.NewFeed(cfg.Feed, logger)
			feed.Start(ctx, func(obs pose.Observation, _ bool) {
				session.SendPose(obs)
			})
			logger.Info("Streaming",
				zap.String("url", cfg.Endpoint.URL()),
				zap.Int("fps", cfg.Feed.FPS))

			<-ctx.Done()
			logger.Info("Shutting down...")
			feed.Stop()
			session.SendCameraAction(socketio.ActionVideoStopped)
			session.Disconnect()
			return session.Close()
		},
	}

	cmd.Flags().StringVar(&rawURL, "url", "", "Scoring server URL, e.g. ws://127.0.0.1:5000/socket.io/?EIO=4&transport=websocket")
	cmd.Flags().IntVar(&fps, "fps", 0, "Override feed frame rate")
	return cmd
}
