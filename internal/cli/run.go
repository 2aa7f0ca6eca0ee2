package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theoremus-urban-solutions/taskroute-live/config"
	"github.com/theoremus-urban-solutions/taskroute-live/routing"
	"github.com/theoremus-urban-solutions/taskroute-live/server"
	"github.com/theoremus-urban-solutions/taskroute-live/stream"
	"github.com/theoremus-urban-solutions/taskroute-live/taskapi"
	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Track live tasks and serve the read API",
		Long: `Seed from the task backend, follow its event stream and serve the
read API until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			api, streamCfg, err := config.SelectSite(cfg, opts.site)
			if err != nil {
				return err
			}
			if streamCfg.URL == "" {
				return errors.New("stream.url is required for run")
			}
			provider, err := routing.New(cfg.Routing)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			policy := policyFromConfig(cfg.Policy)
			engine := tracking.NewEngine(policy, provider, logger)
			client := taskapi.NewClientFromConfig(api, logger)
			consumer := stream.NewClientFromConfig(streamCfg, api, engine, client, logger)
			srv := server.New(cfg.Server.Port, engine, server.Options{
				ArrivalRadius: policy.ArrivalRadius,
				Validity:      policy.GraceWindow,
			}, logger)

			errCh := make(chan error, 3)
			run := func(name string, fn func(context.Context) error) {
				go func() {
					err := fn(ctx)
					if err != nil && !errors.Is(err, context.Canceled) {
						err = fmt.Errorf("%s: %w", name, err)
					} else {
						err = nil
					}
					errCh <- err
					cancel()
				}()
			}
			run("engine", engine.Run)
			run("stream", consumer.Run)
			run("server", srv.Run)

			var first error
			for i := 0; i < 3; i++ {
				if err := <-errCh; err != nil && first == nil {
					first = err
					logger.Error("component failed, shutting down", "error", err)
				}
			}
			logger.Info("stopped", "uptime", time.Since(start).Round(time.Second).String())
			return first
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "read API port (overrides server.port)")
	return cmd
}
