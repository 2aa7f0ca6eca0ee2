package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/theoremus-urban-solutions/taskroute-live/config"
	"github.com/theoremus-urban-solutions/taskroute-live/internal"
	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	site       string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:     "taskroute-live",
		Version: Version,
		Short:   "Live tracking and route reconciliation for field tasks",
		Long: `taskroute-live follows field workers executing tasks.

It seeds itself from the task backend, consumes the backend's push event
stream, keeps the latest position of every in-progress task and recomputes
the focused task's route only when the worker has really moved.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default config.yml, then ./config/config.yml)")
	cmd.PersistentFlags().StringVar(&opts.site, "site", "", "backend name from config sites[] (default first site)")

	cmd.AddCommand(
		newRunCmd(opts),
		newSnapshotCmd(opts),
		newFeedCmd(opts),
		newDistanceCmd(),
	)
	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads the configuration and installs the process logger.
func (o *globalOptions) load() (config.AppConfig, *slog.Logger, error) {
	cfg, err := config.LoadAppConfig(o.configPath)
	if err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger := internal.InitLogging(cfg.Log.Level, cfg.Log.Format)
	return cfg, logger, nil
}

func policyFromConfig(p config.PolicyConfig) tracking.Policy {
	return tracking.Policy{
		ArrivalRadius: p.ArrivalRadiusM,
		MoveThreshold: p.MoveThresholdM,
		Debounce:      p.Debounce(),
		GraceWindow:   p.GraceWindow(),
	}
}
