package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theoremus-urban-solutions/taskroute-live/config"
	"github.com/theoremus-urban-solutions/taskroute-live/taskapi"
	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
	"github.com/theoremus-urban-solutions/taskroute-live/utils"
)

type snapshotOutput struct {
	FetchedAt string                 `json:"fetched_at"`
	Tasks     []tracking.TrackedTask `json:"tasks"`
}

// pairTasks joins snapshot tasks with their positions.
func pairTasks(snap taskapi.Snapshot) []tracking.TrackedTask {
	byID := make(map[int64]tracking.LivePosition, len(snap.Positions))
	for _, p := range snap.Positions {
		byID[p.TaskID] = p
	}
	out := make([]tracking.TrackedTask, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tt := tracking.TrackedTask{Task: t}
		if p, ok := byID[t.ID]; ok {
			tt.Position = &p
		}
		out = append(out, tt)
	}
	return out
}

func newSnapshotCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch the in-progress tasks and their latest positions once",
		Example: `  taskroute-live snapshot
  taskroute-live snapshot --site north`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			api, _, err := config.SelectSite(cfg, opts.site)
			if err != nil {
				return err
			}
			snap, err := taskapi.NewClientFromConfig(api, logger).Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			buf, err := json.MarshalIndent(snapshotOutput{
				FetchedAt: utils.Iso8601(snap.FetchedAt),
				Tasks:     pairTasks(snap),
			}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(buf))
			return err
		},
	}
}
