package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/theoremus-urban-solutions/taskroute-live/config"
	"github.com/theoremus-urban-solutions/taskroute-live/feed"
	"github.com/theoremus-urban-solutions/taskroute-live/taskapi"
)

func newFeedCmd(opts *globalOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Export a snapshot as a GTFS-Realtime VehiclePositions feed",
		Long: `Export a snapshot as a GTFS-Realtime VehiclePositions feed.

Without --out the feed is printed in protobuf text format; with --out the
binary encoding is written to the file.`,
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
			tasks := pairTasks(snap)

			if out == "" {
				text, err := prototext.MarshalOptions{Multiline: true}.Marshal(feed.VehiclePositions(tasks, snap.FetchedAt))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(text))
				return err
			}
			buf, err := feed.Marshal(tasks, snap.FetchedAt)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, buf, 0o644); err != nil {
				return fmt.Errorf("write feed: %w", err)
			}
			logger.Info("feed written", "path", out, "bytes", len(buf))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the binary feed to this file")
	return cmd
}
