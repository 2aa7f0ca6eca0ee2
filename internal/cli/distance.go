package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance <lat1> <lng1> <lat2> <lng2>",
		Short: "Print the great-circle distance between two points",
		Example: `  taskroute-live distance 14.5995 120.9842 14.6005 120.9850
  141.2 m (140 m)`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals := make([]float64, 4)
			for i, a := range args {
				v, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				vals[i] = v
			}
			a := geo.Coordinate{Lat: vals[0], Lng: vals[1]}
			b := geo.Coordinate{Lat: vals[2], Lng: vals[3]}
			if !a.Valid() || !b.Valid() {
				return fmt.Errorf("coordinates out of range: %s -> %s", a, b)
			}
			m := geo.DistanceMeters(a, b)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%.1f m (%s)\n", m, geo.PresentableDistance(m))
			return err
		},
	}
}
