package geo

import (
	"fmt"
	"math"
)

// PresentableDistance formats a remaining distance for display next to a
// worker marker.
func PresentableDistance(meters float64) string {
	const (
		atDestination = 10.0
		approaching   = 100.0
		kilometers    = 1000.0
	)

	switch {
	case math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0:
		return "unknown"
	case meters < atDestination:
		return "at destination"
	case meters < approaching:
		return "approaching"
	case meters < kilometers:
		return fmt.Sprintf("%d m", int(math.Round(meters/10)*10))
	}
	return fmt.Sprintf("%.1f km", meters/kilometers)
}
