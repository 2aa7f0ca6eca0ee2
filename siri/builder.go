package siri

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
	"github.com/theoremus-urban-solutions/taskroute-live/utils"
)

const (
	defaultProducerRef = "TASKROUTE"
	statusInProgress   = "inProgress"
)

// Options controls the delivery envelope.
type Options struct {
	ProducerRef string
	// Validity is added to the response time to produce ValidUntil.
	Validity time.Duration
	// ArrivalRadius in meters decides VehicleAtStop.
	ArrivalRadius float64
}

// LineRef returns the LineRef used for a task.
func LineRef(taskID int64) string {
	return "TASK:" + strconv.FormatInt(taskID, 10)
}

// BuildVehicleMonitoring renders tracked tasks as a complete SIRI response.
func BuildVehicleMonitoring(tasks []tracking.TrackedTask, now time.Time, opts Options) *SiriResponse {
	if opts.ProducerRef == "" {
		opts.ProducerRef = defaultProducerRef
	}
	ts := utils.Iso8601(now)
	validUntil := utils.ValidUntil(now, opts.Validity)

	vm := VehicleMonitoring{
		ResponseTimestamp: ts,
		ValidUntil:        validUntil,
		VehicleActivity:   make([]VehicleActivityEntry, 0, len(tasks)),
	}
	for _, t := range tasks {
		recorded := now
		if t.Position != nil && !t.Position.ReceivedAt.IsZero() {
			recorded = t.Position.ReceivedAt
		}
		vm.VehicleActivity = append(vm.VehicleActivity, VehicleActivityEntry{
			RecordedAtTime:          utils.Iso8601(recorded),
			ValidUntilTime:          validUntil,
			MonitoredVehicleJourney: buildMVJ(t, opts),
		})
	}

	return &SiriResponse{
		Siri: SiriServiceDelivery{
			ServiceDelivery: ServiceDelivery{
				ResponseTimestamp:         ts,
				ProducerRef:               opts.ProducerRef,
				VehicleMonitoringDelivery: []VehicleMonitoring{vm},
			},
		},
	}
}

func buildMVJ(t tracking.TrackedTask, opts Options) MonitoredVehicleJourney {
	destRef := "DEST:" + strconv.FormatInt(t.ID, 10)
	mvj := MonitoredVehicleJourney{
		LineRef:           LineRef(t.ID),
		PublishedLineName: t.Title,
		DestinationRef:    destRef,
		DestinationName:   t.LocationName,
		Monitored:         t.Position != nil,
		DataSource:        opts.ProducerRef,
		VehicleStatus:     statusInProgress,
		VehicleRef:        t.AssigneeName,
	}

	call := &MonitoredCall{
		StopPointRef:          destRef,
		StopPointName:         t.LocationName,
		VehicleLocationAtStop: location(t.Destination),
		DestinationDisplay:    t.Title,
	}
	if t.Position != nil {
		mvj.VehicleLocation = location(t.Position.Coordinate)

		meters := geo.DistanceMeters(t.Position.Coordinate, t.Destination)
		atStop := meters < opts.ArrivalRadius
		call.VehicleAtStop = &atStop
		ext := &CallExtensions{Distances: Distances{PresentableDistance: geo.PresentableDistance(meters)}}
		if !math.IsInf(meters, 0) {
			d := math.Round(meters*10) / 10
			ext.Distances.DistanceFromCall = &d
		}
		call.Extensions = ext
	}
	mvj.MonitoredCall = call
	return mvj
}

func location(c geo.Coordinate) *VehicleLocation {
	lat, lng := c.Lat, c.Lng
	return &VehicleLocation{Latitude: &lat, Longitude: &lng}
}

// Filter keeps the activities matching vehicleRef and lineRef. Matching is
// case-insensitive and empty filters match everything.
func Filter(vm VehicleMonitoring, vehicleRef, lineRef string) VehicleMonitoring {
	vehicleRef = strings.ToLower(strings.TrimSpace(vehicleRef))
	lineRef = strings.ToLower(strings.TrimSpace(lineRef))

	filtered := VehicleMonitoring{
		ResponseTimestamp: vm.ResponseTimestamp,
		ValidUntil:        vm.ValidUntil,
		VehicleActivity:   []VehicleActivityEntry{},
	}
	for _, a := range vm.VehicleActivity {
		mvj := a.MonitoredVehicleJourney
		if vehicleRef != "" && strings.ToLower(mvj.VehicleRef) != vehicleRef {
			continue
		}
		if lineRef != "" && strings.ToLower(mvj.LineRef) != lineRef {
			continue
		}
		filtered.VehicleActivity = append(filtered.VehicleActivity, a)
	}
	return filtered
}
