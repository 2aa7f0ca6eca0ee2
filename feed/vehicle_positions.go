package feed

import (
	"fmt"
	"strconv"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
)

const gtfsRealtimeVersion = "2.0"

// EntityID returns the feed entity id used for a task.
func EntityID(taskID int64) string {
	return "task-" + strconv.FormatInt(taskID, 10)
}

// VehiclePositions builds a full-dataset feed from tracked tasks. Tasks
// without a live position are omitted.
func VehiclePositions(tasks []tracking.TrackedTask, now time.Time) *gtfsrtpb.FeedMessage {
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
	for _, t := range tasks {
		if t.Position == nil {
			continue
		}
		id := strconv.FormatInt(t.ID, 10)
		vp := &gtfsrtpb.VehiclePosition{
			Trip: &gtfsrtpb.TripDescriptor{TripId: proto.String(id)},
			Vehicle: &gtfsrtpb.VehicleDescriptor{
				Id: proto.String(id),
			},
			Position: &gtfsrtpb.Position{
				Latitude:  proto.Float32(float32(t.Position.Coordinate.Lat)),
				Longitude: proto.Float32(float32(t.Position.Coordinate.Lng)),
			},
		}
		if t.AssigneeName != "" {
			vp.Vehicle.Label = proto.String(t.AssigneeName)
		}
		if !t.Position.ReceivedAt.IsZero() {
			vp.Timestamp = proto.Uint64(uint64(t.Position.ReceivedAt.Unix()))
		}
		fm.Entity = append(fm.Entity, &gtfsrtpb.FeedEntity{
			Id:      proto.String(EntityID(t.ID)),
			Vehicle: vp,
		})
	}
	return fm
}

// Marshal encodes the feed for tasks as protobuf.
func Marshal(tasks []tracking.TrackedTask, now time.Time) ([]byte, error) {
	buf, err := proto.Marshal(VehiclePositions(tasks, now))
	if err != nil {
		return nil, fmt.Errorf("failed to encode vehicle positions: %w", err)
	}
	return buf, nil
}
