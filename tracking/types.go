package tracking

import (
	"errors"
	"math"
	"time"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

var (
	// ErrUnknownTask is returned when an operation names a task id that is
	// not currently tracked.
	ErrUnknownTask = errors.New("task is not tracked")
	// ErrInvalidDestination is returned for tasks without a usable destination.
	ErrInvalidDestination = errors.New("task has no valid destination")
	// ErrMalformedEvent wraps every decode or validation failure of an inbound message.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrEngineStopped is returned by Engine calls made after Run has returned.
	ErrEngineStopped = errors.New("engine stopped")
)

// Task is a task eligible for live monitoring.
type Task struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	AssigneeName string         `json:"assignee_name,omitempty"`
	LocationName string         `json:"location_name,omitempty"`
	Destination  geo.Coordinate `json:"destination"`
}

// LivePosition is the latest known position of a task's assignee.
type LivePosition struct {
	TaskID     int64          `json:"task_id"`
	Coordinate geo.Coordinate `json:"coordinate"`
	// Seq is the receipt order assigned by the engine.
	Seq uint64 `json:"seq"`
	// SourceSeq is the producer's sequence number, 0 when the message had none.
	SourceSeq  uint64    `json:"source_seq,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// RouteStatus is the lifecycle state of the focused task's route.
type RouteStatus string

const (
	RouteNone    RouteStatus = "none"
	RoutePending RouteStatus = "pending"
	RouteReady   RouteStatus = "ready"
	RouteFailed  RouteStatus = "failed"
	RouteArrived RouteStatus = "arrived"
)

// RouteState is a read-only copy of the focused task's route.
type RouteState struct {
	TaskID int64            `json:"task_id"`
	Status RouteStatus      `json:"status"`
	Anchor *geo.Coordinate  `json:"origin_anchor,omitempty"`
	Path   []geo.Coordinate `json:"path,omitempty"`
	Token  uint64           `json:"last_request_token"`
	// Error carries the provider failure for RouteFailed.
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Policy holds the reconciliation constants.
type Policy struct {
	// ArrivalRadius in meters; a position closer than this to the destination
	// counts as arrived.
	ArrivalRadius float64
	// MoveThreshold in meters; smaller displacements from the route's origin
	// anchor never trigger a new request.
	MoveThreshold float64
	Debounce      time.Duration
	// GraceWindow bounds how long a position for an unknown task is kept.
	// Orphans are swept every tenth of the window, so one may linger up to
	// 1.1x GraceWindow (GraceWindow+100ms for windows under a second).
	GraceWindow time.Duration
}

// DefaultPolicy returns 10 m arrival radius, 20 m move threshold, 250 ms
// debounce and a 5 s grace window.
func DefaultPolicy() Policy {
	return Policy{
		ArrivalRadius: 10,
		MoveThreshold: 20,
		Debounce:      250 * time.Millisecond,
		GraceWindow:   5 * time.Second,
	}
}

// TrackedTask pairs a task with its live position for the rendering layer.
type TrackedTask struct {
	Task
	Position *LivePosition `json:"position,omitempty"`
	// RemainingMeters is the straight-line distance to the destination, NaN
	// without a position.
	RemainingMeters float64 `json:"-"`
}

func remaining(t Task, p *LivePosition) float64 {
	if p == nil {
		return math.NaN()
	}
	return geo.DistanceMeters(p.Coordinate, t.Destination)
}
