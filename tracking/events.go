package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

// EventType is the stream message discriminant carried in the "event" field.
type EventType string

const (
	EventTaskStarted    EventType = "task_started"
	EventTaskCompleted  EventType = "task_completed"
	EventTaskDeleted    EventType = "task_deleted"
	EventLocationUpdate EventType = "location_update"
	EventTaskUpdated    EventType = "task_updated"
	// Broadcast by the backend but irrelevant to tracked state.
	EventTaskCreated     EventType = "task_created"
	EventAuditLogCreated EventType = "audit_log_created"
)

// StatusInProgress is the backend status of a task being executed.
const StatusInProgress = "IN_PROGRESS"

// Event is one decoded stream message.
type Event interface {
	Type() EventType
}

// TaskStarted introduces or replaces a tracked task.
type TaskStarted struct {
	Task Task
}

// TaskUpdated carries an edited task. It only affects tasks already tracked:
// an in-progress edit replaces the entry, any other status removes it.
type TaskUpdated struct {
	Task   Task
	Status string
}

// InProgress reports whether the task is still being executed. A missing
// status leaves the task in progress.
func (e TaskUpdated) InProgress() bool {
	return e.Status == "" || strings.EqualFold(e.Status, StatusInProgress)
}

// TaskCompleted removes a tracked task.
type TaskCompleted struct {
	TaskID int64
}

// TaskDeleted removes a tracked task.
type TaskDeleted struct {
	TaskID int64
}

// LocationUpdate reports a new assignee position.
type LocationUpdate struct {
	TaskID     int64
	Coordinate geo.Coordinate
	SourceSeq  uint64
	UserName   string
}

// Ignored is a recognised message that carries nothing the engine tracks.
type Ignored struct {
	Event EventType
}

func (TaskStarted) Type() EventType    { return EventTaskStarted }
func (TaskUpdated) Type() EventType    { return EventTaskUpdated }
func (TaskCompleted) Type() EventType  { return EventTaskCompleted }
func (TaskDeleted) Type() EventType    { return EventTaskDeleted }
func (LocationUpdate) Type() EventType { return EventLocationUpdate }
func (e Ignored) Type() EventType      { return e.Event }

// TaskRecord is the backend's serialized task, shared by the REST listing and
// the task_started payload.
type TaskRecord struct {
	ID               int64               `json:"id" validate:"gt=0"`
	Title            string              `json:"title"`
	Status           string              `json:"status"`
	LocationName     string              `json:"location_name"`
	Latitude         *float64            `json:"latitude" validate:"omitempty,latitude"`
	Longitude        *float64            `json:"longitude" validate:"omitempty,longitude"`
	AssignedUserName string              `json:"assigned_user_name"`
	Destinations     []DestinationRecord `json:"destinations" validate:"omitempty,dive"`
}

// DestinationRecord is one stop of a multi-destination task.
type DestinationRecord struct {
	Sequence     int     `json:"sequence"`
	LocationName string  `json:"location_name"`
	Latitude     float64 `json:"latitude" validate:"latitude"`
	Longitude    float64 `json:"longitude" validate:"longitude"`
}

// Task converts the record. The destination is the task's own coordinate or,
// failing that, its lowest-sequence stop; it is NaN when neither exists.
func (r TaskRecord) Task() Task {
	t := Task{
		ID:           r.ID,
		Title:        r.Title,
		AssigneeName: r.AssignedUserName,
		LocationName: r.LocationName,
		Destination:  geo.Coordinate{Lat: math.NaN(), Lng: math.NaN()},
	}
	if r.Latitude != nil && r.Longitude != nil {
		t.Destination = geo.Coordinate{Lat: *r.Latitude, Lng: *r.Longitude}
		return t
	}
	if len(r.Destinations) > 0 {
		stops := append([]DestinationRecord(nil), r.Destinations...)
		sort.SliceStable(stops, func(i, j int) bool { return stops[i].Sequence < stops[j].Sequence })
		t.Destination = geo.Coordinate{Lat: stops[0].Latitude, Lng: stops[0].Longitude}
		if t.LocationName == "" {
			t.LocationName = stops[0].LocationName
		}
	}
	return t
}

type envelope struct {
	Event     EventType       `json:"event" validate:"required"`
	Task      json.RawMessage `json:"task"`
	TaskID    *int64          `json:"task_id"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
	Seq       *uint64         `json:"seq"`
	UserName  string          `json:"user_name"`
}

type taskRef struct {
	TaskID *int64 `validate:"required,gt=0"`
}

type locationPayload struct {
	TaskID    *int64   `validate:"required,gt=0"`
	Latitude  *float64 `validate:"required,latitude"`
	Longitude *float64 `validate:"required,longitude"`
}

// Decoder turns raw stream messages into typed events.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder creates a decoder with its own validator instance.
func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New()}
}

// Decode parses one message. Every failure wraps ErrMalformedEvent.
func (d *Decoder) Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := d.validate.Struct(env); err != nil {
		return nil, fmt.Errorf("%w: missing event discriminant", ErrMalformedEvent)
	}

	switch env.Event {
	case EventTaskStarted:
		rec, err := d.decodeTask(env.Task)
		if err != nil {
			return nil, err
		}
		t := rec.Task()
		if !t.Destination.Valid() {
			return nil, fmt.Errorf("%w: task %d: %v", ErrMalformedEvent, t.ID, ErrInvalidDestination)
		}
		return TaskStarted{Task: t}, nil

	case EventTaskUpdated:
		rec, err := d.decodeTask(env.Task)
		if err != nil {
			return nil, err
		}
		ev := TaskUpdated{Task: rec.Task(), Status: rec.Status}
		// a task leaving IN_PROGRESS is removed whatever its destination
		if ev.InProgress() && !ev.Task.Destination.Valid() {
			return nil, fmt.Errorf("%w: task %d: %v", ErrMalformedEvent, ev.Task.ID, ErrInvalidDestination)
		}
		return ev, nil

	case EventTaskCompleted, EventTaskDeleted:
		ref := taskRef{TaskID: env.TaskID}
		if err := d.validate.Struct(ref); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Event, err)
		}
		if env.Event == EventTaskCompleted {
			return TaskCompleted{TaskID: *env.TaskID}, nil
		}
		return TaskDeleted{TaskID: *env.TaskID}, nil

	case EventLocationUpdate:
		p := locationPayload{TaskID: env.TaskID, Latitude: env.Latitude, Longitude: env.Longitude}
		if err := d.validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: location_update: %v", ErrMalformedEvent, err)
		}
		ev := LocationUpdate{
			TaskID:     *p.TaskID,
			Coordinate: geo.Coordinate{Lat: *p.Latitude, Lng: *p.Longitude},
			UserName:   env.UserName,
		}
		if env.Seq != nil {
			ev.SourceSeq = *env.Seq
		}
		return ev, nil

	case EventTaskCreated, EventAuditLogCreated:
		return Ignored{Event: env.Event}, nil
	}
	return nil, fmt.Errorf("%w: unknown event %q", ErrMalformedEvent, env.Event)
}

// decodeTask accepts the task either as an object or as a JSON string
// holding the serialized object.
func (d *Decoder) decodeTask(raw json.RawMessage) (TaskRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return TaskRecord{}, fmt.Errorf("%w: task_started without task", ErrMalformedEvent)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return TaskRecord{}, fmt.Errorf("%w: task: %v", ErrMalformedEvent, err)
		}
		raw = json.RawMessage(s)
	}
	var rec TaskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return TaskRecord{}, fmt.Errorf("%w: task: %v", ErrMalformedEvent, err)
	}
	if err := d.validate.Struct(rec); err != nil {
		return TaskRecord{}, fmt.Errorf("%w: task: %v", ErrMalformedEvent, err)
	}
	return rec, nil
}

// ValidateRecord checks a REST task record with the same rules as the stream.
func (d *Decoder) ValidateRecord(rec TaskRecord) error {
	return d.validate.Struct(rec)
}
