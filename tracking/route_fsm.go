package tracking

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State constants for statekit integration.
// These must remain untyped string constants for statekit.StateID compatibility.
// Values are kept in sync with the RouteStatus constants in types.go.
const (
	stateNone    = "none"
	statePending = "pending"
	stateReady   = "ready"
	stateFailed  = "failed"
	stateArrived = "arrived"
)

// Route machine events.
const (
	eventRequest = "request"
	eventResolve = "resolve"
	eventFail    = "fail"
	eventArrive  = "arrive"
	eventReset   = "reset"
)

func init() {
	stateMap := map[string]RouteStatus{
		stateNone:    RouteNone,
		statePending: RoutePending,
		stateReady:   RouteReady,
		stateFailed:  RouteFailed,
		stateArrived: RouteArrived,
	}
	for fsmState, status := range stateMap {
		if fsmState != string(status) {
			panic(fmt.Sprintf("route FSM state %q does not match RouteStatus %q", fsmState, status))
		}
	}
}

// routeContext carries the task the machine belongs to.
type routeContext struct {
	TaskID int64
}

// routeMachine guards RouteState.Status transitions.
type routeMachine struct {
	interpreter *statekit.Interpreter[routeContext]
}

func newRouteMachine(taskID int64) (*routeMachine, error) {
	builder := statekit.NewMachine[routeContext]("route-machine").
		WithInitial(statekit.StateID(stateNone)).
		WithContext(routeContext{TaskID: taskID})

	builder.State(stateNone).
		On(eventRequest).Target(statePending).
		On(eventArrive).Target(stateArrived).
		Done()

	builder.State(statePending).
		On(eventResolve).Target(stateReady).
		On(eventFail).Target(stateFailed).
		On(eventArrive).Target(stateArrived).
		On(eventReset).Target(stateNone).
		Done()

	builder.State(stateReady).
		On(eventRequest).Target(statePending).
		On(eventArrive).Target(stateArrived).
		On(eventReset).Target(stateNone).
		Done()

	builder.State(stateFailed).
		On(eventRequest).Target(statePending).
		On(eventArrive).Target(stateArrived).
		On(eventReset).Target(stateNone).
		Done()

	// only a destination change or a new focus leaves arrived
	builder.State(stateArrived).
		On(eventReset).Target(stateNone).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build route machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &routeMachine{interpreter: interpreter}, nil
}

// Transition sends event and fails if the current state does not accept it.
func (m *routeMachine) Transition(event string) error {
	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.Current() != before {
		return nil
	}
	return fmt.Errorf("route event %q is not allowed in state %q", event, before)
}

func (m *routeMachine) Current() RouteStatus {
	return RouteStatus(m.interpreter.State().Value)
}
