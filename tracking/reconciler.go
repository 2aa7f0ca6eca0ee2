package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

// RouteProvider computes a travel path between two points. Implementations
// must honour ctx cancellation.
type RouteProvider interface {
	Route(ctx context.Context, origin, dest geo.Coordinate) ([]geo.Coordinate, error)
}

// RouteProviderFunc adapts a function to RouteProvider.
type RouteProviderFunc func(ctx context.Context, origin, dest geo.Coordinate) ([]geo.Coordinate, error)

func (f RouteProviderFunc) Route(ctx context.Context, origin, dest geo.Coordinate) ([]geo.Coordinate, error) {
	return f(ctx, origin, dest)
}

// Reconciler decides when the focused task's route is recomputed.
//
// Every method must be called from the engine goroutine. Timer fires and
// provider responses re-enter through post, which the engine wires to its
// queue.
type Reconciler struct {
	policy   Policy
	provider RouteProvider
	sched    Scheduler
	post     func(func())
	launch   func(func())
	now      func() time.Time
	logger   *slog.Logger

	lastToken uint64
	focus     *focusedRoute
	requests  uint64
}

type focusedRoute struct {
	task    Task
	state   RouteState
	fsm     *routeMachine
	timer   Timer
	timerID uint64
	next    geo.Coordinate
	cancel  context.CancelFunc
}

// NewReconciler creates a reconciler. post must serialize callbacks onto the
// goroutine that owns the reconciler.
func NewReconciler(policy Policy, provider RouteProvider, post func(func()), logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		policy:   policy,
		provider: provider,
		sched:    clockScheduler{},
		post:     post,
		launch:   func(f func()) { go f() },
		now:      time.Now,
		logger:   logger,
	}
}

// Focus makes task the focused task, discarding any previous route. If pos
// is known it is evaluated immediately.
func (r *Reconciler) Focus(task Task, pos *LivePosition) error {
	r.Clear()
	fsm, err := newRouteMachine(task.ID)
	if err != nil {
		return err
	}
	r.focus = &focusedRoute{
		task:  task,
		fsm:   fsm,
		state: RouteState{TaskID: task.ID, Status: RouteNone, UpdatedAt: r.now()},
	}
	r.logger.Debug("route focus set", "task_id", task.ID)
	if pos != nil {
		r.Observe(task.ID, pos.Coordinate)
	}
	return nil
}

// Clear drops the focused route, cancelling its timer and in-flight request.
// Responses still in flight are discarded because no route will carry their
// token again.
func (r *Reconciler) Clear() {
	if r.focus == nil {
		return
	}
	r.stop(r.focus)
	r.logger.Debug("route focus cleared", "task_id", r.focus.task.ID)
	r.focus = nil
}

// Focused returns the focused task id.
func (r *Reconciler) Focused() (int64, bool) {
	if r.focus == nil {
		return 0, false
	}
	return r.focus.task.ID, true
}

// State returns a copy of the focused route.
func (r *Reconciler) State() (RouteState, bool) {
	if r.focus == nil {
		return RouteState{}, false
	}
	s := r.focus.state
	if s.Anchor != nil {
		a := *s.Anchor
		s.Anchor = &a
	}
	s.Path = append([]geo.Coordinate(nil), s.Path...)
	return s, true
}

// Requests counts provider invocations since creation.
func (r *Reconciler) Requests() uint64 { return r.requests }

// TaskUpdated is called when the registry replaces a task. A new destination
// for the focused task restarts its route from none and re-evaluates pos; the
// result reports whether that happened.
func (r *Reconciler) TaskUpdated(task Task, pos *LivePosition) bool {
	f := r.focus
	if f == nil || f.task.ID != task.ID {
		return false
	}
	destChanged := f.task.Destination != task.Destination
	f.task = task
	if !destChanged {
		return false
	}
	r.stop(f)
	if f.state.Status != RouteNone {
		r.transition(f, eventReset)
	}
	f.state.Anchor = nil
	f.state.Path = nil
	f.state.Error = ""
	f.state.UpdatedAt = r.now()
	r.logger.Info("focused task destination changed", "task_id", task.ID)
	if pos != nil {
		r.Observe(task.ID, pos.Coordinate)
	}
	return true
}

// Observe applies the reconciliation rule to a new position of taskID.
// Positions of tasks other than the focused one are ignored.
func (r *Reconciler) Observe(taskID int64, pos geo.Coordinate) {
	f := r.focus
	if f == nil || f.task.ID != taskID {
		return
	}
	if f.state.Status == RouteArrived {
		return
	}

	if geo.DistanceMeters(pos, f.task.Destination) < r.policy.ArrivalRadius {
		r.arrive(f)
		return
	}

	if f.state.Anchor != nil && geo.DistanceMeters(pos, *f.state.Anchor) < r.policy.MoveThreshold {
		return
	}
	r.schedule(f, pos)
}

func (r *Reconciler) arrive(f *focusedRoute) {
	r.stop(f)
	r.transition(f, eventArrive)
	f.state.Path = nil
	f.state.Error = ""
	f.state.UpdatedAt = r.now()
	r.logger.Info("assignee arrived at destination", "task_id", f.task.ID)
}

// schedule (re)starts the debounce timer; the request uses the latest pos.
func (r *Reconciler) schedule(f *focusedRoute, pos geo.Coordinate) {
	f.next = pos
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timerID++
	id := f.timerID
	f.timer = r.sched.AfterFunc(r.policy.Debounce, func() {
		r.post(func() { r.fire(f, id) })
	})
}

func (r *Reconciler) fire(f *focusedRoute, id uint64) {
	// a stopped timer may still have queued its callback
	if r.focus != f || f.timerID != id || f.timer == nil {
		return
	}
	f.timer = nil
	r.request(f, f.next)
}

func (r *Reconciler) request(f *focusedRoute, origin geo.Coordinate) {
	if f.state.Status != RoutePending {
		r.transition(f, eventRequest)
	}
	if f.cancel != nil {
		f.cancel()
	}
	r.lastToken++
	token := r.lastToken
	anchor := origin
	f.state.Token = token
	f.state.Anchor = &anchor
	f.state.Path = nil
	f.state.Error = ""
	f.state.UpdatedAt = r.now()
	r.requests++

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	taskID, dest := f.task.ID, f.task.Destination
	r.logger.Debug("requesting route",
		"task_id", taskID,
		"token", token,
		"origin", origin.String(),
		"destination", dest.String())

	r.launch(func() {
		path, err := r.provider.Route(ctx, origin, dest)
		r.post(func() { r.complete(taskID, token, path, err) })
	})
}

func (r *Reconciler) complete(taskID int64, token uint64, path []geo.Coordinate, err error) {
	f := r.focus
	if f == nil || f.task.ID != taskID || f.state.Token != token || f.state.Status != RoutePending {
		r.logger.Debug("discarding stale route response", "task_id", taskID, "token", token)
		return
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if err == nil && len(path) == 0 {
		err = fmt.Errorf("provider returned an empty path")
	}
	f.state.UpdatedAt = r.now()
	if err != nil {
		r.transition(f, eventFail)
		f.state.Path = nil
		f.state.Error = err.Error()
		r.logger.Warn("route unavailable", "task_id", taskID, "token", token, "error", err)
		return
	}
	r.transition(f, eventResolve)
	f.state.Path = append([]geo.Coordinate(nil), path...)
	r.logger.Debug("route ready", "task_id", taskID, "token", token, "points", len(path))
}

// stop cancels the debounce timer and the in-flight request of f.
func (r *Reconciler) stop(f *focusedRoute) {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.timerID++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (r *Reconciler) transition(f *focusedRoute, event string) {
	if err := f.fsm.Transition(event); err != nil {
		// unreachable given the guards above
		r.logger.Error("route state machine rejected event",
			"task_id", f.task.ID,
			"event", event,
			"error", err)
		return
	}
	f.state.Status = f.fsm.Current()
}
