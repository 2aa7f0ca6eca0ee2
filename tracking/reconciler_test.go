package tracking

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

type providerCall struct {
	ctx    context.Context
	origin geo.Coordinate
	dest   geo.Coordinate
}

// reconcilerHarness runs posts inline and holds launched provider calls
// until the test releases them.
type reconcilerHarness struct {
	r        *Reconciler
	sched    *fakeScheduler
	launched []func()
	calls    []providerCall
	fail     error
	empty    bool
}

func newReconcilerHarness(t *testing.T) *reconcilerHarness {
	t.Helper()
	h := &reconcilerHarness{sched: &fakeScheduler{}}
	provider := RouteProviderFunc(func(ctx context.Context, o, d geo.Coordinate) ([]geo.Coordinate, error) {
		h.calls = append(h.calls, providerCall{ctx: ctx, origin: o, dest: d})
		if h.fail != nil {
			return nil, h.fail
		}
		if h.empty {
			return nil, nil
		}
		return []geo.Coordinate{o, d}, nil
	})
	h.r = NewReconciler(DefaultPolicy(), provider, func(f func()) { f() }, discardLogger())
	h.r.sched = h.sched
	h.r.launch = func(f func()) { h.launched = append(h.launched, f) }
	return h
}

// respond runs the i-th launched provider call.
func (h *reconcilerHarness) respond(i int) {
	h.launched[i]()
}

func (h *reconcilerHarness) state(t *testing.T) RouteState {
	t.Helper()
	s, ok := h.r.State()
	require.True(t, ok, "a task should be focused")
	return s
}

// readyAt drives the focused route to ready with its anchor at pos.
func (h *reconcilerHarness) readyAt(t *testing.T, pos geo.Coordinate) {
	t.Helper()
	h.r.Observe(1, pos)
	require.Equal(t, 1, h.sched.fire())
	h.respond(len(h.launched) - 1)
	require.Equal(t, RouteReady, h.state(t).Status)
}

func TestReconciler_DebouncedFirstRequest(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	assert.Equal(t, RouteNone, h.state(t).Status)

	h.r.Observe(1, origin)
	assert.Equal(t, RouteNone, h.state(t).Status, "nothing happens before the debounce fires")
	require.Len(t, h.sched.active(), 1)
	assert.Equal(t, DefaultPolicy().Debounce, h.sched.active()[0].d)
	assert.Empty(t, h.launched)

	h.sched.fire()
	s := h.state(t)
	assert.Equal(t, RoutePending, s.Status)
	assert.Equal(t, uint64(1), s.Token)
	require.NotNil(t, s.Anchor)
	assert.Equal(t, origin, *s.Anchor)

	h.respond(0)
	s = h.state(t)
	assert.Equal(t, RouteReady, s.Status)
	if diff := cmp.Diff([]geo.Coordinate{origin, dest}, s.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, h.calls, 1)
	assert.Equal(t, dest, h.calls[0].dest)
}

func TestReconciler_SmallMoveChangesNothing(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.readyAt(t, origin)
	before := h.state(t)
	timers := len(h.sched.timers)

	h.r.Observe(1, north(origin, 5))

	assert.Equal(t, timers, len(h.sched.timers), "no timer is scheduled")
	assert.Equal(t, before, h.state(t))
}

func TestReconciler_SmallMoveDoesNotRestartPendingTimer(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.readyAt(t, origin)

	h.r.Observe(1, north(origin, 30))
	require.Len(t, h.sched.active(), 1)
	pending := h.sched.active()[0]

	// 5 m from the anchor: below threshold, the running timer is untouched
	h.r.Observe(1, north(origin, 5))
	require.Len(t, h.sched.active(), 1)
	assert.Same(t, pending, h.sched.active()[0])
	assert.Equal(t, RouteReady, h.state(t).Status)
}

func TestReconciler_LargeMoveRequestsNewRoute(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.readyAt(t, origin)

	moved := north(origin, 30)
	h.r.Observe(1, moved)
	require.Equal(t, 1, h.sched.fire())

	s := h.state(t)
	assert.Equal(t, RoutePending, s.Status)
	assert.Equal(t, uint64(2), s.Token)
	assert.Equal(t, moved, *s.Anchor)
	assert.Empty(t, s.Path)
}

func TestReconciler_BurstCollapsesIntoOneRequest(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))

	var last geo.Coordinate
	for i := 0; i < 5; i++ {
		last = north(origin, float64(i*3))
		h.r.Observe(1, last)
	}
	require.Len(t, h.sched.timers, 5)
	require.Len(t, h.sched.active(), 1)

	h.sched.fire()
	require.Len(t, h.launched, 1)
	h.respond(0)

	require.Len(t, h.calls, 1)
	assert.Equal(t, last, h.calls[0].origin)
	assert.Equal(t, uint64(1), h.r.Requests())
}

func TestReconciler_ArrivalFromEveryState(t *testing.T) {
	near := north(dest, -3)
	setups := map[RouteStatus]func(h *reconcilerHarness){
		RouteNone: func(h *reconcilerHarness) {
			h.r.Observe(1, origin)
		},
		RoutePending: func(h *reconcilerHarness) {
			h.r.Observe(1, origin)
			h.sched.fire()
		},
		RouteReady: func(h *reconcilerHarness) {
			h.r.Observe(1, origin)
			h.sched.fire()
			h.respond(0)
		},
		RouteFailed: func(h *reconcilerHarness) {
			h.fail = errors.New("no route")
			h.r.Observe(1, origin)
			h.sched.fire()
			h.respond(0)
		},
	}
	for from, setup := range setups {
		t.Run(string(from), func(t *testing.T) {
			h := newReconcilerHarness(t)
			require.NoError(t, h.r.Focus(testTask(1), nil))
			setup(h)
			require.Equal(t, from, h.state(t).Status)

			h.r.Observe(1, near)

			s := h.state(t)
			assert.Equal(t, RouteArrived, s.Status)
			assert.Empty(t, s.Path)
			assert.Empty(t, h.sched.active(), "debounce timer is cancelled")
			for _, c := range h.calls {
				assert.Error(t, c.ctx.Err(), "in-flight request is cancelled")
			}

			// arrived is sticky until focus or destination changes
			h.r.Observe(1, origin)
			assert.Empty(t, h.sched.active())
			assert.Equal(t, RouteArrived, h.state(t).Status)
		})
	}
}

func TestReconciler_ArrivalCancelsInFlightRequest(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.r.Observe(1, origin)
	h.sched.fire()

	h.r.Observe(1, dest)
	// the provider still answers; the response must not resurrect the route
	h.respond(0)
	require.Len(t, h.calls, 1)
	assert.Error(t, h.calls[0].ctx.Err())

	s := h.state(t)
	assert.Equal(t, RouteArrived, s.Status)
	assert.Empty(t, s.Path)
}

func TestReconciler_StaleResponseDiscarded(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))

	h.r.Observe(1, origin)
	h.sched.fire()
	moved := north(origin, 40)
	h.r.Observe(1, moved)
	h.sched.fire()
	require.Len(t, h.launched, 2)

	// the superseded response arrives while the new one is outstanding
	h.respond(0)
	s := h.state(t)
	assert.Equal(t, RoutePending, s.Status)
	assert.Equal(t, uint64(2), s.Token)
	assert.Empty(t, s.Path)

	h.respond(1)
	s = h.state(t)
	assert.Equal(t, RouteReady, s.Status)
	assert.Equal(t, []geo.Coordinate{moved, dest}, s.Path)
}

func TestReconciler_StaleResponseAfterReadyDiscarded(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))

	h.r.Observe(1, origin)
	h.sched.fire()
	moved := north(origin, 40)
	h.r.Observe(1, moved)
	h.sched.fire()

	h.respond(1)
	h.respond(0)

	s := h.state(t)
	assert.Equal(t, RouteReady, s.Status)
	assert.Equal(t, uint64(2), s.Token)
	assert.Equal(t, []geo.Coordinate{moved, dest}, s.Path)
}

func TestReconciler_FailureIsNotRetried(t *testing.T) {
	h := newReconcilerHarness(t)
	h.fail = errors.New("upstream 503")
	require.NoError(t, h.r.Focus(testTask(1), nil))

	h.r.Observe(1, origin)
	h.sched.fire()
	h.respond(0)

	s := h.state(t)
	assert.Equal(t, RouteFailed, s.Status)
	assert.Empty(t, s.Path)
	assert.Contains(t, s.Error, "upstream 503")
	assert.Empty(t, h.sched.active())
	assert.Len(t, h.calls, 1)

	// only a qualifying move asks again
	h.r.Observe(1, north(origin, 5))
	assert.Empty(t, h.sched.active())
	h.r.Observe(1, north(origin, 25))
	assert.Len(t, h.sched.active(), 1)
}

func TestReconciler_EmptyPathIsFailure(t *testing.T) {
	h := newReconcilerHarness(t)
	h.empty = true
	require.NoError(t, h.r.Focus(testTask(1), nil))

	h.r.Observe(1, origin)
	h.sched.fire()
	h.respond(0)

	assert.Equal(t, RouteFailed, h.state(t).Status)
}

func TestReconciler_FocusChangeCancelsPreviousWork(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))

	h.r.Observe(1, origin)
	h.sched.fire()
	h.r.Observe(1, north(origin, 50))
	oldTimer := h.sched.active()[0]

	other := testTask(2)
	require.NoError(t, h.r.Focus(other, nil))

	assert.True(t, oldTimer.stopped)

	// a queued fire of the stopped timer and the late response are ignored
	oldTimer.f()
	h.respond(0)
	require.Len(t, h.calls, 1)
	assert.Error(t, h.calls[0].ctx.Err(), "request context is cancelled by the focus change")

	s := h.state(t)
	assert.Equal(t, int64(2), s.TaskID)
	assert.Equal(t, RouteNone, s.Status)
	assert.Len(t, h.launched, 1)

	// positions of the previous task no longer matter
	h.r.Observe(1, north(origin, 200))
	assert.Empty(t, h.sched.active())
}

func TestReconciler_TokensAreGlobal(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.readyAt(t, origin)

	require.NoError(t, h.r.Focus(testTask(2), nil))
	h.r.Observe(2, origin)
	h.sched.fire()

	assert.Equal(t, uint64(2), h.state(t).Token)
}

func TestReconciler_FocusWithKnownPosition(t *testing.T) {
	h := newReconcilerHarness(t)
	pos := &LivePosition{TaskID: 1, Coordinate: origin}

	require.NoError(t, h.r.Focus(testTask(1), pos))
	assert.Len(t, h.sched.active(), 1)
}

func TestReconciler_Clear(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.r.Observe(1, origin)
	h.sched.fire()

	h.r.Clear()
	_, ok := h.r.State()
	assert.False(t, ok)
	_, ok = h.r.Focused()
	assert.False(t, ok)

	h.respond(0)
	_, ok = h.r.State()
	assert.False(t, ok)
}

func TestReconciler_DestinationChangeResetsRoute(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.r.Observe(1, north(dest, -2))
	require.Equal(t, RouteArrived, h.state(t).Status)

	moved := testTask(1)
	moved.Destination = north(dest, 500)
	assert.True(t, h.r.TaskUpdated(moved, &LivePosition{TaskID: 1, Coordinate: north(dest, -2)}))

	s := h.state(t)
	assert.Equal(t, RouteNone, s.Status)
	assert.Nil(t, s.Anchor)
	require.Len(t, h.sched.active(), 1)

	h.sched.fire()
	h.respond(0)
	assert.Equal(t, moved.Destination, h.calls[0].dest)
	assert.Equal(t, RouteReady, h.state(t).Status)
}

func TestReconciler_SameDestinationKeepsRoute(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.readyAt(t, origin)

	renamed := testTask(1)
	renamed.Title = "Renamed"
	assert.False(t, h.r.TaskUpdated(renamed, &LivePosition{TaskID: 1, Coordinate: origin}))

	assert.Equal(t, RouteReady, h.state(t).Status)
	assert.Empty(t, h.sched.active())
}

func TestReconciler_StateIsACopy(t *testing.T) {
	h := newReconcilerHarness(t)
	require.NoError(t, h.r.Focus(testTask(1), nil))
	h.readyAt(t, origin)

	s := h.state(t)
	s.Path[0] = geo.Coordinate{}
	s.Anchor.Lat = 0

	again := h.state(t)
	assert.Equal(t, origin, again.Path[0])
	assert.Equal(t, origin, *again.Anchor)
}
