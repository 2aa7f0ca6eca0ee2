package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteMachine_Lifecycle(t *testing.T) {
	m, err := newRouteMachine(1)
	require.NoError(t, err)
	assert.Equal(t, RouteNone, m.Current())

	steps := []struct {
		event string
		want  RouteStatus
	}{
		{eventRequest, RoutePending},
		{eventResolve, RouteReady},
		{eventRequest, RoutePending},
		{eventFail, RouteFailed},
		{eventRequest, RoutePending},
		{eventArrive, RouteArrived},
		{eventReset, RouteNone},
	}
	for _, s := range steps {
		require.NoError(t, m.Transition(s.event), s.event)
		assert.Equal(t, s.want, m.Current())
	}
}

func TestRouteMachine_RejectsInvalidTransitions(t *testing.T) {
	m, err := newRouteMachine(1)
	require.NoError(t, err)

	assert.Error(t, m.Transition(eventResolve), "none cannot resolve")
	assert.Error(t, m.Transition(eventReset), "none is already reset")

	require.NoError(t, m.Transition(eventArrive))
	assert.Error(t, m.Transition(eventRequest), "arrived never requests")
	assert.Error(t, m.Transition(eventArrive))
	assert.Equal(t, RouteArrived, m.Current())
}

func TestRouteMachine_ArriveFromEveryState(t *testing.T) {
	prefixes := map[RouteStatus][]string{
		RouteNone:    nil,
		RoutePending: {eventRequest},
		RouteReady:   {eventRequest, eventResolve},
		RouteFailed:  {eventRequest, eventFail},
	}
	for from, prefix := range prefixes {
		t.Run(string(from), func(t *testing.T) {
			m, err := newRouteMachine(1)
			require.NoError(t, err)
			for _, ev := range prefix {
				require.NoError(t, m.Transition(ev))
			}
			require.Equal(t, from, m.Current())
			require.NoError(t, m.Transition(eventArrive))
			assert.Equal(t, RouteArrived, m.Current())
		})
	}
}
