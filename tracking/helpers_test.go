package tracking

import (
	"io"
	"log/slog"
	"time"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

// metersPerDegreeLat is close enough for building test offsets.
const metersPerDegreeLat = 111195.0

var (
	origin = geo.Coordinate{Lat: 14.5995, Lng: 120.9842}
	dest   = geo.Coordinate{Lat: 14.6005, Lng: 120.9850}
)

func north(c geo.Coordinate, meters float64) geo.Coordinate {
	return geo.Coordinate{Lat: c.Lat + meters/metersPerDegreeLat, Lng: c.Lng}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTask(id int64) Task {
	return Task{ID: id, Title: "Inspect pump", AssigneeName: "Ana", Destination: dest}
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeScheduler records timers and fires them on demand.
type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) active() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs every active timer and returns how many fired.
func (s *fakeScheduler) fire() int {
	n := 0
	for _, t := range s.active() {
		t.fired = true
		t.f()
		n++
	}
	return n
}
