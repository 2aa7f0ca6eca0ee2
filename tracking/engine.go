package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize = 256
	minSweepInterval = 100 * time.Millisecond
)

// Stats summarises engine activity for health reporting.
type Stats struct {
	Received      uint64    `json:"received"`
	Applied       uint64    `json:"applied"`
	Dropped       uint64    `json:"dropped"`
	Tasks         int       `json:"tasks"`
	Positions     int       `json:"positions"`
	Orphans       int       `json:"orphans"`
	RouteRequests uint64    `json:"route_requests"`
	Connected     bool      `json:"connected"`
	LastEventAt   time.Time `json:"last_event_at,omitempty"`
	SeededAt      time.Time `json:"seeded_at,omitempty"`
}

// Option customises an Engine.
type Option func(*Engine)

// WithScheduler replaces the debounce timer source.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.reconciler.sched = s }
}

// WithClock replaces time.Now for receipt timestamps and orphan sweeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.reconciler.now = now
	}
}

// WithQueueSize sets the trigger queue capacity.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queue = make(chan func(), n)
		}
	}
}

// Engine owns the tracked state. Run drains a single queue of triggers and
// every other method enqueues work onto it and waits for the result, so
// registry, position store and reconciler are only touched by one goroutine.
type Engine struct {
	policy     Policy
	registry   *Registry
	positions  *PositionStore
	reconciler *Reconciler
	decoder    *Decoder
	logger     *slog.Logger
	now        func() time.Time

	queue   chan func()
	done    chan struct{}
	started atomic.Bool

	seq   uint64
	stats Stats
}

// NewEngine wires the tracking components around provider.
func NewEngine(policy Policy, provider RouteProvider, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		policy:    policy,
		registry:  NewRegistry(logger),
		positions: NewPositionStore(policy.GraceWindow),
		decoder:   NewDecoder(),
		logger:    logger,
		now:       time.Now,
		queue:     make(chan func(), defaultQueueSize),
		done:      make(chan struct{}),
	}
	e.reconciler = NewReconciler(policy, provider, e.post, logger)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes triggers until ctx is cancelled. It may only be called once;
// afterwards every call fails with ErrEngineStopped.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("engine already started")
	}
	ticker := time.NewTicker(sweepInterval(e.policy.GraceWindow))
	defer ticker.Stop()
	defer func() {
		e.reconciler.Clear()
		close(e.done)
	}()

	e.logger.Info("tracking engine started",
		"arrival_radius_m", e.policy.ArrivalRadius,
		"move_threshold_m", e.policy.MoveThreshold,
		"debounce", e.policy.Debounce.String())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("tracking engine stopped")
			return ctx.Err()
		case fn := <-e.queue:
			fn()
		case <-ticker.C:
			e.sweep()
		}
	}
}

// sweepInterval is a tenth of the grace window, so an orphan outlives the
// window by at most that much (or minSweepInterval for short windows).
func sweepInterval(grace time.Duration) time.Duration {
	interval := grace / 10
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	return interval
}

// do runs fn on the engine goroutine and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case e.queue <- task:
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrEngineStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues fn without waiting. Used by timers and provider goroutines.
func (e *Engine) post(fn func()) {
	select {
	case e.queue <- fn:
	case <-e.done:
	}
}

// Seed replaces tracked state with a snapshot. The focused route survives
// when its task is still present.
func (e *Engine) Seed(ctx context.Context, tasks []Task, positions []LivePosition) error {
	return e.do(ctx, func() {
		now := e.now()
		accepted := e.registry.Seed(tasks)
		e.positions.Reset()
		for _, p := range positions {
			if _, ok := e.registry.Get(p.TaskID); !ok {
				continue
			}
			e.seq++
			p.Seq = e.seq
			if p.ReceivedAt.IsZero() {
				p.ReceivedAt = now
			}
			e.positions.Update(p, true)
		}
		e.stats.SeededAt = now

		if id, ok := e.reconciler.Focused(); ok {
			task, tracked := e.registry.Get(id)
			if !tracked {
				e.reconciler.Clear()
			} else {
				pos := e.positionOf(id)
				// TaskUpdated re-evaluates pos itself when the destination moved
				if !e.reconciler.TaskUpdated(task, pos) && pos != nil {
					e.reconciler.Observe(id, pos.Coordinate)
				}
			}
		}
		e.logger.Info("tracking state seeded",
			"tasks", accepted,
			"excluded", len(tasks)-accepted,
			"positions", e.positions.Len())
	})
}

// Ingest decodes and applies one raw stream message. Malformed messages are
// logged, counted and returned as errors wrapping ErrMalformedEvent.
func (e *Engine) Ingest(ctx context.Context, raw []byte) error {
	ev, err := e.decoder.Decode(raw)
	if err != nil {
		e.logger.Warn("dropping malformed message", "error", err)
		if derr := e.do(ctx, func() {
			e.stats.Received++
			e.stats.Dropped++
		}); derr != nil {
			return derr
		}
		return err
	}
	return e.Apply(ctx, ev)
}

// Apply runs one typed event through the reducer.
func (e *Engine) Apply(ctx context.Context, ev Event) error {
	return e.do(ctx, func() {
		e.stats.Received++
		e.apply(ev)
	})
}

func (e *Engine) apply(ev Event) {
	now := e.now()
	e.stats.LastEventAt = now

	switch ev := ev.(type) {
	case TaskStarted:
		_, replaced, err := e.registry.Upsert(ev.Task)
		if err != nil {
			e.logger.Warn("ignoring task_started", "task_id", ev.Task.ID, "error", err)
			e.stats.Dropped++
			return
		}
		var pos *LivePosition
		if p, ok := e.positions.Adopt(ev.Task.ID); ok {
			pos = &p
		}
		if replaced {
			e.reconciler.TaskUpdated(ev.Task, pos)
		}
		e.logger.Info("tracking task", "task_id", ev.Task.ID, "replaced", replaced)

	case TaskUpdated:
		if _, tracked := e.registry.Get(ev.Task.ID); !tracked {
			e.logger.Debug("ignoring update of untracked task", "task_id", ev.Task.ID, "status", ev.Status)
			break
		}
		if !ev.InProgress() {
			e.remove(ev.Task.ID, ev.Type())
			break
		}
		if _, _, err := e.registry.Upsert(ev.Task); err != nil {
			e.logger.Warn("ignoring task_updated", "task_id", ev.Task.ID, "error", err)
			e.stats.Dropped++
			return
		}
		e.reconciler.TaskUpdated(ev.Task, e.positionOf(ev.Task.ID))
		e.logger.Info("tracked task updated",
			"task_id", ev.Task.ID,
			"destination", ev.Task.Destination.String())

	case TaskCompleted:
		e.remove(ev.TaskID, ev.Type())

	case TaskDeleted:
		e.remove(ev.TaskID, ev.Type())

	case LocationUpdate:
		_, tracked := e.registry.Get(ev.TaskID)
		e.seq++
		pos := LivePosition{
			TaskID:     ev.TaskID,
			Coordinate: ev.Coordinate,
			Seq:        e.seq,
			SourceSeq:  ev.SourceSeq,
			ReceivedAt: now,
		}
		if !e.positions.Update(pos, tracked) {
			e.logger.Debug("rejecting out-of-order position",
				"task_id", ev.TaskID,
				"source_seq", ev.SourceSeq)
			e.stats.Dropped++
			return
		}
		if !tracked {
			e.logger.Debug("holding position for unknown task", "task_id", ev.TaskID)
		} else {
			e.reconciler.Observe(ev.TaskID, ev.Coordinate)
		}

	case Ignored:
		e.logger.Debug("ignoring event", "event", string(ev.Event))

	default:
		e.logger.Warn("unhandled event type", "event", string(ev.Type()))
		e.stats.Dropped++
		return
	}
	e.stats.Applied++
}

func (e *Engine) remove(id int64, reason EventType) {
	existed := e.registry.Remove(id)
	e.positions.Remove(id)
	if focused, ok := e.reconciler.Focused(); ok && focused == id {
		e.reconciler.Clear()
	}
	if existed {
		e.logger.Info("task no longer tracked", "task_id", id, "event", string(reason))
	}
}

func (e *Engine) sweep() {
	for _, id := range e.positions.Sweep(e.now()) {
		e.logger.Debug("discarding orphan position", "task_id", id)
	}
}

func (e *Engine) positionOf(id int64) *LivePosition {
	if p, ok := e.positions.Get(id); ok {
		return &p
	}
	return nil
}

// Focus selects the task whose route is reconciled. Refocusing the current
// task keeps its route.
func (e *Engine) Focus(ctx context.Context, id int64) error {
	var ferr error
	err := e.do(ctx, func() {
		task, ok := e.registry.Get(id)
		if !ok {
			ferr = ErrUnknownTask
			return
		}
		if cur, ok := e.reconciler.Focused(); ok && cur == id {
			return
		}
		ferr = e.reconciler.Focus(task, e.positionOf(id))
	})
	if err != nil {
		return err
	}
	return ferr
}

// ClearFocus drops the focused route.
func (e *Engine) ClearFocus(ctx context.Context) error {
	return e.do(ctx, e.reconciler.Clear)
}

// Tasks returns the tracked tasks with their live positions.
func (e *Engine) Tasks(ctx context.Context) ([]TrackedTask, error) {
	var out []TrackedTask
	err := e.do(ctx, func() {
		tasks := e.registry.List()
		out = make([]TrackedTask, 0, len(tasks))
		for _, t := range tasks {
			pos := e.positionOf(t.ID)
			out = append(out, TrackedTask{Task: t, Position: pos, RemainingMeters: remaining(t, pos)})
		}
	})
	return out, err
}

// Position returns the live position of a tracked task.
func (e *Engine) Position(ctx context.Context, id int64) (LivePosition, bool, error) {
	var (
		pos LivePosition
		ok  bool
	)
	err := e.do(ctx, func() {
		pos, ok = e.positions.Get(id)
	})
	return pos, ok, err
}

// Route returns the focused route, false when nothing is focused.
func (e *Engine) Route(ctx context.Context) (RouteState, bool, error) {
	var (
		state RouteState
		ok    bool
	)
	err := e.do(ctx, func() {
		state, ok = e.reconciler.State()
	})
	return state, ok, err
}

// SetConnected records the push stream's connection state.
func (e *Engine) SetConnected(ctx context.Context, connected bool) error {
	return e.do(ctx, func() { e.stats.Connected = connected })
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := e.do(ctx, func() {
		s = e.stats
		s.Tasks = e.registry.Len()
		s.Positions = len(e.positions.List())
		s.Orphans = e.positions.Orphans()
		s.RouteRequests = e.reconciler.Requests()
	})
	return s, err
}
